package bridge

import (
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/resource"
	"go.uber.org/zap"
)

// handleTrace logs instance lifecycle events of the local runtime.
type handleTrace struct {
	log     *zap.Logger
	created int
	dropped int
}

func (t *handleTrace) OnResourceEvent(e resource.Event) {
	if host.Kind(e.Kind) != host.KindInstance {
		return
	}
	switch e.Type {
	case resource.EventCreated:
		t.created++
		t.log.Debug("instance created", zap.Uint32("handle", uint32(e.Handle)))
	case resource.EventDropped:
		t.dropped++
		t.log.Debug("instance dropped",
			zap.Uint32("handle", uint32(e.Handle)),
			zap.Int("live", t.created-t.dropped))
	}
}
