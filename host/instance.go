package host

import (
	"github.com/wippyai/objbridge/arena"
	"github.com/wippyai/objbridge/errors"
	"go.uber.org/zap"
)

// Instance header layout.
const (
	HeaderSize = 16

	offTypeTag = 0
	offWeakRef = 4

	// HeaderHolderOffset is the header field recording where, relative to the
	// header, an embedded value lives.
	HeaderHolderOffset = 8

	offSize = 12
)

func (l *Local) instance(h Handle) (*instanceObj, bool) {
	v, ok := l.get(h)
	if !ok {
		return nil, false
	}
	o, ok := v.(*instanceObj)
	return o, ok
}

// Allocate creates an instance of class with the class's instance size plus
// extraBytes of zeroed storage. When the arena cannot hold the storage the
// instance gets a header only and reports zero storage.
func (l *Local) Allocate(class Handle, extraBytes uint32) (Handle, error) {
	c, ok := l.class(class)
	if !ok {
		return 0, errors.InvalidHandle(errors.PhaseHost, uint32(class))
	}
	size := c.size + extraBytes
	if size < c.size || size > ^uint32(0)-HeaderSize {
		return 0, errors.AllocationFailed(errors.PhaseHost, size, arena.Granule)
	}
	block := HeaderSize + size
	addr, err := l.arena.Alloc(block, arena.Granule)
	if err != nil {
		l.logger().Debug("instance storage does not fit the arena",
			zap.String("class", c.name),
			zap.Uint32("size", size))
		size, block = 0, HeaderSize
		addr, err = l.arena.Alloc(block, arena.Granule)
		if err != nil {
			return 0, err
		}
	}

	if err := l.writeHeader(addr, class, size); err != nil {
		l.arena.Free(addr, block, arena.Granule)
		return 0, err
	}

	o := &instanceObj{class: class, addr: addr, block: block, size: size}
	l.Incref(class)
	h := l.insert(KindInstance, o)
	if h == 0 {
		l.arena.Free(addr, block, arena.Granule)
		l.Decref(class)
		return 0, errors.InvalidInput(errors.PhaseHost, "runtime is closed")
	}
	return h, nil
}

func (l *Local) writeHeader(addr uint32, class Handle, size uint32) error {
	if err := l.arena.WriteU32(addr+offTypeTag, uint32(class)); err != nil {
		return err
	}
	if err := l.arena.WriteU32(addr+offWeakRef, 0); err != nil {
		return err
	}
	if err := l.arena.WriteU32(addr+HeaderHolderOffset, 0); err != nil {
		return err
	}
	if err := l.arena.WriteU32(addr+offSize, size); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	storage, err := l.arena.Bytes(addr+HeaderSize, size)
	if err != nil {
		return err
	}
	clear(storage)
	return nil
}

// Header returns the arena offset of an instance's header.
func (l *Local) Header(h Handle) (uint32, bool) {
	o, ok := l.instance(h)
	if !ok {
		return 0, false
	}
	return o.addr, true
}

// Storage returns the arena offset and size of an instance's storage.
func (l *Local) Storage(h Handle) (addr, size uint32, ok bool) {
	o, ok := l.instance(h)
	if !ok {
		return 0, 0, false
	}
	return o.addr + HeaderSize, o.size, true
}

func (l *Local) Payload(h Handle) any {
	o, ok := l.instance(h)
	if !ok {
		return nil
	}
	return o.payload
}

func (l *Local) SetPayload(h Handle, payload any) bool {
	o, ok := l.instance(h)
	if !ok {
		return false
	}
	o.payload = payload
	return true
}

func (l *Local) reclaimInstance(o *instanceObj) {
	if fin := l.finalizerFor(o.class); fin != nil && o.payload != nil {
		fin(o.payload)
	}
	o.payload = nil

	w, err := l.arena.ReadU32(o.addr + offWeakRef)
	if err != nil {
		l.logger().Warn("instance header unreadable during reclaim",
			zap.Uint32("addr", o.addr), zap.Error(err))
	}
	for w != 0 {
		wo, ok := l.weak(Handle(w))
		if !ok {
			break
		}
		next := wo.next
		wo.target, wo.next = 0, 0
		w = uint32(next)
	}

	for _, v := range o.dict {
		l.Decref(v)
	}
	o.dict = nil
	l.arena.Free(o.addr, o.block, arena.Granule)
	l.Decref(o.class)
}

func (l *Local) weak(h Handle) (*weakObj, bool) {
	v, ok := l.get(h)
	if !ok {
		return nil, false
	}
	w, ok := v.(*weakObj)
	return w, ok
}

// WeakRef creates a weak reference to an instance. It does not keep the
// instance alive; Deref returns 0 after the instance is reclaimed.
func (l *Local) WeakRef(h Handle) (Handle, error) {
	o, ok := l.instance(h)
	if !ok {
		return 0, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			ForeignType(l.TypeName(h)).
			Detail("cannot create weak reference").
			Build()
	}
	head, err := l.arena.ReadU32(o.addr + offWeakRef)
	if err != nil {
		return 0, err
	}
	w := &weakObj{target: h, next: Handle(head)}
	wh := l.insert(KindWeakRef, w)
	if wh == 0 {
		return 0, errors.InvalidInput(errors.PhaseHost, "runtime is closed")
	}
	w.self = wh
	if err := l.arena.WriteU32(o.addr+offWeakRef, uint32(wh)); err != nil {
		l.Decref(wh)
		return 0, err
	}
	return wh, nil
}

// Deref returns a new reference to the target of w, or 0 if it is gone.
func (l *Local) Deref(w Handle) Handle {
	wo, ok := l.weak(w)
	if !ok || wo.target == 0 {
		return 0
	}
	l.Incref(wo.target)
	return wo.target
}

func (l *Local) unlinkWeak(w *weakObj) {
	if w.target == 0 {
		return
	}
	o, ok := l.instance(w.target)
	if !ok {
		return
	}
	head, err := l.arena.ReadU32(o.addr + offWeakRef)
	if err != nil {
		return
	}
	if Handle(head) == w.self {
		_ = l.arena.WriteU32(o.addr+offWeakRef, uint32(w.next))
		return
	}
	for cur := Handle(head); cur != 0; {
		co, ok := l.weak(cur)
		if !ok {
			return
		}
		if co.next == w.self {
			co.next = w.next
			return
		}
		cur = co.next
	}
}
