package bridge

import (
	"context"

	"github.com/wippyai/objbridge/arena"
	"github.com/wippyai/objbridge/castgraph"
	"github.com/wippyai/objbridge/config"
	"github.com/wippyai/objbridge/convert"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/instance"
	"github.com/wippyai/objbridge/registry"
	"github.com/wippyai/objbridge/typekey"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Bridge ties a host runtime to the Go types exposed in it.
// Bridge is not safe for concurrent use.
type Bridge struct {
	log       *zap.Logger
	types     *typekey.Table
	reg       *registry.Registry
	graph     *castgraph.Graph
	rt        host.Runtime
	local     *host.Local
	overrides *instance.Overrides
	conv      *convert.Converter
	classes   map[typekey.Key]*Class
	cfg       config.Config
}

type options struct {
	cfg   *config.Config
	log   *zap.Logger
	rt    host.Runtime
	types *typekey.Table
}

// Option configures a Bridge.
type Option func(*options)

// WithConfig replaces config.Default().
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.cfg = &cfg
	}
}

// WithLogger sets the logger, overriding the configured log level.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithRuntime uses rt instead of a new host.Local. The bridge does not close
// an injected runtime.
func WithRuntime(rt host.Runtime) Option {
	return func(o *options) {
		o.rt = rt
	}
}

// WithTypeTable keys registrations in t instead of typekey.Default().
func WithTypeTable(t *typekey.Table) Option {
	return func(o *options) {
		o.types = t
	}
}

// New creates a bridge with the built-in converters registered.
func New(ctx context.Context, opts ...Option) (*Bridge, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	cfg := config.Default()
	if o.cfg != nil {
		cfg = *o.cfg
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := o.log
	if log == nil {
		l, err := newLogger(cfg)
		if err != nil {
			return nil, err
		}
		log = l
	}

	b := &Bridge{
		cfg:     cfg,
		log:     log,
		types:   o.types,
		rt:      o.rt,
		classes: make(map[typekey.Key]*Class),
	}
	if b.types == nil {
		b.types = typekey.Default()
	}
	if b.rt == nil {
		mem, err := newArena(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.local = host.NewLocal(mem)
		b.rt = b.local
		if log.Core().Enabled(zapcore.DebugLevel) {
			b.local.Table().Subscribe(&handleTrace{log: log})
		}
	}

	b.graph = castgraph.New(castgraph.WithLogger(log), castgraph.WithTypeTable(b.types))
	b.reg = registry.New(
		registry.WithLogger(log),
		registry.WithTypeTable(b.types),
		registry.WithBootstrap(func(*registry.Registry) {
			convert.RegisterBuiltins(b.conv)
		}),
	)
	b.overrides = instance.NewOverrides(b.rt)
	b.conv = convert.New(b.reg, b.graph, b.rt, b.overrides)

	log.Debug("bridge created",
		zap.String("arena", cfg.Arena),
		zap.Bool("inline_storage", cfg.InlineStorage))
	return b, nil
}

func newArena(ctx context.Context, cfg config.Config) (arena.Arena, error) {
	switch cfg.Arena {
	case config.ArenaWasm:
		w, err := arena.NewWasm(ctx, cfg.WasmPages)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindAllocation, err, "create wasm arena")
		}
		return w, nil
	default:
		return arena.NewHeap(cfg.ArenaSize), nil
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.LogLevel == config.LevelOff {
		return Logger(), nil
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level")
	}
	zc := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	l, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "build logger")
	}
	return l.Named("objbridge"), nil
}

// Config returns the configuration the bridge was created with.
func (b *Bridge) Config() config.Config { return b.cfg }

// Logger returns the bridge's logger.
func (b *Bridge) Logger() *zap.Logger { return b.log }

// Runtime returns the host runtime.
func (b *Bridge) Runtime() host.Runtime { return b.rt }

// Registry returns the converter registry.
func (b *Bridge) Registry() *registry.Registry { return b.reg }

// Graph returns the cast graph.
func (b *Bridge) Graph() *castgraph.Graph { return b.graph }

// Types returns the type key table.
func (b *Bridge) Types() *typekey.Table { return b.types }

// Converter returns the conversion pipeline.
func (b *Bridge) Converter() *convert.Converter { return b.conv }

// Overrides returns the table of Go objects bound to host instances.
func (b *Bridge) Overrides() *instance.Overrides { return b.overrides }

// Close drops the class objects and closes the runtime the bridge created.
func (b *Bridge) Close(ctx context.Context) error {
	for _, c := range b.classes {
		b.rt.Decref(c.handle)
	}
	clear(b.classes)
	if b.local != nil {
		return b.local.Close(ctx)
	}
	return nil
}
