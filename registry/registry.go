package registry

import (
	"unsafe"

	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/typekey"
	"go.uber.org/zap"
)

// Registry maps type keys to their registrations.
type Registry struct {
	log          *zap.Logger
	types        *typekey.Table
	bootstrap    func(*Registry)
	entries      map[typekey.Key]*Registration
	bootstrapped bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger for duplicate-registration warnings.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

// WithTypeTable sets the table used to name types in messages.
func WithTypeTable(t *typekey.Table) Option {
	return func(r *Registry) {
		r.types = t
	}
}

// WithBootstrap sets the function run once on first access.
func WithBootstrap(fn func(*Registry)) Option {
	return func(r *Registry) {
		r.bootstrap = fn
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[typekey.Key]*Registration),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = Logger()
	}
	if r.types == nil {
		r.types = typekey.Default()
	}
	return r
}

func (r *Registry) init() {
	if r.bootstrapped {
		return
	}
	r.bootstrapped = true
	if r.bootstrap != nil {
		r.log.Debug("registering built-in converters")
		r.bootstrap(r)
	}
}

// Lookup returns the registration for k, creating it if absent.
func (r *Registry) Lookup(k typekey.Key) *Registration {
	r.init()
	if reg, ok := r.entries[k]; ok {
		return reg
	}
	reg := &Registration{Target: k, Name: r.types.Name(k)}
	r.entries[k] = reg
	return reg
}

// LookupShared returns the registration for k and marks it as a
// shared-pointer variant.
func (r *Registry) LookupShared(k typekey.Key) *Registration {
	reg := r.Lookup(k)
	reg.IsShared = true
	return reg
}

// Query returns the registration for k or nil. It never creates one.
func (r *Registry) Query(k typekey.Key) *Registration {
	r.init()
	return r.entries[k]
}

// SetClass links k to the host class exposing it.
func (r *Registry) SetClass(k typekey.Key, class host.Handle, name string) {
	reg := r.Lookup(k)
	reg.Class = class
	reg.ForeignType = name
}

// InsertToForeign installs the to-foreign function of k. A second function is
// ignored with a warning and false is returned.
func (r *Registry) InsertToForeign(k typekey.Key, fn ToForeignFunc) bool {
	reg := r.Lookup(k)
	if reg.ToForeign != nil {
		r.log.Warn("to-foreign converter already registered; second conversion method ignored",
			zap.String("type", reg.Name))
		return false
	}
	reg.ToForeign = fn
	return true
}

// InsertLvalue puts c at the front of k's lvalue chain. The same converter also
// goes to the front of the rvalue chain with no construct stage.
func (r *Registry) InsertLvalue(k typekey.Key, c LvalueConverter) bool {
	reg := r.Lookup(k)
	if hasLvalue(reg.Lvalues, c.Name) {
		r.duplicate(reg, "lvalue", c.Name)
		return false
	}
	reg.Lvalues = append([]LvalueConverter{c}, reg.Lvalues...)

	convert := c.Convert
	rc := RvalueConverter{
		Convertible: func(h host.Handle) (unsafe.Pointer, bool) {
			p := convert(h)
			return p, p != nil
		},
		Name:        c.Name,
		ForeignType: c.ForeignType,
	}
	if hasRvalue(reg.Rvalues, c.Name) {
		r.duplicate(reg, "rvalue", c.Name)
		return true
	}
	reg.Rvalues = append([]RvalueConverter{rc}, reg.Rvalues...)
	return true
}

// InsertRvalue puts c at the front of k's rvalue chain.
func (r *Registry) InsertRvalue(k typekey.Key, c RvalueConverter) bool {
	reg := r.Lookup(k)
	if hasRvalue(reg.Rvalues, c.Name) {
		r.duplicate(reg, "rvalue", c.Name)
		return false
	}
	reg.Rvalues = append([]RvalueConverter{c}, reg.Rvalues...)
	return true
}

// PushBackRvalue appends c to k's rvalue chain, behind every other converter.
// Implicit conversions are registered this way.
func (r *Registry) PushBackRvalue(k typekey.Key, c RvalueConverter) bool {
	reg := r.Lookup(k)
	if hasRvalue(reg.Rvalues, c.Name) {
		r.duplicate(reg, "rvalue", c.Name)
		return false
	}
	reg.Rvalues = append(reg.Rvalues, c)
	return true
}

func (r *Registry) duplicate(reg *Registration, chain, name string) {
	r.log.Warn("converter already in chain; ignored",
		zap.String("type", reg.Name),
		zap.String("chain", chain),
		zap.String("converter", name))
}

// Keys returns the registered keys in ascending order.
func (r *Registry) Keys() []typekey.Key {
	r.init()
	keys := make([]typekey.Key, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	typekey.Sort(keys)
	return keys
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.init()
	return len(r.entries)
}

// Types returns the table naming the registry's keys.
func (r *Registry) Types() *typekey.Table {
	return r.types
}
