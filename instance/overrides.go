package instance

import (
	"unsafe"

	"github.com/wippyai/objbridge/host"
)

// Overrides maps Go objects to the host instances implementing them, so that
// Go code can dispatch to methods a host subclass defines.
type Overrides struct {
	rt     host.Runtime
	selves map[unsafe.Pointer]host.Handle
}

// NewOverrides creates an empty table.
func NewOverrides(rt host.Runtime) *Overrides {
	return &Overrides{rt: rt, selves: make(map[unsafe.Pointer]host.Handle)}
}

// Bind records self as the host instance of p.
func (o *Overrides) Bind(p unsafe.Pointer, self host.Handle) {
	o.selves[p] = self
}

// Unbind forgets p.
func (o *Overrides) Unbind(p unsafe.Pointer) {
	delete(o.selves, p)
}

// Owner returns the host instance of p. The reference is borrowed.
func (o *Overrides) Owner(p unsafe.Pointer) (host.Handle, bool) {
	h, ok := o.selves[p]
	return h, ok
}

// Len returns the number of bound objects.
func (o *Overrides) Len() int {
	return len(o.selves)
}

// Lookup returns a new reference to the callable named name on p's host
// instance when it was defined on the host side. Native methods, missing
// attributes and unbound objects report false, and the caller falls back to
// its Go implementation.
func (o *Overrides) Lookup(p unsafe.Pointer, name string) (host.Handle, bool) {
	self, ok := o.selves[p]
	if !ok {
		return 0, false
	}
	attr, err := o.rt.GetAttribute(self, name)
	if err != nil {
		return 0, false
	}
	switch o.rt.Kind(attr) {
	case host.KindFunc, host.KindMethod:
		if !o.rt.IsNativeFunc(attr) {
			return attr, true
		}
	}
	o.rt.Decref(attr)
	return 0, false
}
