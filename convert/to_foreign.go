package convert

import (
	"reflect"
	"unsafe"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/host"
)

var (
	objectType = reflect.TypeFor[host.Object]()
	handleType = reflect.TypeFor[host.Handle]()
)

// ToForeign converts v to a new host reference.
func ToForeign[T any](c *Converter, v T) (host.Handle, error) {
	return c.ToForeignAt(reflect.TypeFor[T](), unsafe.Pointer(&v))
}

// ToForeignAt converts the value of type t stored at p.
func (c *Converter) ToForeignAt(t reflect.Type, p unsafe.Pointer) (host.Handle, error) {
	switch t {
	case objectType:
		o := *(*host.Object)(p)
		if o.IsNull() {
			return c.Runtime.None(), nil
		}
		return o.New(), nil
	case handleType:
		h := *(*host.Handle)(p)
		if h == 0 {
			return c.Runtime.None(), nil
		}
		c.Runtime.Incref(h)
		return h, nil
	}

	k := c.Types().For(t)
	if t.Kind() == reflect.Pointer {
		return c.pointerToForeign(p, t)
	}

	reg := c.Registry.Query(k)
	if reg == nil || reg.ToForeign == nil {
		return 0, errors.NoConverter(errors.PhaseToForeign, c.name(k))
	}
	return reg.ToForeign(p)
}

// pointerToForeign converts the pointer of type t stored at pp.
func (c *Converter) pointerToForeign(pp unsafe.Pointer, t reflect.Type) (host.Handle, error) {
	p := *(*unsafe.Pointer)(pp)
	if p == nil {
		return c.Runtime.None(), nil
	}
	if c.Overrides != nil {
		if owner, ok := c.Overrides.Owner(p); ok {
			c.Runtime.Incref(owner)
			return owner, nil
		}
	}
	ptrKey := c.Types().For(t)
	if reg := c.Registry.Query(ptrKey); reg != nil && reg.ToForeign != nil {
		return reg.ToForeign(pp)
	}
	k := c.Types().For(t.Elem())
	reg := c.Registry.Query(k)
	if reg == nil || reg.ToForeign == nil {
		return 0, errors.New(errors.PhaseToForeign, errors.KindNoConverter).
			GoType(c.name(ptrKey)).
			Detail("no to-foreign converter for pointee %s", c.name(k)).
			Build()
	}
	return reg.ToForeign(p)
}
