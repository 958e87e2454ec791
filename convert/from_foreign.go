package convert

import (
	"reflect"
	"unsafe"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/host"
)

// FromForeign converts h to a T. h is borrowed.
func FromForeign[T any](c *Converter, h host.Handle) (T, error) {
	var out T
	err := c.FromForeignInto(h, reflect.TypeFor[T](), unsafe.Pointer(&out))
	return out, err
}

// FromForeignInto converts h to a value of type t written to dst, which must
// point at zeroed storage of that type.
func (c *Converter) FromForeignInto(h host.Handle, t reflect.Type, dst unsafe.Pointer) error {
	switch t {
	case objectType:
		*(*host.Object)(dst) = host.Borrow(c.Runtime, h)
		return nil
	case handleType:
		c.Runtime.Incref(h)
		*(*host.Handle)(dst) = h
		return nil
	}

	k := c.Types().For(t)
	if t.Kind() == reflect.Pointer {
		if reg := c.Registry.Query(k); reg == nil || !reg.IsShared {
			p, err := c.pointerFromForeign(h, t)
			if err != nil {
				return err
			}
			*(*unsafe.Pointer)(dst) = p
			return nil
		}
	}

	s1 := c.stage1(h, k)
	if !s1.ok {
		return errors.NoRvalueConverter(c.name(k), c.Runtime.TypeName(h))
	}
	if s1.construct == nil {
		reflect.NewAt(t, dst).Elem().Set(reflect.NewAt(t, s1.convertible).Elem())
		return nil
	}
	return s1.construct(h, s1.convertible, dst)
}

// pointerFromForeign returns the lvalue for pointer type t: the embedded
// pointee, else an embedded pointer of type t itself. None is nil.
func (c *Converter) pointerFromForeign(h host.Handle, t reflect.Type) (unsafe.Pointer, error) {
	if c.Runtime.Kind(h) == host.KindNone {
		return nil, nil
	}
	if p := c.Lvalue(h, c.Types().For(t.Elem())); p != nil {
		return p, nil
	}
	k := c.Types().For(t)
	if pp := c.Lvalue(h, k); pp != nil {
		return *(*unsafe.Pointer)(pp), nil
	}
	return nil, errors.NoLvalueConverter(c.name(k), c.Runtime.TypeName(h))
}

// FromForeignPtr returns a pointer to the T embedded in h, or nil for None.
// The pointee belongs to h.
func FromForeignPtr[T any](c *Converter, h host.Handle) (*T, error) {
	p, err := c.pointerFromForeign(h, reflect.TypeFor[*T]())
	return (*T)(p), err
}

// Check reports whether h converts to T, without constructing anything.
func Check[T any](c *Converter, h host.Handle) bool {
	t := reflect.TypeFor[T]()
	if t == objectType || t == handleType {
		return true
	}
	k := c.Types().For(t)
	if t.Kind() == reflect.Pointer {
		if reg := c.Registry.Query(k); reg == nil || !reg.IsShared {
			_, err := c.pointerFromForeign(h, t)
			return err == nil
		}
	}
	return c.stage1(h, k).ok
}

// ReferenceResult takes over the owned reference h, typically a call result,
// and returns the T embedded in it. It refuses when the caller's reference is
// the only one, since the T would die with it.
func ReferenceResult[T any](c *Converter, h host.Handle) (*T, error) {
	p, err := c.ReferenceResultAt(h, reflect.TypeFor[T]())
	return (*T)(p), err
}

// ReferenceResultAt is ReferenceResult for a value type t.
func (c *Converter) ReferenceResultAt(h host.Handle, t reflect.Type) (unsafe.Pointer, error) {
	defer c.Runtime.Decref(h)
	k := c.Types().For(t)
	if refs := c.Runtime.RefCount(h); refs <= 1 {
		return nil, errors.DanglingReference(c.name(k), refs)
	}
	p := c.Lvalue(h, k)
	if p == nil {
		return nil, errors.NoLvalueConverter(c.name(k), c.Runtime.TypeName(h))
	}
	return p, nil
}
