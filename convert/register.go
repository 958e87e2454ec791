package convert

import (
	"unsafe"

	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/instance"
	"github.com/wippyai/objbridge/registry"
)

// RegisterToForeign installs fn as the to-foreign function of T. It returns
// false, keeping the existing function, when T already has one.
func RegisterToForeign[T any](c *Converter, fn func(T) (host.Handle, error)) bool {
	return c.Registry.InsertToForeign(Key[T](c), func(p unsafe.Pointer) (host.Handle, error) {
		return fn(*(*T)(p))
	})
}

// RegisterLvalue puts a converter returning a T embedded in a handle at the front
// of T's lvalue chain.
func RegisterLvalue[T any](c *Converter, name, foreign string, fn func(host.Handle) *T) bool {
	return c.Registry.InsertLvalue(Key[T](c), registry.LvalueConverter{
		Name:        name,
		ForeignType: foreign,
		Convert: func(h host.Handle) unsafe.Pointer {
			return unsafe.Pointer(fn(h))
		},
	})
}

// RegisterRvalue puts a converter at the front of T's rvalue chain: the most
// recently registered converter is tried first.
func RegisterRvalue[T any](c *Converter, name, foreign string,
	convertible func(host.Handle) bool, construct func(host.Handle) (T, error),
) bool {
	return c.Registry.InsertRvalue(Key[T](c), rvalueOf(name, foreign, convertible, construct))
}

func rvalueOf[T any](name, foreign string,
	convertible func(host.Handle) bool, construct func(host.Handle) (T, error),
) registry.RvalueConverter {
	return registry.RvalueConverter{
		Name:        name,
		ForeignType: foreign,
		Convertible: func(h host.Handle) (unsafe.Pointer, bool) {
			return nil, convertible(h)
		},
		Construct: func(h host.Handle, _, dst unsafe.Pointer) error {
			v, err := construct(h)
			if err != nil {
				return err
			}
			*(*T)(dst) = v
			return nil
		},
	}
}

// RegisterImplicit lets any handle convertible to S convert to T through fn.
// The converter goes to the back of T's chain, behind every explicit one.
func RegisterImplicit[S, T any](c *Converter, fn func(S) T) bool {
	ks, kt := Key[S](c), Key[T](c)
	name := "implicit:" + c.name(ks) + "->" + c.name(kt)
	return c.Registry.PushBackRvalue(kt, rvalueOf(name, "",
		func(h host.Handle) bool {
			return c.convertible(h, ks)
		},
		func(h host.Handle) (T, error) {
			if !c.visiting[kt] {
				c.visiting[kt] = true
				defer delete(c.visiting, kt)
			}
			s, err := Stage1[S](c, h).Value()
			if err != nil {
				var zero T
				return zero, err
			}
			return fn(s), nil
		}))
}

// RegisterShared lets handles embedding a T convert to *instance.Shared[T].
// A handle that holds a shared pointer yields a new use of it; any other
// yields a pointer that keeps the handle alive until its last use is
// released. None converts to nil.
func RegisterShared[T any](c *Converter) {
	k := Key[T](c)
	sk := Key[*instance.Shared[T]](c)
	rt := c.Runtime
	c.Registry.LookupShared(sk)
	c.Registry.InsertRvalue(sk, registry.RvalueConverter{
		Name:        "shared:" + c.name(k),
		ForeignType: c.Registry.Lookup(k).ForeignType,
		Convertible: func(h host.Handle) (unsafe.Pointer, bool) {
			if rt.Kind(h) == host.KindNone {
				return nil, true
			}
			p := c.Lvalue(h, k)
			return p, p != nil
		},
		Construct: func(h host.Handle, data, dst unsafe.Pointer) error {
			out := (**instance.Shared[T])(dst)
			if data == nil {
				*out = nil
				return nil
			}
			if inst, ok := instance.Of(rt, h); ok {
				if sp := inst.Find(sk, false); sp != nil {
					*out = (*(**instance.Shared[T])(sp)).Clone()
					return nil
				}
			}
			rt.Incref(h)
			*out = instance.NewSharedFunc((*T)(data), func() { rt.Decref(h) })
			return nil
		},
	})
}
