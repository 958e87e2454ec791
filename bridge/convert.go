package bridge

import (
	"reflect"
	"unsafe"

	"github.com/wippyai/objbridge/convert"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/instance"
	"github.com/wippyai/objbridge/typekey"
)

// ToForeign converts v to a new host reference. Exposed class values are
// copied into a new instance; a pointer whose object is bound to an instance
// converts to that instance.
func ToForeign[T any](b *Bridge, v T) (host.Handle, error) {
	return convert.ToForeign(b.conv, v)
}

// FromForeign converts h to a T. h is borrowed.
func FromForeign[T any](b *Bridge, h host.Handle) (T, error) {
	return convert.FromForeign[T](b.conv, h)
}

// FromForeignRef returns the T embedded in h. Unlike FromForeignPtr, None is
// an error. The T belongs to h.
func FromForeignRef[T any](b *Bridge, h host.Handle) (*T, error) {
	k := typekey.Of[T](b.types)
	if p := b.conv.Lvalue(h, k); p != nil {
		return (*T)(p), nil
	}
	return nil, errors.NoLvalueConverter(b.types.Name(k), b.rt.TypeName(h))
}

// FromForeignPtr returns the T embedded in h, or nil for None.
func FromForeignPtr[T any](b *Bridge, h host.Handle) (*T, error) {
	return convert.FromForeignPtr[T](b.conv, h)
}

// Check reports whether h converts to T.
func Check[T any](b *Bridge, h host.Handle) bool {
	return convert.Check[T](b.conv, h)
}

// Manage hands p to a new host instance, which drops it on reclaim. The
// instance is of the class of p's most-derived type when that is exposed.
// An object already bound to an instance converts to that instance.
func Manage[T any](b *Bridge, p *T) (host.Handle, error) {
	return b.hold(unsafe.Pointer(p), typekey.Of[T](b.types), instance.Owned)
}

// Reference wraps p in a new host instance without taking ownership. p must
// outlive the instance.
func Reference[T any](b *Bridge, p *T) (host.Handle, error) {
	return b.hold(unsafe.Pointer(p), typekey.Of[T](b.types), instance.Borrowed)
}

func (b *Bridge) hold(p unsafe.Pointer, k typekey.Key, own instance.Ownership) (host.Handle, error) {
	if p == nil {
		return b.rt.None(), nil
	}
	mp, mk := b.graph.DynamicID(p, k)
	for _, q := range []unsafe.Pointer{p, mp} {
		if owner, ok := b.overrides.Owner(q); ok {
			b.rt.Incref(owner)
			return owner, nil
		}
	}

	c, ok := b.classes[mk]
	if !ok {
		c, ok = b.classes[k]
		mp = p
	}
	if !ok {
		return 0, errors.NoClassObject(b.types.Name(k))
	}
	h, inst, err := b.newInstance(c)
	if err != nil {
		return 0, err
	}
	c.pointer(inst, mp, own)
	b.adopt(c, inst, mp, false)
	return h, nil
}

// ManageShared hands one use of sp to a new host instance. The use is
// released with the instance, or at once when sp is empty or its object is
// already bound to an instance.
func ManageShared[T any](b *Bridge, sp *instance.Shared[T]) (host.Handle, error) {
	if sp == nil {
		return b.rt.None(), nil
	}
	p := unsafe.Pointer(sp.Get())
	if p == nil {
		sp.Release()
		return b.rt.None(), nil
	}
	if owner, ok := b.overrides.Owner(p); ok {
		sp.Release()
		b.rt.Incref(owner)
		return owner, nil
	}
	c, ok := ClassOf[T](b)
	if !ok {
		sp.Release()
		return 0, errors.NoClassObject(reflect.TypeFor[T]().String())
	}
	h, inst, err := b.newInstance(c)
	if err != nil {
		sp.Release()
		return 0, err
	}
	c.shared(inst, unsafe.Pointer(sp))
	b.adopt(c, inst, p, false)
	return h, nil
}

// Construct calls the class exposing T with args and returns the instance
// and the T it holds.
func Construct[T any](b *Bridge, args ...any) (host.Handle, *T, error) {
	c, ok := ClassOf[T](b)
	if !ok {
		return 0, nil, errors.NoClassObject(reflect.TypeFor[T]().String())
	}
	return ConstructOf[T](b, c.handle, args...)
}

// ConstructOf calls class, which may be a host subclass of T's class, and
// returns the instance and the T it holds.
func ConstructOf[T any](b *Bridge, class host.Handle, args ...any) (host.Handle, *T, error) {
	hargs, err := b.toForeignArgs(args)
	if err != nil {
		return 0, nil, err
	}
	defer b.release(hargs)

	h, err := b.rt.Call(class, hargs...)
	if err != nil {
		return 0, nil, err
	}
	p, err := FromForeignRef[T](b, h)
	if err != nil {
		b.rt.Decref(h)
		return 0, nil, err
	}
	return h, p, nil
}

// CallOverride calls the method name of the host instance bound to self when
// a host subclass defines it, and fallback otherwise. A pointer result must
// point into an object that outlives the call.
func CallOverride[R, T any](b *Bridge, self *T, name string, fallback func() (R, error), args ...any) (R, error) {
	var zero R
	p := unsafe.Pointer(self)
	fn, ok := b.overrides.Lookup(p, name)
	if !ok {
		if mp, _ := b.graph.DynamicID(p, typekey.Of[T](b.types)); mp != p {
			fn, ok = b.overrides.Lookup(mp, name)
		}
	}
	if !ok {
		return fallback()
	}
	defer b.rt.Decref(fn)

	hargs, err := b.toForeignArgs(args)
	if err != nil {
		return zero, err
	}
	defer b.release(hargs)

	res, err := b.rt.Call(fn, hargs...)
	if err != nil {
		return zero, err
	}
	return result[R](b, res)
}

// result converts res, an owned call result, to R and releases it.
func result[R any](b *Bridge, res host.Handle) (R, error) {
	var out R
	t := reflect.TypeFor[R]()
	if t.Kind() == reflect.Pointer && b.rt.Kind(res) != host.KindNone {
		if reg := b.reg.Query(b.types.For(t)); reg == nil || !reg.IsShared {
			p, err := b.conv.ReferenceResultAt(res, t.Elem())
			if err != nil {
				return out, err
			}
			*(*unsafe.Pointer)(unsafe.Pointer(&out)) = p
			return out, nil
		}
	}
	defer b.rt.Decref(res)
	err := b.conv.FromForeignInto(res, t, unsafe.Pointer(&out))
	return out, err
}

// Cast converts p to a *D through the cast graph, using p's most-derived
// type when S is polymorphic.
func Cast[D, S any](b *Bridge, p *S) (*D, error) {
	if p == nil {
		return nil, nil
	}
	ks, kd := typekey.Of[S](b.types), typekey.Of[D](b.types)
	q := b.graph.Cast(unsafe.Pointer(p), ks, kd)
	if q == nil {
		return nil, errors.UnreachableCast(b.types.Name(ks), b.types.Name(kd))
	}
	return (*D)(q), nil
}

// Conversion describes how S converts to T. Value converts values and is
// tried after every other converter of T. Pointer views an S as a T and adds
// a cast graph edge.
type Conversion[S, T any] struct {
	Value   func(S) T
	Pointer func(*S) *T
}

// RegisterConversion registers an implicit conversion from S to T.
func RegisterConversion[S, T any](b *Bridge, conv Conversion[S, T]) error {
	if conv.Value == nil && conv.Pointer == nil {
		return errors.InvalidInput(errors.PhaseRegister, "conversion needs a value or pointer function")
	}
	ks, kt := typekey.Of[S](b.types), typekey.Of[T](b.types)
	b.reg.Lookup(ks)
	b.reg.Lookup(kt)
	if conv.Value != nil {
		convert.RegisterImplicit(b.conv, conv.Value)
	}
	if conv.Pointer != nil {
		b.graph.AddCast(ks, kt, func(p unsafe.Pointer) unsafe.Pointer {
			return unsafe.Pointer(conv.Pointer((*S)(p)))
		}, false)
	}
	return nil
}
