package convert

import (
	"testing"
	"unsafe"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/instance"
)

type vec struct {
	x, y float64
}

func exposeVec(t *testing.T, f fixture) host.Handle {
	t.Helper()
	cls, err := f.rt.NewClass(host.ClassSpec{
		Name:         "Vec",
		InstanceSize: instance.SizeFor[vec](),
		Finalizer:    instance.Finalize,
		Native:       true,
	})
	if err != nil {
		t.Fatalf("NewClass failed: %v", err)
	}
	t.Cleanup(func() { f.rt.Decref(cls) })

	k := Key[vec](f.c)
	f.c.Registry.SetClass(k, cls, "Vec")
	RegisterToForeign(f.c, func(v vec) (host.Handle, error) {
		h, err := f.rt.Allocate(cls, 0)
		if err != nil {
			return 0, err
		}
		inst, err := instance.Attach(f.rt, h)
		if err != nil {
			f.rt.Decref(h)
			return 0, err
		}
		if _, err := instance.NewValue(inst, k, f.c.Graph, func(p *vec) error {
			*p = v
			return nil
		}); err != nil {
			f.rt.Decref(h)
			return 0, err
		}
		return h, nil
	})
	return cls
}

func TestClass_RoundTrip(t *testing.T) {
	f := newFixture(t)
	exposeVec(t, f)

	roundTrip(t, f.c, vec{1, 2})
	roundTrip(t, f.c, vec{})
}

func TestClass_Lvalue(t *testing.T) {
	f := newFixture(t)
	exposeVec(t, f)

	h, err := ToForeign(f.c, vec{3, 4})
	if err != nil {
		t.Fatalf("ToForeign failed: %v", err)
	}
	defer f.rt.Decref(h)

	p, err := FromForeignPtr[vec](f.c, h)
	if err != nil {
		t.Fatalf("FromForeignPtr failed: %v", err)
	}
	p.x = 10

	q, err := FromForeign[*vec](f.c, h)
	if err != nil || q != p {
		t.Fatalf("FromForeign[*vec] = %p, %v; want %p", q, err, p)
	}
	v, _ := FromForeign[vec](f.c, h)
	if v.x != 10 {
		t.Errorf("x = %v, want 10 (lvalue refers to the embedded value)", v.x)
	}

	none := f.rt.None()
	defer f.rt.Decref(none)
	if p, err := FromForeign[*vec](f.c, none); p != nil || err != nil {
		t.Errorf("FromForeign[*vec](None) = %p, %v; want nil, nil", p, err)
	}
	if p, err := FromForeignPtr[vec](f.c, none); p != nil || err != nil {
		t.Errorf("FromForeignPtr(None) = %p, %v", p, err)
	}
	if !Check[*vec](f.c, h) || !Check[vec](f.c, h) {
		t.Error("Check should accept the instance")
	}
}

func TestReferenceResult_Dangling(t *testing.T) {
	f := newFixture(t)
	exposeVec(t, f)

	h, _ := ToForeign(f.c, vec{1, 1})
	if _, err := ReferenceResult[vec](f.c, h); !errors.IsKind(err, errors.KindDanglingReference) {
		t.Errorf("ReferenceResult error = %v, want dangling_reference", err)
	}

	h, _ = ToForeign(f.c, vec{2, 2})
	f.rt.Incref(h)
	defer f.rt.Decref(h)
	p, err := ReferenceResult[vec](f.c, h)
	if err != nil {
		t.Fatalf("ReferenceResult failed: %v", err)
	}
	if p.x != 2 || f.rt.RefCount(h) != 1 {
		t.Errorf("x = %v, RefCount = %d; want 2, 1", p.x, f.rt.RefCount(h))
	}
}

func TestPointerToForeign(t *testing.T) {
	f := newFixture(t)
	exposeVec(t, f)

	v := &vec{5, 6}
	h, err := ToForeign(f.c, v)
	if err != nil {
		t.Fatalf("ToForeign(*vec) failed: %v", err)
	}
	p, _ := FromForeignPtr[vec](f.c, h)
	if p == v || *p != *v {
		t.Errorf("pointer conversion should copy the pointee, got %p (%v)", p, *p)
	}
	f.rt.Decref(h)

	var nilVec *vec
	n, _ := ToForeign(f.c, nilVec)
	if f.rt.Kind(n) != host.KindNone {
		t.Error("nil pointers convert to None")
	}
	f.rt.Decref(n)

	owner, _ := ToForeign(f.c, vec{})
	defer f.rt.Decref(owner)
	f.c.Overrides.Bind(unsafe.Pointer(v), owner)
	defer f.c.Overrides.Unbind(unsafe.Pointer(v))
	got, err := ToForeign(f.c, v)
	if err != nil || got != owner || f.rt.RefCount(owner) != 2 {
		t.Errorf("ToForeign(bound *vec) = %d, %v; want the owner %d", got, err, owner)
	}
	f.rt.Decref(got)

	if _, err := ToForeign(f.c, &point{}); !errors.IsKind(err, errors.KindNoConverter) {
		t.Errorf("ToForeign(*point) error = %v, want no_converter", err)
	}
}

func TestShared(t *testing.T) {
	f := newFixture(t)
	exposeVec(t, f)
	RegisterShared[vec](f.c)

	h, _ := ToForeign(f.c, vec{7, 8})
	defer f.rt.Decref(h)

	sp, err := FromForeign[*instance.Shared[vec]](f.c, h)
	if err != nil {
		t.Fatalf("FromForeign[*Shared] failed: %v", err)
	}
	embedded, _ := FromForeignPtr[vec](f.c, h)
	if sp.Get() != embedded {
		t.Error("shared pointer should alias the embedded value")
	}
	if f.rt.RefCount(h) != 2 {
		t.Errorf("RefCount = %d, want 2 while the shared pointer lives", f.rt.RefCount(h))
	}
	sp.Release()
	if f.rt.RefCount(h) != 1 {
		t.Errorf("RefCount = %d, want 1 after release", f.rt.RefCount(h))
	}

	none := f.rt.None()
	defer f.rt.Decref(none)
	if sp, err := FromForeign[*instance.Shared[vec]](f.c, none); err != nil || sp != nil {
		t.Errorf("FromForeign[*Shared](None) = %v, %v", sp, err)
	}
}

func TestShared_FromSharedHolder(t *testing.T) {
	f := newFixture(t)
	cls := exposeVec(t, f)
	RegisterShared[vec](f.c)

	h, _ := f.rt.Allocate(cls, 0)
	defer f.rt.Decref(h)
	inst, _ := instance.Attach(f.rt, h)
	orig := instance.NewShared(&vec{1, 2})
	instance.NewSharedHolder(inst, orig.Clone(), Key[vec](f.c), Key[*instance.Shared[vec]](f.c), f.c.Graph)

	sp, err := FromForeign[*instance.Shared[vec]](f.c, h)
	if err != nil {
		t.Fatalf("FromForeign failed: %v", err)
	}
	if sp.Get() != orig.Get() || orig.UseCount() != 3 {
		t.Errorf("UseCount = %d, want 3 (orig, holder, result)", orig.UseCount())
	}
	sp.Release()
	orig.Release()
}

type meters float64

type alpha int

type beta int

func TestImplicit(t *testing.T) {
	f := newFixture(t)
	RegisterImplicit(f.c, func(v float64) meters { return meters(v) })

	h := f.rt.NewFloat(2.5)
	defer f.rt.Decref(h)
	if m, err := FromForeign[meters](f.c, h); err != nil || m != 2.5 {
		t.Errorf("FromForeign[meters] = %v, %v", m, err)
	}

	RegisterRvalue(f.c, "explicit", "float", func(host.Handle) bool { return true },
		func(host.Handle) (meters, error) { return 42, nil })
	if m, _ := FromForeign[meters](f.c, h); m != 42 {
		t.Errorf("FromForeign[meters] = %v, explicit converters come before implicit ones", m)
	}
	if RegisterImplicit(f.c, func(v float64) meters { return 0 }) {
		t.Error("registering the same implicit conversion twice should be refused")
	}
}

func TestImplicit_Cycles(t *testing.T) {
	f := newFixture(t)
	RegisterImplicit(f.c, func(a alpha) beta { return beta(a) })
	RegisterImplicit(f.c, func(b beta) alpha { return alpha(b) })

	s := f.rt.NewStr("x")
	defer f.rt.Decref(s)
	if _, err := FromForeign[alpha](f.c, s); err == nil {
		t.Error("a cycle of implicit conversions should fail, not recurse")
	}

	RegisterImplicit(f.c, func(i int) alpha { return alpha(i * 10) })
	i := f.rt.NewInt(5)
	defer f.rt.Decref(i)
	b, err := FromForeign[beta](f.c, i)
	if err != nil {
		t.Fatalf("FromForeign[beta] failed: %v", err)
	}
	if b != 50 {
		t.Errorf("beta = %d, want 50 via int -> alpha -> beta", b)
	}
}
