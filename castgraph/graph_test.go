package castgraph

import (
	"testing"
	"unsafe"

	"github.com/wippyai/objbridge/typekey"
)

type engine struct {
	outer unsafe.Pointer
	hp    int
}

type car struct {
	name string
	engine
}

type keys struct {
	tbl         *typekey.Table
	engine, car typekey.Key
}

func newKeys() keys {
	tbl := typekey.NewTable()
	return keys{
		tbl:    tbl,
		engine: typekey.Of[engine](tbl),
		car:    typekey.Of[car](tbl),
	}
}

func carToEngine(p unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(&(*car)(p).engine)
}

func engineToCar(p unsafe.Pointer) unsafe.Pointer {
	return (*engine)(p).outer
}

func newCar(name string) *car {
	c := &car{name: name, engine: engine{hp: 150}}
	c.outer = unsafe.Pointer(c)
	return c
}

func TestGraph_EngineCar(t *testing.T) {
	k := newKeys()
	g := New()
	g.AddCast(k.car, k.engine, carToEngine, false)

	c := newCar("sedan")
	got := g.Cast(unsafe.Pointer(c), k.car, k.engine)
	if got != unsafe.Pointer(&c.engine) {
		t.Fatalf("Cast(car -> engine) = %p, want %p", got, &c.engine)
	}
	if (*engine)(got).hp != 150 {
		t.Errorf("hp = %d, want 150", (*engine)(got).hp)
	}

	e := &engine{hp: 90}
	if got := g.Cast(unsafe.Pointer(e), k.engine, k.car); got != nil {
		t.Errorf("Cast(engine -> car) = %p, want nil without a downcast edge", got)
	}
}

func TestGraph_UpOnlyChain(t *testing.T) {
	type a struct{ x int }
	type b struct {
		y int
		a
	}
	type c struct {
		z string
		b
	}

	tbl := typekey.NewTable()
	ka, kb, kc := typekey.Of[a](tbl), typekey.Of[b](tbl), typekey.Of[c](tbl)

	g := New()
	g.AddCast(kb, ka, func(p unsafe.Pointer) unsafe.Pointer { return unsafe.Pointer(&(*b)(p).a) }, false)
	g.AddCast(kc, kb, func(p unsafe.Pointer) unsafe.Pointer { return unsafe.Pointer(&(*c)(p).b) }, false)

	obj := &c{}
	obj.x = 7
	got := g.FindStaticType(unsafe.Pointer(obj), kc, ka)
	if got != unsafe.Pointer(&obj.b.a) {
		t.Fatalf("FindStaticType(c -> a) = %p, want %p", got, &obj.b.a)
	}
	if (*a)(got).x != 7 {
		t.Errorf("x = %d, want 7", (*a)(got).x)
	}
	if g.FindStaticType(unsafe.Pointer(&obj.b.a), ka, kc) != nil {
		t.Error("a -> c should not be reachable without downcast edges")
	}
	if g.Reachable(ka, kc) {
		t.Error("Reachable(a, c) should be false")
	}
	if !g.Reachable(kc, ka) {
		t.Error("Reachable(c, a) should be true")
	}
}

type left struct{ l int64 }

type right struct {
	outer unsafe.Pointer
	r     int64
}

type both struct {
	left
	right
}

func TestGraph_AdjustUnadjust(t *testing.T) {
	tbl := typekey.NewTable()
	kl, kr, kb := typekey.Of[left](tbl), typekey.Of[right](tbl), typekey.Of[both](tbl)

	g := New()
	g.AddCast(kb, kl, func(p unsafe.Pointer) unsafe.Pointer { return unsafe.Pointer(&(*both)(p).left) }, false)
	g.AddCast(kb, kr, func(p unsafe.Pointer) unsafe.Pointer { return unsafe.Pointer(&(*both)(p).right) }, false)
	g.AddCast(kr, kb, func(p unsafe.Pointer) unsafe.Pointer { return (*right)(p).outer }, true)
	g.RegisterDynamicID(kr, func(p unsafe.Pointer) (unsafe.Pointer, typekey.Key) {
		if o := (*right)(p).outer; o != nil {
			return o, kb
		}
		return p, kr
	})

	for i := 0; i < 2; i++ {
		obj := &both{}
		obj.right.outer = unsafe.Pointer(obj)

		r := g.Cast(unsafe.Pointer(obj), kb, kr)
		if r != unsafe.Pointer(&obj.right) {
			t.Fatalf("pass %d: Cast(both -> right) = %p, want %p", i, r, &obj.right)
		}
		back := g.Cast(r, kr, kb)
		if back != unsafe.Pointer(obj) {
			t.Fatalf("pass %d: Cast(right -> both) = %p, want %p", i, back, obj)
		}
		l := g.Cast(r, kr, kl)
		if l != unsafe.Pointer(&obj.left) {
			t.Fatalf("pass %d: Cast(right -> left) = %p, want %p", i, l, &obj.left)
		}
	}

	lone := &right{}
	if g.Cast(unsafe.Pointer(lone), kr, kb) != nil {
		t.Error("a right outside of both should not downcast")
	}
	if g.FindStaticType(unsafe.Pointer(&both{}), kr, kb) != nil {
		t.Error("static search should ignore downcast edges")
	}
}

func TestGraph_CacheInvalidation(t *testing.T) {
	tbl := typekey.NewTable()
	ka := tbl.Named("A")
	kb := tbl.Named("B")
	kc := tbl.Named("C")

	g := New()
	identity := func(p unsafe.Pointer) unsafe.Pointer { return p }
	g.AddCast(kc, ka, identity, false)
	g.AddCast(kb, tbl.Named("E"), identity, false)

	var x int
	p := unsafe.Pointer(&x)
	if g.Cast(p, kc, kb) != nil {
		t.Fatal("C -> B should be unreachable")
	}
	if g.CacheLen() != 1 {
		t.Fatalf("CacheLen = %d, want 1", g.CacheLen())
	}

	g.AddCast(kc, tbl.Named("D"), identity, false)
	if g.CacheLen() != 0 {
		t.Errorf("CacheLen = %d, want 0 after purge", g.CacheLen())
	}
	if g.Cast(p, kc, kb) != nil {
		t.Error("an unrelated edge must not make C -> B reachable")
	}

	g.AddCast(ka, kb, identity, false)
	if got := g.Cast(p, kc, kb); got != p {
		t.Errorf("Cast(C -> B) = %p, want %p once a path exists", got, p)
	}
	if got := g.Cast(p, kc, ka); got != p {
		t.Errorf("Cast(C -> A) = %p, want %p", got, p)
	}
}

func TestGraph_PurgeOnlyWhenGrown(t *testing.T) {
	type a struct{ x int }
	type b struct{ x int }
	type c struct{ x int }

	tbl := typekey.NewTable()
	ka, kb, kc := typekey.Of[a](tbl), typekey.Of[b](tbl), typekey.Of[c](tbl)
	identity := func(p unsafe.Pointer) unsafe.Pointer { return p }

	g := New(WithTypeTable(tbl))
	g.AddCast(ka, kb, identity, false)

	p := unsafe.Pointer(&a{})
	g.Cast(p, ka, kb)
	g.Cast(p, kb, ka)
	if g.CacheLen() != 2 {
		t.Fatalf("CacheLen = %d, want 2", g.CacheLen())
	}

	g.AddCast(kc, ka, identity, false)
	if g.CacheLen() != 1 || g.expectedCacheLen != 1 {
		t.Fatalf("CacheLen = %d, expected = %d; want 1, 1", g.CacheLen(), g.expectedCacheLen)
	}

	g.AddCast(kc, kb, identity, false)
	if g.CacheLen() != 1 {
		t.Errorf("CacheLen = %d, want 1 (cache did not grow)", g.CacheLen())
	}
}

func TestGraph_FirstSuccessfulPathWins(t *testing.T) {
	var viaLeft, viaRight int
	pl, pr := unsafe.Pointer(&viaLeft), unsafe.Pointer(&viaRight)
	identity := func(p unsafe.Pointer) unsafe.Pointer { return p }

	tests := []struct {
		name      string
		leftFails bool
		want      unsafe.Pointer
	}{
		{"left path registered first wins", false, pl},
		{"failing cast abandons the left path", true, pr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := typekey.NewTable()
			kd, kl, kr, kt := tbl.Named("D"), tbl.Named("L"), tbl.Named("R"), tbl.Named("T")

			g := New()
			g.AddCast(kd, kl, identity, false)
			g.AddCast(kd, kr, identity, false)
			g.AddCast(kl, kt, func(unsafe.Pointer) unsafe.Pointer {
				if tt.leftFails {
					return nil
				}
				return pl
			}, false)
			g.AddCast(kr, kt, func(unsafe.Pointer) unsafe.Pointer { return pr }, false)

			var obj int
			if got := g.Cast(unsafe.Pointer(&obj), kd, kt); got != tt.want {
				t.Errorf("Cast = %p, want %p", got, tt.want)
			}
		})
	}
}

func TestGraph_NilAndUnknown(t *testing.T) {
	k := newKeys()
	g := New()
	g.AddCast(k.car, k.engine, carToEngine, false)

	if g.Cast(nil, k.car, k.engine) != nil {
		t.Error("nil pointer should cast to nil")
	}
	var x int
	p := unsafe.Pointer(&x)
	if g.Cast(p, k.car, k.car) != p {
		t.Error("identity cast should return p")
	}
	unknown := k.tbl.Named("unknown")
	if g.Cast(p, unknown, k.engine) != nil {
		t.Error("unregistered source should fail")
	}
	if g.CacheLen() != 0 {
		t.Errorf("CacheLen = %d, want 0", g.CacheLen())
	}
}

func TestGraph_Introspection(t *testing.T) {
	k := newKeys()
	g := New()
	g.AddCast(k.car, k.engine, carToEngine, false)
	g.AddCast(k.engine, k.car, engineToCar, true)
	g.RegisterDynamicID(k.engine, func(p unsafe.Pointer) (unsafe.Pointer, typekey.Key) {
		if o := (*engine)(p).outer; o != nil {
			return o, k.car
		}
		return p, k.engine
	})

	edges := g.Edges()
	want := []Edge{
		{Src: k.car, Dst: k.engine},
		{Src: k.engine, Dst: k.car, Downcast: true},
	}
	if len(edges) != len(want) {
		t.Fatalf("Edges = %v, want %v", edges, want)
	}
	for i := range want {
		if edges[i] != want[i] {
			t.Errorf("Edges[%d] = %v, want %v", i, edges[i], want[i])
		}
	}
	if !g.Registered(k.car) || !g.Polymorphic(k.engine) || g.Polymorphic(k.car) {
		t.Error("Registered/Polymorphic mismatch")
	}

	c := newCar("coupe")
	derived, dyn := g.DynamicID(unsafe.Pointer(&c.engine), k.engine)
	if derived != unsafe.Pointer(c) || dyn != k.car {
		t.Errorf("DynamicID = (%p, %d), want (%p, %d)", derived, dyn, c, k.car)
	}
	if got := g.Cast(unsafe.Pointer(&c.engine), k.engine, k.car); got != unsafe.Pointer(c) {
		t.Errorf("checked downcast = %p, want %p", got, c)
	}
	if keys := g.Keys(); len(keys) != 2 || keys[0] != k.car {
		t.Errorf("Keys = %v", keys)
	}
}

type pEngine struct{ hp int }

// pCar embeds its base by pointer, so the base is outside the object.
type pCar struct {
	name string
	*pEngine
}

func TestGraph_PointerEmbeddedBase(t *testing.T) {
	tbl := typekey.NewTable()
	ke, kc := typekey.Of[pEngine](tbl), typekey.Of[pCar](tbl)
	k := newKeys()

	g := New(WithTypeTable(tbl))
	g.AddCast(kc, ke, func(p unsafe.Pointer) unsafe.Pointer {
		return unsafe.Pointer((*pCar)(p).pEngine)
	}, false)

	cars := []*pCar{
		{name: "a", pEngine: &pEngine{hp: 1}},
		{name: "b", pEngine: &pEngine{hp: 2}},
	}
	for _, c := range cars {
		if got := g.FindStaticType(unsafe.Pointer(c), kc, ke); got != unsafe.Pointer(c.pEngine) {
			t.Fatalf("FindStaticType(%s) = %p, want %p", c.name, got, c.pEngine)
		}
		if got := g.Cast(unsafe.Pointer(c), kc, ke); got != unsafe.Pointer(c.pEngine) {
			t.Fatalf("Cast(%s) = %p, want %p", c.name, got, c.pEngine)
		}
	}
	if g.CacheLen() != 0 {
		t.Errorf("CacheLen = %d, want 0 for casts leaving the object", g.CacheLen())
	}

	// an embedded value base stays inside the object and is cached
	g2 := New(WithTypeTable(k.tbl))
	g2.AddCast(k.car, k.engine, carToEngine, false)
	for _, c := range []*car{newCar("x"), newCar("y")} {
		if got := g2.FindStaticType(unsafe.Pointer(c), k.car, k.engine); got != unsafe.Pointer(&c.engine) {
			t.Fatalf("FindStaticType(%s) = %p, want %p", c.name, got, &c.engine)
		}
	}
	if g2.CacheLen() != 1 {
		t.Errorf("CacheLen = %d, want 1", g2.CacheLen())
	}

	// without a type table nothing reachable is cached
	g3 := New()
	g3.AddCast(k.car, k.engine, carToEngine, false)
	g3.FindStaticType(unsafe.Pointer(newCar("z")), k.car, k.engine)
	if g3.CacheLen() != 0 {
		t.Errorf("CacheLen = %d, want 0 without a type table", g3.CacheLen())
	}
}
