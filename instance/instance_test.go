package instance

import (
	"context"
	"reflect"
	"testing"
	"unsafe"

	"github.com/wippyai/objbridge/arena"
	"github.com/wippyai/objbridge/castgraph"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/typekey"
)

type vec struct {
	x, y float64
}

type named struct {
	name string
}

type engine struct {
	drops *int
	hp    int
}

func (e *engine) Drop() {
	if e.drops != nil {
		*e.drops++
	}
}

type car struct {
	model string
	engine
}

func newRuntime(t *testing.T) *host.Local {
	t.Helper()
	l := host.NewLocal(arena.NewHeap(1 << 14))
	t.Cleanup(func() { _ = l.Close(context.Background()) })
	return l
}

func newInstance(t *testing.T, rt *host.Local, size uint32, opts ...AttachOption) (host.Handle, *Instance) {
	t.Helper()
	cls, err := rt.NewClass(host.ClassSpec{Name: "Holder", InstanceSize: size, Finalizer: Finalize})
	if err != nil {
		t.Fatalf("NewClass failed: %v", err)
	}
	h, err := rt.Allocate(cls, 0)
	rt.Decref(cls)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	inst, err := Attach(rt, h, opts...)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	return h, inst
}

func TestAdditionalInstanceSize(t *testing.T) {
	tests := []struct {
		size, align uintptr
		want        uint32
	}{
		{0, 8, 0},
		{16, 8, 23},
		{1, 1, 1},
		{4, 4, 7},
	}
	for _, tt := range tests {
		if got := AdditionalInstanceSize(tt.size, tt.align); got != tt.want {
			t.Errorf("AdditionalInstanceSize(%d, %d) = %d, want %d", tt.size, tt.align, got, tt.want)
		}
	}
	if SizeFor[vec]() != 23 {
		t.Errorf("SizeFor[vec] = %d, want 23", SizeFor[vec]())
	}
	if SizeFor[named]() != 0 {
		t.Errorf("SizeFor[named] = %d, want 0", SizeFor[named]())
	}
}

func TestPointerFree(t *testing.T) {
	tests := []struct {
		typ  reflect.Type
		want bool
	}{
		{reflect.TypeFor[int](), true},
		{reflect.TypeFor[vec](), true},
		{reflect.TypeFor[[4]uint16](), true},
		{reflect.TypeFor[named](), false},
		{reflect.TypeFor[*int](), false},
		{reflect.TypeFor[[]byte](), false},
		{reflect.TypeFor[[0]*int](), true},
		{reflect.TypeFor[struct{ a [2]vec }](), true},
	}
	for _, tt := range tests {
		if got := PointerFree(tt.typ); got != tt.want {
			t.Errorf("PointerFree(%v) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestStorage_CarvesArena(t *testing.T) {
	rt := newRuntime(t)
	h, inst := newInstance(t, rt, SizeFor[vec]())
	defer rt.Decref(h)

	p := Storage[vec](inst)
	if !inst.Carved() || inst.HeapValues() != 0 {
		t.Fatal("vec should be carved from arena storage")
	}
	p.x, p.y = 1.5, -2

	addr, n, _ := rt.Storage(h)
	buf, _ := rt.Arena().Bytes(addr, n)
	base := uintptr(unsafe.Pointer(&buf[0]))
	if uintptr(unsafe.Pointer(p)) < base || uintptr(unsafe.Pointer(p)) >= base+uintptr(n) {
		t.Error("carved value should live inside instance storage")
	}
	if uintptr(unsafe.Pointer(p))%unsafe.Alignof(vec{}) != 0 {
		t.Error("carved value is misaligned")
	}

	hdr, _ := rt.Header(h)
	off, _ := rt.Arena().ReadU32(hdr + host.HeaderHolderOffset)
	if off < host.HeaderSize {
		t.Errorf("holder offset = %d, want >= %d", off, host.HeaderSize)
	}
	raw, _ := rt.Arena().ReadU64(hdr + off)
	if got := *(*float64)(unsafe.Pointer(&raw)); got != 1.5 {
		t.Errorf("arena holds x = %v, want 1.5", got)
	}

	second := Storage[vec](inst)
	if inst.HeapValues() != 1 || second == p {
		t.Error("a second value should go to the Go heap")
	}
}

func TestStorage_HeapFallback(t *testing.T) {
	rt := newRuntime(t)

	t.Run("pointers", func(t *testing.T) {
		h, inst := newInstance(t, rt, 64)
		defer rt.Decref(h)
		Storage[named](inst)
		if inst.Carved() || inst.HeapValues() != 1 {
			t.Error("values with pointers must stay on the Go heap")
		}
	})

	t.Run("too small", func(t *testing.T) {
		h, inst := newInstance(t, rt, 4)
		defer rt.Decref(h)
		Storage[vec](inst)
		if inst.Carved() {
			t.Error("vec does not fit 4 bytes of storage")
		}
	})

	t.Run("heap only", func(t *testing.T) {
		h, inst := newInstance(t, rt, 64, HeapStorage())
		defer rt.Decref(h)
		Storage[vec](inst)
		if inst.Carved() {
			t.Error("HeapStorage should disable carving")
		}
	})
}

func carGraph(tbl *typekey.Table) (*castgraph.Graph, typekey.Key, typekey.Key) {
	kc, ke := typekey.Of[car](tbl), typekey.Of[engine](tbl)
	g := castgraph.New()
	g.AddCast(kc, ke, func(p unsafe.Pointer) unsafe.Pointer { return unsafe.Pointer(&(*car)(p).engine) }, false)
	return g, kc, ke
}

func TestValueHolder(t *testing.T) {
	rt := newRuntime(t)
	tbl := typekey.NewTable()
	g, kc, ke := carGraph(tbl)

	drops := 0
	h, inst := newInstance(t, rt, 0)
	vh, err := NewValue(inst, kc, g, func(c *car) error {
		c.model = "roadster"
		c.hp = 300
		c.drops = &drops
		return nil
	})
	if err != nil {
		t.Fatalf("NewValue failed: %v", err)
	}

	if got := inst.Find(kc, false); got != unsafe.Pointer(vh.Value()) {
		t.Errorf("Find(car) = %p, want %p", got, vh.Value())
	}
	got := inst.Find(ke, false)
	if got != unsafe.Pointer(&vh.Value().engine) || (*engine)(got).hp != 300 {
		t.Errorf("Find(engine) = %p, want the embedded engine", got)
	}
	if inst.Find(typekey.Of[vec](tbl), false) != nil {
		t.Error("Find(vec) should fail")
	}

	rt.Decref(h)
	if drops != 1 {
		t.Errorf("drops = %d, want 1 after reclaim", drops)
	}
}

func TestValueHolder_InitError(t *testing.T) {
	rt := newRuntime(t)
	h, inst := newInstance(t, rt, 0)
	defer rt.Decref(h)

	want := errTest("boom")
	_, err := NewValue(inst, 1, castgraph.New(), func(*vec) error { return want })
	if err != want {
		t.Errorf("err = %v, want %v unmodified", err, want)
	}
	if len(inst.Holders()) != 0 {
		t.Error("failed construction should not install a holder")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }

func TestPointerHolder(t *testing.T) {
	rt := newRuntime(t)
	tbl := typekey.NewTable()
	g, kc, ke := carGraph(tbl)
	kp := typekey.Of[*car](tbl)

	t.Run("owned", func(t *testing.T) {
		drops := 0
		c := &car{engine: engine{hp: 120, drops: &drops}}
		h, inst := newInstance(t, rt, 0)
		NewPointer(inst, c, kc, kp, g, Owned)

		if got := inst.Find(ke, false); got != unsafe.Pointer(&c.engine) {
			t.Errorf("Find(engine) = %p, want %p", got, &c.engine)
		}
		pp := inst.Find(kp, false)
		if pp == nil || *(**car)(pp) != c {
			t.Error("Find(*car) should return the address of the held pointer")
		}
		if got := inst.Find(kp, true); got != pp {
			t.Errorf("Find(*car, nullPtrOnly) = %p, want %p", got, pp)
		}
		rt.Decref(h)
		if drops != 1 {
			t.Errorf("drops = %d, want 1", drops)
		}
	})

	t.Run("borrowed", func(t *testing.T) {
		drops := 0
		c := &car{engine: engine{drops: &drops}}
		h, inst := newInstance(t, rt, 0)
		ph := NewPointer(inst, c, kc, kp, g, Borrowed)
		if ph.Ownership() != Borrowed || ph.Ownership().String() != "borrowed" {
			t.Errorf("Ownership = %v", ph.Ownership())
		}
		rt.Decref(h)
		if drops != 0 {
			t.Error("borrowed pointees must not be dropped")
		}
	})

	t.Run("guarded", func(t *testing.T) {
		owner := NewShared(&car{})
		h, inst := newInstance(t, rt, 0)
		defer rt.Decref(h)
		ph := NewPointer(inst, owner.Get(), kc, kp, g, Borrowed)
		ph.Guard(owner.Alive)

		if inst.Find(kc, false) == nil {
			t.Fatal("Find should succeed while the owner is alive")
		}
		owner.Release()
		if inst.Find(kc, false) != nil {
			t.Error("Find should fail once the owner is gone")
		}
	})

	t.Run("nil pointer", func(t *testing.T) {
		h, inst := newInstance(t, rt, 0)
		defer rt.Decref(h)
		NewPointer[car](inst, nil, kc, kp, g, Owned)
		if inst.Find(kc, false) != nil {
			t.Error("a nil pointer holds no car")
		}
		if inst.Find(kp, false) == nil {
			t.Error("Find(*car) should return the nil pointer slot")
		}
		if inst.Find(kp, true) != nil {
			t.Error("nullPtrOnly should refuse a nil pointer")
		}
	})
}

func TestSharedHolder(t *testing.T) {
	rt := newRuntime(t)
	tbl := typekey.NewTable()
	g, kc, ke := carGraph(tbl)
	ks := typekey.Of[*Shared[car]](tbl)

	drops := 0
	sp := NewShared(&car{engine: engine{hp: 80, drops: &drops}})
	keep := sp.Clone()

	h, inst := newInstance(t, rt, 0)
	NewSharedHolder(inst, sp, kc, ks, g)

	if got := inst.Find(ke, false); got != unsafe.Pointer(&keep.Get().engine) {
		t.Errorf("Find(engine) = %p", got)
	}
	got := inst.Find(ks, false)
	if got == nil || (*(**Shared[car])(got)).Get() != keep.Get() {
		t.Error("Find(*Shared[car]) should return the held smart pointer")
	}
	if inst.Find(ks, true) != got {
		t.Error("nullPtrOnly should answer for a non-nil smart pointer")
	}

	rt.Decref(h)
	if drops != 0 || keep.UseCount() != 1 {
		t.Errorf("drops = %d, UseCount = %d; want 0, 1", drops, keep.UseCount())
	}
	keep.Release()
	if drops != 1 {
		t.Errorf("drops = %d, want 1 after the last use", drops)
	}

	h, inst = newInstance(t, rt, 0)
	defer rt.Decref(h)
	NewSharedHolder(inst, NewShared[car](nil), kc, ks, g)
	if inst.Find(kc, false) != nil {
		t.Error("an empty smart pointer holds no car")
	}
	if inst.Find(ks, false) == nil {
		t.Error("Find(*Shared[car]) should return the empty smart pointer")
	}
	if inst.Find(ks, true) != nil {
		t.Error("nullPtrOnly should refuse an empty smart pointer")
	}
}

func TestShared(t *testing.T) {
	drops := 0
	a := NewShared(&engine{drops: &drops})
	b := a.Clone()
	c := b.Clone()

	if a.UseCount() != 3 {
		t.Errorf("UseCount = %d, want 3", a.UseCount())
	}
	a.Release()
	a.Release()
	if b.UseCount() != 2 || a.Get() != nil || a.Alive() {
		t.Errorf("after release: b.UseCount = %d, a.Get = %p", b.UseCount(), a.Get())
	}
	b.Release()
	c.Release()
	if drops != 1 {
		t.Errorf("drops = %d, want 1", drops)
	}
	if a.Clone().Get() != nil {
		t.Error("cloning a released pointer should give an empty one")
	}
}

func TestOverrides(t *testing.T) {
	rt := newRuntime(t)
	base, _ := rt.NewClass(host.ClassSpec{Name: "Base", Native: true, Finalizer: Finalize})
	defer rt.Decref(base)
	native := rt.NewFunc("speak", true, func([]host.Handle) (host.Handle, error) { return rt.NewStr("native"), nil })
	_ = rt.SetAttribute(base, "speak", native)
	_ = rt.SetAttribute(base, "walk", native)
	rt.Decref(native)

	sub, _ := rt.NewClass(host.ClassSpec{Name: "Sub", Bases: []host.Handle{base}})
	defer rt.Decref(sub)
	foreign := rt.NewFunc("speak", false, func([]host.Handle) (host.Handle, error) { return rt.NewStr("foreign"), nil })
	_ = rt.SetAttribute(sub, "speak", foreign)
	rt.Decref(foreign)

	o := NewOverrides(rt)
	obj := &engine{}
	p := unsafe.Pointer(obj)

	if _, ok := o.Lookup(p, "speak"); ok {
		t.Error("unbound objects have no overrides")
	}

	h, err := rt.Allocate(sub, 0)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	inst, _ := Attach(rt, h)
	inst.Bind(o, p)

	if owner, ok := o.Owner(p); !ok || owner != h {
		t.Errorf("Owner = %d, %v; want %d", owner, ok, h)
	}
	m, ok := o.Lookup(p, "speak")
	if !ok {
		t.Fatal("speak is overridden on the host side")
	}
	r, err := rt.Call(m)
	rt.Decref(m)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if s, _ := rt.Str(r); s != "foreign" {
		t.Errorf("override returned %q, want foreign", s)
	}
	rt.Decref(r)

	if _, ok := o.Lookup(p, "walk"); ok {
		t.Error("native methods are not overrides")
	}
	if _, ok := o.Lookup(p, "missing"); ok {
		t.Error("missing attributes are not overrides")
	}

	rt.Decref(h)
	if o.Len() != 0 {
		t.Error("reclaim should unbind the instance")
	}
}

func TestNewSharedFunc(t *testing.T) {
	drops, hooks := 0, 0
	sp := NewSharedFunc(&engine{drops: &drops}, func() { hooks++ })
	c := sp.Clone()
	sp.Release()
	if hooks != 0 {
		t.Fatal("hook ran with a use left")
	}
	c.Release()
	if hooks != 1 || drops != 0 {
		t.Errorf("hooks = %d, drops = %d; want 1, 0", hooks, drops)
	}
}
