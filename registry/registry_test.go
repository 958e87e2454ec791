package registry

import (
	"testing"
	"unsafe"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/typekey"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type point struct{ x, y int }

func newRegistry(t *testing.T, opts ...Option) (*Registry, *typekey.Table, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	tbl := typekey.NewTable()
	opts = append([]Option{WithLogger(zap.New(core)), WithTypeTable(tbl)}, opts...)
	return New(opts...), tbl, logs
}

func rvalue(name string, accept bool) RvalueConverter {
	return RvalueConverter{
		Name: name,
		Convertible: func(host.Handle) (unsafe.Pointer, bool) {
			return nil, accept
		},
	}
}

func names(chain []RvalueConverter) []string {
	out := make([]string, len(chain))
	for i, c := range chain {
		out[i] = c.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRegistry_LookupIsStable(t *testing.T) {
	r, tbl, _ := newRegistry(t)
	k := typekey.Of[point](tbl)

	if r.Query(k) != nil {
		t.Fatal("Query should not create registrations")
	}
	reg := r.Lookup(k)
	if reg.Target != k {
		t.Errorf("Target = %d, want %d", reg.Target, k)
	}
	if reg.Name != tbl.Name(k) {
		t.Errorf("Name = %q, want %q", reg.Name, tbl.Name(k))
	}
	for i := 0; i < 50; i++ {
		r.Lookup(tbl.Named("filler" + string(rune('a'+i%26)) + string(rune('a'+i/26))))
	}
	if r.Lookup(k) != reg || r.Query(k) != reg {
		t.Error("registration moved after other lookups")
	}
	if reg.IsShared {
		t.Error("IsShared should default to false")
	}
	if r.LookupShared(k) != reg || !reg.IsShared {
		t.Error("LookupShared should mark the same registration")
	}
}

func TestRegistry_BootstrapRunsOnceAndMayReenter(t *testing.T) {
	runs := 0
	var builtin typekey.Key
	r, tbl, logs := newRegistry(t, WithBootstrap(func(r *Registry) {
		runs++
		r.Lookup(builtin).ForeignType = "int"
		if r.Len() != 1 {
			t.Errorf("Len inside bootstrap = %d, want 1", r.Len())
		}
	}))
	builtin = typekey.Of[int](tbl)

	if got := r.Query(builtin); got == nil || got.ForeignType != "int" {
		t.Fatal("first access should run the bootstrap")
	}
	r.Lookup(typekey.Of[string](tbl))
	r.Keys()
	if runs != 1 {
		t.Errorf("bootstrap ran %d times, want 1", runs)
	}
	if logs.FilterMessage("registering built-in converters").Len() != 1 {
		t.Error("bootstrap should be logged once at debug")
	}
}

func TestRegistry_DuplicateToForeign(t *testing.T) {
	r, tbl, logs := newRegistry(t)
	k := typekey.Of[point](tbl)

	first := func(unsafe.Pointer) (host.Handle, error) { return 1, nil }
	second := func(unsafe.Pointer) (host.Handle, error) { return 2, nil }

	if !r.InsertToForeign(k, first) {
		t.Fatal("first InsertToForeign should install")
	}
	if r.InsertToForeign(k, second) {
		t.Error("second InsertToForeign should be ignored")
	}
	if r.InsertToForeign(k, first) {
		t.Error("re-inserting the same function should be ignored")
	}
	h, _ := r.Lookup(k).ToForeign(nil)
	if h != 1 {
		t.Errorf("ToForeign result = %d, want 1 (first registration wins)", h)
	}

	warns := logs.FilterLevelExact(zapcore.WarnLevel)
	if warns.Len() != 2 {
		t.Fatalf("warnings = %d, want 2", warns.Len())
	}
	if got := warns.All()[0].ContextMap()["type"]; got != tbl.Name(k) {
		t.Errorf("warning type field = %v, want %q", got, tbl.Name(k))
	}
}

func TestRegistry_RvalueOrdering(t *testing.T) {
	r, tbl, _ := newRegistry(t)
	k := typekey.Of[point](tbl)

	r.InsertRvalue(k, rvalue("P1", true))
	r.InsertRvalue(k, rvalue("P2", true))
	r.PushBackRvalue(k, rvalue("implicit", true))
	r.InsertRvalue(k, rvalue("P3", true))

	want := []string{"P3", "P2", "P1", "implicit"}
	if got := names(r.Lookup(k).Rvalues); !equal(got, want) {
		t.Errorf("rvalue chain = %v, want %v", got, want)
	}
}

func TestRegistry_DuplicateProbesRefused(t *testing.T) {
	r, tbl, logs := newRegistry(t)
	k := typekey.Of[point](tbl)

	if !r.InsertRvalue(k, rvalue("P1", true)) {
		t.Fatal("first insert should succeed")
	}
	if r.InsertRvalue(k, rvalue("P1", false)) {
		t.Error("duplicate InsertRvalue should be refused")
	}
	if r.PushBackRvalue(k, rvalue("P1", false)) {
		t.Error("duplicate PushBackRvalue should be refused")
	}
	if !r.InsertRvalue(k, rvalue("", true)) || !r.InsertRvalue(k, rvalue("", true)) {
		t.Error("anonymous converters are never duplicates")
	}

	chain := r.Lookup(k).Rvalues
	if len(chain) != 3 {
		t.Fatalf("chain length = %d, want 3", len(chain))
	}
	if _, ok := chain[2].Convertible(0); !ok {
		t.Error("the first P1 should be kept")
	}
	if logs.FilterMessage("converter already in chain; ignored").Len() != 2 {
		t.Error("each refused converter should be logged")
	}
}

func TestRegistry_InsertLvalueMirrorsRvalue(t *testing.T) {
	r, tbl, _ := newRegistry(t)
	k := typekey.Of[point](tbl)

	var p point
	r.InsertRvalue(k, rvalue("construct", true))
	r.InsertLvalue(k, LvalueConverter{
		Name:        "embedded",
		ForeignType: "Point",
		Convert: func(h host.Handle) unsafe.Pointer {
			if h == 7 {
				return unsafe.Pointer(&p)
			}
			return nil
		},
	})

	reg := r.Lookup(k)
	if len(reg.Lvalues) != 1 || reg.Lvalues[0].Name != "embedded" {
		t.Fatalf("lvalue chain = %v", reg.Lvalues)
	}
	if got := names(reg.Rvalues); !equal(got, []string{"embedded", "construct"}) {
		t.Fatalf("rvalue chain = %v", got)
	}

	mirror := reg.Rvalues[0]
	if mirror.Construct != nil {
		t.Error("mirrored lvalue converter should have no construct stage")
	}
	if ptr, ok := mirror.Convertible(7); !ok || ptr != unsafe.Pointer(&p) {
		t.Errorf("Convertible(7) = %p, %v", ptr, ok)
	}
	if _, ok := mirror.Convertible(8); ok {
		t.Error("Convertible(8) should fail")
	}
	if reg.ExpectedForeignType() != "Point" {
		t.Errorf("ExpectedForeignType = %q, want Point", reg.ExpectedForeignType())
	}
}

func TestRegistry_ClassLink(t *testing.T) {
	r, tbl, _ := newRegistry(t)
	k := typekey.Of[point](tbl)

	_, err := r.Lookup(k).ClassObject()
	if !errors.IsKind(err, errors.KindNoClass) {
		t.Errorf("ClassObject error = %v, want no_class", err)
	}

	r.SetClass(k, 42, "Point")
	reg := r.Lookup(k)
	if c, err := reg.ClassObject(); err != nil || c != 42 {
		t.Errorf("ClassObject = %d, %v", c, err)
	}
	r.InsertRvalue(k, RvalueConverter{Name: "tuple", ForeignType: "tuple"})
	if reg.ExpectedForeignType() != "Point" {
		t.Errorf("ExpectedForeignType = %q, the class should win", reg.ExpectedForeignType())
	}
}

func TestRegistry_Keys(t *testing.T) {
	r, tbl, _ := newRegistry(t)
	c := tbl.Named("c")
	a := tbl.Named("a")
	b := tbl.Named("b")

	r.Lookup(b)
	r.Lookup(c)
	r.Lookup(a)

	keys := r.Keys()
	if len(keys) != 3 || r.Len() != 3 {
		t.Fatalf("Keys = %v, Len = %d", keys, r.Len())
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Errorf("Keys not sorted: %v", keys)
		}
	}
	if r.Types() != tbl {
		t.Error("Types should return the configured table")
	}
}
