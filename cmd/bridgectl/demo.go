package main

import (
	"fmt"
	"unsafe"

	"github.com/wippyai/objbridge/bridge"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/typekey"
)

type Engine struct {
	HP int
}

func (e *Engine) Power() int { return e.HP }

type Car struct {
	Name string
	Engine
}

type Animal struct {
	bridge.Dynamic
	Legs int
}

func (a *Animal) Describe() string { return fmt.Sprintf("%d legs", a.Legs) }

type Dog struct {
	Name string
	Animal
}

type Cat struct {
	Lives int
	Animal
}

// sample is one host-created object seen through one of its static types.
type sample struct {
	object *bridge.Class
	view   *bridge.Class
	ptr    unsafe.Pointer
}

func (s sample) String() string {
	if s.object == s.view {
		return s.object.Name()
	}
	return s.object.Name() + " as " + s.view.Name()
}

type demo struct {
	b       *bridge.Bridge
	classes map[string]*bridge.Class
	objects map[typekey.Key]unsafe.Pointer
	handles []host.Handle
}

func newDemo(b *bridge.Bridge) (*demo, error) {
	if _, err := bridge.ExposeClass[Engine](b, "Engine", bridge.Methods()); err != nil {
		return nil, err
	}
	if _, err := bridge.ExposeClass[Car](b, "Car",
		bridge.Bases(bridge.BaseOf(func(c *Car) *Engine { return &c.Engine }))); err != nil {
		return nil, err
	}
	if _, err := bridge.ExposeClass[Animal](b, "Animal", bridge.Polymorphic(), bridge.Methods()); err != nil {
		return nil, err
	}
	if _, err := bridge.ExposeClass[Dog](b, "Dog",
		bridge.Bases(bridge.BaseOf(func(d *Dog) *Animal { return &d.Animal }))); err != nil {
		return nil, err
	}
	if _, err := bridge.ExposeClass[Cat](b, "Cat",
		bridge.Bases(bridge.BaseOf(func(c *Cat) *Animal { return &c.Animal }))); err != nil {
		return nil, err
	}

	d := &demo{
		b:       b,
		classes: make(map[string]*bridge.Class),
		objects: make(map[typekey.Key]unsafe.Pointer),
	}
	for _, c := range b.Classes() {
		d.classes[c.Name()] = c
	}
	if err := d.create(func() (host.Handle, unsafe.Pointer, error) {
		h, p, err := bridge.Construct[Engine](b)
		return h, unsafe.Pointer(p), err
	}); err != nil {
		return nil, err
	}
	if err := d.create(func() (host.Handle, unsafe.Pointer, error) {
		h, p, err := bridge.Construct[Car](b)
		return h, unsafe.Pointer(p), err
	}); err != nil {
		return nil, err
	}
	if err := d.create(func() (host.Handle, unsafe.Pointer, error) {
		h, p, err := bridge.Construct[Animal](b)
		return h, unsafe.Pointer(p), err
	}); err != nil {
		return nil, err
	}
	if err := d.create(func() (host.Handle, unsafe.Pointer, error) {
		h, p, err := bridge.Construct[Dog](b)
		return h, unsafe.Pointer(p), err
	}); err != nil {
		return nil, err
	}
	if err := d.create(func() (host.Handle, unsafe.Pointer, error) {
		h, p, err := bridge.Construct[Cat](b)
		return h, unsafe.Pointer(p), err
	}); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *demo) create(fn func() (host.Handle, unsafe.Pointer, error)) error {
	h, p, err := fn()
	if err != nil {
		return err
	}
	d.handles = append(d.handles, h)
	c := d.classOfHandle(h)
	if c == nil {
		return fmt.Errorf("no class for instance %d", h)
	}
	d.objects[c.Key()] = p
	return nil
}

func (d *demo) classOfHandle(h host.Handle) *bridge.Class {
	class := d.b.Runtime().ClassOf(h)
	for _, c := range d.classes {
		if c.Handle() == class {
			return c
		}
	}
	return nil
}

func (d *demo) close() {
	for _, h := range d.handles {
		d.b.Runtime().Decref(h)
	}
	d.handles = nil
}

// samples lists every object viewed as each type it upcasts to.
func (d *demo) samples() []sample {
	var out []sample
	g := d.b.Graph()
	for _, obj := range d.b.Classes() {
		p := d.objects[obj.Key()]
		for _, view := range d.b.Classes() {
			q := p
			if view != obj {
				q = g.FindStaticType(p, obj.Key(), view.Key())
				if q == nil {
					continue
				}
			}
			out = append(out, sample{object: obj, view: view, ptr: q})
		}
	}
	return out
}

// sampleFor returns the object of class object seen as class view.
func (d *demo) sampleFor(object, view string) (sample, error) {
	if view == "" {
		view = object
	}
	for _, s := range d.samples() {
		if s.object.Name() == object && s.view.Name() == view {
			return s, nil
		}
	}
	if _, ok := d.classes[object]; !ok {
		return sample{}, fmt.Errorf("unknown class %q", object)
	}
	if _, ok := d.classes[view]; !ok {
		return sample{}, fmt.Errorf("unknown class %q", view)
	}
	return sample{}, fmt.Errorf("%s is not a %s", object, view)
}

// castResult describes casting s to the class named target.
type castResult struct {
	from   sample
	to     *bridge.Class
	ptr    unsafe.Pointer
	offset int64
}

func (r castResult) String() string {
	if r.ptr == nil {
		return fmt.Sprintf("%s -> %s: unreachable", r.from, r.to.Name())
	}
	return fmt.Sprintf("%s -> %s: %+d bytes from the %s object", r.from, r.to.Name(), r.offset, r.from.object.Name())
}

func (d *demo) cast(s sample, target string) (castResult, error) {
	to, ok := d.classes[target]
	if !ok {
		return castResult{}, fmt.Errorf("unknown class %q", target)
	}
	r := castResult{from: s, to: to}
	r.ptr = d.b.Graph().Cast(s.ptr, s.view.Key(), to.Key())
	if r.ptr != nil {
		r.offset = int64(uintptr(r.ptr)) - int64(uintptr(d.objects[s.object.Key()]))
	}
	return r, nil
}
