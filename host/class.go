package host

import (
	"maps"
	"slices"

	"github.com/wippyai/objbridge/errors"
)

// NewClass creates a class. Bases must be classes.
func (l *Local) NewClass(spec ClassSpec) (Handle, error) {
	if spec.Name == "" {
		return 0, errors.InvalidInput(errors.PhaseHost, "class name is empty")
	}
	c := &classObj{
		attrs:     make(map[string]Handle),
		finalizer: spec.Finalizer,
		name:      spec.Name,
		size:      spec.InstanceSize,
		native:    spec.Native,
	}
	for _, b := range spec.Bases {
		bc, ok := l.class(b)
		if !ok {
			return 0, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
				ForeignType(l.TypeName(b)).
				Detail("base of %s is not a class", spec.Name).
				Build()
		}
		// subclasses keep room for the storage their bases carve
		c.size = max(c.size, bc.size)
	}
	for _, b := range spec.Bases {
		l.Incref(b)
		c.bases = append(c.bases, b)
	}

	h := l.insert(KindClass, c)
	if h == 0 {
		for _, b := range c.bases {
			l.Decref(b)
		}
		return 0, errors.InvalidInput(errors.PhaseHost, "runtime is closed")
	}
	c.mro = l.linearize(h, c)
	return h, nil
}

// linearize orders a class and its bases depth-first, left to right, each
// class once.
func (l *Local) linearize(h Handle, c *classObj) []Handle {
	out := []Handle{h}
	seen := map[Handle]bool{h: true}
	for _, b := range c.bases {
		bc, ok := l.class(b)
		if !ok {
			continue
		}
		for _, m := range bc.mro {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

func (l *Local) class(h Handle) (*classObj, bool) {
	v, ok := l.get(h)
	if !ok {
		return nil, false
	}
	c, ok := v.(*classObj)
	return c, ok
}

// ClassName returns the name of a class, or "" if h is not one.
func (l *Local) ClassName(h Handle) string {
	c, ok := l.class(h)
	if !ok {
		return ""
	}
	return c.name
}

// ClassOf returns the class of an instance as a borrowed reference, or 0.
func (l *Local) ClassOf(h Handle) Handle {
	o, ok := l.instance(h)
	if !ok {
		return 0
	}
	return o.class
}

// Bases returns the borrowed direct bases of a class.
func (l *Local) Bases(h Handle) []Handle {
	c, ok := l.class(h)
	if !ok {
		return nil
	}
	return append([]Handle(nil), c.bases...)
}

// IsNativeClass reports whether the class was created for a Go type.
func (l *Local) IsNativeClass(h Handle) bool {
	c, ok := l.class(h)
	return ok && c.native
}

func (l *Local) IsSubclass(class, base Handle) bool {
	c, ok := l.class(class)
	if !ok {
		return false
	}
	for _, m := range c.mro {
		if m == base {
			return true
		}
	}
	return false
}

// IsInstance reads the instance's type tag from its arena header.
func (l *Local) IsInstance(h Handle, class Handle) bool {
	o, ok := l.instance(h)
	if !ok {
		return false
	}
	tag, err := l.arena.ReadU32(o.addr + offTypeTag)
	if err != nil {
		return false
	}
	return l.IsSubclass(Handle(tag), class)
}

func (l *Local) lookupClass(class Handle, name string) (Handle, bool) {
	c, ok := l.class(class)
	if !ok {
		return 0, false
	}
	for _, m := range c.mro {
		mc, ok := l.class(m)
		if !ok {
			continue
		}
		if a, ok := mc.attrs[name]; ok {
			return a, true
		}
	}
	return 0, false
}

func (l *Local) finalizerFor(class Handle) Finalizer {
	c, ok := l.class(class)
	if !ok {
		return nil
	}
	for _, m := range c.mro {
		if mc, ok := l.class(m); ok && mc.finalizer != nil {
			return mc.finalizer
		}
	}
	return nil
}

// AttributeNames returns the sorted names defined directly on a class.
func (l *Local) AttributeNames(class Handle) []string {
	c, ok := l.class(class)
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(c.attrs))
}

// GetAttribute resolves name on the instance dictionary, then on the class
// and its bases. Functions found on the class of an instance come back bound.
func (l *Local) GetAttribute(h Handle, name string) (Handle, error) {
	v, ok := l.get(h)
	if !ok {
		return 0, errors.InvalidHandle(errors.PhaseHost, uint32(h))
	}
	switch o := v.(type) {
	case *instanceObj:
		if a, ok := o.dict[name]; ok {
			l.Incref(a)
			return a, nil
		}
		a, ok := l.lookupClass(o.class, name)
		if !ok {
			break
		}
		if l.Kind(a) == KindFunc {
			l.Incref(h)
			l.Incref(a)
			return l.insert(KindMethod, &methodObj{self: h, fn: a}), nil
		}
		l.Incref(a)
		return a, nil
	case *classObj:
		if a, ok := l.lookupClass(h, name); ok {
			l.Incref(a)
			return a, nil
		}
	}
	return 0, errors.NotFound(errors.PhaseHost, "attribute", l.TypeName(h)+"."+name)
}

// SetAttribute stores v on an instance dictionary or a class.
func (l *Local) SetAttribute(h Handle, name string, v Handle) error {
	o, ok := l.get(h)
	if !ok {
		return errors.InvalidHandle(errors.PhaseHost, uint32(h))
	}
	var attrs map[string]Handle
	switch x := o.(type) {
	case *instanceObj:
		if x.dict == nil {
			x.dict = make(map[string]Handle)
		}
		attrs = x.dict
	case *classObj:
		attrs = x.attrs
	default:
		return errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			ForeignType(l.TypeName(h)).
			Detail("cannot set attribute %q", name).
			Build()
	}
	l.Incref(v)
	old, had := attrs[name]
	attrs[name] = v
	if had {
		l.Decref(old)
	}
	return nil
}

// NewFunc creates a function. native marks functions implemented by the
// bridge; functions defined on the host side are not native.
func (l *Local) NewFunc(name string, native bool, fn CallFunc) Handle {
	return l.insert(KindFunc, &funcObj{fn: fn, name: name, native: native})
}

// IsNativeFunc reports whether h is a native function or a method bound to one.
func (l *Local) IsNativeFunc(h Handle) bool {
	v, ok := l.get(h)
	if !ok {
		return false
	}
	switch o := v.(type) {
	case *funcObj:
		return o.native
	case *methodObj:
		return l.IsNativeFunc(o.fn)
	}
	return false
}

// Call invokes a function, a bound method, or a class. Calling a class
// allocates an instance and runs its __init__ with the instance first.
func (l *Local) Call(callable Handle, args ...Handle) (Handle, error) {
	v, ok := l.get(callable)
	if !ok {
		return 0, errors.InvalidHandle(errors.PhaseHost, uint32(callable))
	}
	switch o := v.(type) {
	case *funcObj:
		return l.invoke(o, args)
	case *methodObj:
		f, ok := l.funcOf(o.fn)
		if !ok {
			return 0, errors.NotCallable(l.TypeName(o.fn))
		}
		full := make([]Handle, 0, len(args)+1)
		full = append(full, o.self)
		full = append(full, args...)
		return l.invoke(f, full)
	case *classObj:
		inst, err := l.Allocate(callable, 0)
		if err != nil {
			return 0, err
		}
		init, ok := l.lookupClass(callable, "__init__")
		if !ok {
			return inst, nil
		}
		f, ok := l.funcOf(init)
		if !ok {
			l.Decref(inst)
			return 0, errors.NotCallable(l.TypeName(init))
		}
		full := make([]Handle, 0, len(args)+1)
		full = append(full, inst)
		full = append(full, args...)
		r, err := l.invoke(f, full)
		if err != nil {
			l.Decref(inst)
			return 0, err
		}
		l.Decref(r)
		return inst, nil
	}
	return 0, errors.NotCallable(l.TypeName(callable))
}

func (l *Local) funcOf(h Handle) (*funcObj, bool) {
	v, ok := l.get(h)
	if !ok {
		return nil, false
	}
	f, ok := v.(*funcObj)
	return f, ok
}

func (l *Local) invoke(f *funcObj, args []Handle) (Handle, error) {
	r, err := f.fn(args)
	if err != nil {
		return 0, err
	}
	if r == 0 {
		return l.None(), nil
	}
	return r, nil
}
