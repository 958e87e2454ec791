package bridge

import (
	"reflect"
	"unsafe"

	"github.com/wippyai/objbridge/convert"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/instance"
	"github.com/wippyai/objbridge/typekey"
	"go.uber.org/zap"
)

// Class is a Go type exposed as a host class.
type Class struct {
	typ       reflect.Type
	dynamicOf func(unsafe.Pointer) *Dynamic

	// value copies *src, or a zero T for nil, into a new value holder and
	// runs init on it. The holder is not installed when init fails.
	value   func(inst *instance.Instance, src unsafe.Pointer, init func(unsafe.Pointer) error) (unsafe.Pointer, error)
	// pointer installs a holder for a *T.
	pointer func(inst *instance.Instance, p unsafe.Pointer, own instance.Ownership)
	// shared installs a holder taking over one use of a *instance.Shared[T].
	shared  func(inst *instance.Instance, sp unsafe.Pointer) unsafe.Pointer

	name    string
	bases   []typekey.Key
	methods []string
	handle  host.Handle
	key     typekey.Key
	backref bool
}

// Name returns the host class name.
func (c *Class) Name() string { return c.name }

// Handle returns the class object. The reference is borrowed from the bridge.
func (c *Class) Handle() host.Handle { return c.handle }

// Key returns the type key of the exposed type.
func (c *Class) Key() typekey.Key { return c.key }

// Type returns the exposed Go type.
func (c *Class) Type() reflect.Type { return c.typ }

// Bases returns the keys of the declared bases in order.
func (c *Class) Bases() []typekey.Key { return c.bases }

// Methods returns the names of the native methods.
func (c *Class) Methods() []string { return c.methods }

// Polymorphic reports whether the class resolves dynamic types.
func (c *Class) Polymorphic() bool { return c.dynamicOf != nil }

// BackReference reports whether instances bind their Go objects to
// themselves for override dispatch.
func (c *Class) BackReference() bool { return c.backref }

type classSpec struct {
	typ         reflect.Type
	init        *callable
	bases       []BaseSpec
	methods     map[string]*callable
	order       []string
	noInit      bool
	polymorphic bool
	backref     bool
}

// ClassOption configures ExposeClass.
type ClassOption func(*classSpec) error

// Bases declares the direct bases of the class. Every base must already be
// exposed.
func Bases(bases ...BaseSpec) ClassOption {
	return func(s *classSpec) error {
		for _, bs := range bases {
			if bs.derived != s.typ {
				return errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
					GoType(s.typ.String()).
					Detail("base %s is declared for %s", bs.base, bs.derived).
					Build()
			}
		}
		s.bases = append(s.bases, bases...)
		return nil
	}
}

// Init sets the constructor run by __init__. fn is func(*T, args...) with no
// results or a single error; it initializes the value in place.
func Init(fn any) ClassOption {
	return func(s *classSpec) error {
		c, err := newCallable("__init__", fn, s.typ)
		if err != nil {
			return err
		}
		if len(c.results) != 0 {
			return errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
				GoType(c.fn.Type().String()).
				Detail("constructor may only return an error").
				Build()
		}
		s.init = c
		return nil
	}
}

// NoInit makes the class impossible to instantiate from the host side.
func NoInit() ClassOption {
	return func(s *classSpec) error {
		s.noInit = true
		return nil
	}
}

// Method adds a native method. fn is func(*T, args...) with up to one result
// and an optional trailing error.
func Method(name string, fn any) ClassOption {
	return func(s *classSpec) error {
		c, err := newCallable(name, fn, s.typ)
		if err != nil {
			return err
		}
		s.addMethod(name, c)
		return nil
	}
}

// Methods adds every exported method of *T under its snake_case name:
// GetHTTPClient becomes get_http_client.
func Methods() ClassOption {
	return func(s *classSpec) error {
		pt := reflect.PointerTo(s.typ)
		for i := 0; i < pt.NumMethod(); i++ {
			m := pt.Method(i)
			if m.Name == "DynamicSelf" || m.Name == "Drop" {
				continue
			}
			name := toSnakeCase(m.Name)
			c, err := newCallable(name, m.Func.Interface(), s.typ)
			if err != nil {
				return err
			}
			s.addMethod(name, c)
		}
		return nil
	}
}

func (s *classSpec) addMethod(name string, c *callable) {
	if s.methods == nil {
		s.methods = make(map[string]*callable)
	}
	if _, ok := s.methods[name]; !ok {
		s.order = append(s.order, name)
	}
	s.methods[name] = c
}

// Polymorphic makes casts from the class resolve the most-derived object
// first. *T must implement Polymorph, usually by embedding Dynamic.
func Polymorphic() ClassOption {
	return func(s *classSpec) error {
		if !reflect.PointerTo(s.typ).Implements(reflect.TypeFor[Polymorph]()) {
			return errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
				GoType(s.typ.String()).
				Detail("polymorphic class must embed bridge.Dynamic").
				Build()
		}
		s.polymorphic = true
		return nil
	}
}

// BackReference binds every Go object held by an instance of the class to
// the instance, so CallOverride reaches methods a host subclass defines and
// converting the object back yields the same instance.
func BackReference() ClassOption {
	return func(s *classSpec) error {
		s.backref = true
		return nil
	}
}

// BaseSpec declares that D derives from B.
type BaseSpec struct {
	derived reflect.Type
	base    reflect.Type
	add     func(b *Bridge) error
}

// BaseOf declares B as a base of D reached through up. A downcast from B is
// registered as well when B is polymorphic; it succeeds only for objects
// whose most-derived type is, or derives from, D.
func BaseOf[D, B any](up func(*D) *B) BaseSpec {
	return BaseSpec{
		derived: reflect.TypeFor[D](),
		base:    reflect.TypeFor[B](),
		add: func(b *Bridge) error {
			kd, kb := typekey.Of[D](b.types), typekey.Of[B](b.types)
			b.graph.AddCast(kd, kb, func(p unsafe.Pointer) unsafe.Pointer {
				return unsafe.Pointer(up((*D)(p)))
			}, false)
			if b.graph.Polymorphic(kb) {
				b.graph.AddCast(kb, kd, func(p unsafe.Pointer) unsafe.Pointer {
					mp, mk := b.graph.DynamicID(p, kb)
					if mk == kb {
						return nil
					}
					return b.graph.FindStaticType(mp, mk, kd)
				}, true)
			}
			return nil
		},
	}
}

// RegisterBase adds the cast edges of BaseOf for types that are not exposed
// as classes, such as Go-only intermediate types.
func RegisterBase[D, B any](b *Bridge, up func(*D) *B) error {
	return BaseOf(up).add(b)
}

// ExposeClass creates the host class name for T and registers its
// conversions: values convert to the host by copy, instances convert back by
// reference to the embedded value, and *instance.Shared[T] converts both
// ways sharing ownership.
func ExposeClass[T any](b *Bridge, name string, opts ...ClassOption) (*Class, error) {
	t := reflect.TypeFor[T]()
	k := b.types.For(t)
	if _, dup := b.classes[k]; dup {
		return nil, errors.DuplicateRegistration(t.String(), "class")
	}

	spec := &classSpec{typ: t}
	for _, opt := range opts {
		if err := opt(spec); err != nil {
			return nil, err
		}
	}

	var baseHandles []host.Handle
	var baseKeys []typekey.Key
	for _, bs := range spec.bases {
		bk := b.types.For(bs.base)
		bc, ok := b.classes[bk]
		if !ok {
			return nil, errors.NoClassObject(bs.base.String())
		}
		baseHandles = append(baseHandles, bc.handle)
		baseKeys = append(baseKeys, bk)
	}

	var size uint32
	if b.cfg.InlineStorage {
		size = instance.SizeFor[T]()
	}
	h, err := b.rt.NewClass(host.ClassSpec{
		Name:         name,
		Bases:        baseHandles,
		InstanceSize: size,
		Finalizer:    instance.Finalize,
		Native:       true,
	})
	if err != nil {
		return nil, err
	}

	ptrKey := typekey.Of[*T](b.types)
	sharedKey := typekey.Of[*instance.Shared[T]](b.types)
	c := &Class{
		typ:     t,
		name:    name,
		handle:  h,
		key:     k,
		bases:   baseKeys,
		backref: spec.backref,
		value: func(inst *instance.Instance, src unsafe.Pointer, init func(unsafe.Pointer) error) (unsafe.Pointer, error) {
			vh, err := instance.NewValue(inst, k, b.graph, func(p *T) error {
				if src != nil {
					*p = *(*T)(src)
				}
				if init != nil {
					return init(unsafe.Pointer(p))
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			return unsafe.Pointer(vh.Value()), nil
		},
		pointer: func(inst *instance.Instance, p unsafe.Pointer, own instance.Ownership) {
			instance.NewPointer(inst, (*T)(p), k, ptrKey, b.graph, own)
		},
		shared: func(inst *instance.Instance, sp unsafe.Pointer) unsafe.Pointer {
			sh := instance.NewSharedHolder(inst, (*instance.Shared[T])(sp), k, sharedKey, b.graph)
			return unsafe.Pointer(sh.Shared().Get())
		},
	}

	if spec.polymorphic {
		c.dynamicOf = func(p unsafe.Pointer) *Dynamic {
			return any((*T)(p)).(Polymorph).DynamicSelf()
		}
	}

	// nothing is registered until the host class is complete
	if err := b.defineClass(c, spec); err != nil {
		b.rt.Decref(h)
		return nil, err
	}
	for _, bs := range spec.bases {
		if err := bs.add(b); err != nil {
			b.rt.Decref(h)
			return nil, err
		}
	}

	if c.dynamicOf != nil {
		b.graph.RegisterDynamicID(k, func(p unsafe.Pointer) (unsafe.Pointer, typekey.Key) {
			d := c.dynamicOf(p)
			if d.self == nil {
				return p, k
			}
			return d.self, d.key
		})
	}
	b.classes[k] = c
	b.reg.SetClass(k, h, name)
	b.reg.InsertToForeign(k, func(p unsafe.Pointer) (host.Handle, error) {
		return b.wrapValue(c, p)
	})
	convert.RegisterShared[T](b.conv)
	b.reg.InsertToForeign(sharedKey, func(pp unsafe.Pointer) (host.Handle, error) {
		return ManageShared(b, (*(**instance.Shared[T])(pp)).Clone())
	})

	b.log.Debug("class exposed",
		zap.String("class", name),
		zap.String("type", t.String()),
		zap.Int("bases", len(baseKeys)),
		zap.Uint32("instance_size", size),
		zap.Bool("polymorphic", spec.polymorphic))
	return c, nil
}

// ClassOf returns the class exposing T.
func ClassOf[T any](b *Bridge) (*Class, bool) {
	c, ok := b.classes[typekey.Of[T](b.types)]
	return c, ok
}

// Classes returns the exposed classes ordered by type key.
func (b *Bridge) Classes() []*Class {
	keys := make([]typekey.Key, 0, len(b.classes))
	for k := range b.classes {
		keys = append(keys, k)
	}
	typekey.Sort(keys)
	out := make([]*Class, len(keys))
	for i, k := range keys {
		out[i] = b.classes[k]
	}
	return out
}

func (b *Bridge) attach(h host.Handle) (*instance.Instance, error) {
	var opts []instance.AttachOption
	if !b.cfg.InlineStorage {
		opts = append(opts, instance.HeapStorage())
	}
	return instance.Attach(b.rt, h, opts...)
}

// newInstance allocates an uninitialized instance of c.
func (b *Bridge) newInstance(c *Class) (host.Handle, *instance.Instance, error) {
	h, err := b.rt.Allocate(c.handle, 0)
	if err != nil {
		return 0, nil, err
	}
	inst, err := b.attach(h)
	if err != nil {
		b.rt.Decref(h)
		return 0, nil, err
	}
	return h, inst, nil
}

// adopt finishes an instance holding p, an object of c's type.
func (b *Bridge) adopt(c *Class, inst *instance.Instance, p unsafe.Pointer, copied bool) {
	b.track(p, c.key, copied)
	if c.backref {
		inst.Bind(b.overrides, p)
	}
}

// wrapValue is the to-foreign function of exposed classes.
func (b *Bridge) wrapValue(c *Class, src unsafe.Pointer) (host.Handle, error) {
	h, inst, err := b.newInstance(c)
	if err != nil {
		return 0, err
	}
	p, err := c.value(inst, src, nil)
	if err != nil {
		b.rt.Decref(h)
		return 0, err
	}
	b.adopt(c, inst, p, true)
	return h, nil
}

func (b *Bridge) defineClass(c *Class, spec *classSpec) error {
	if err := b.defineInit(c, spec); err != nil {
		return err
	}
	for _, m := range spec.order {
		if err := b.defineMethod(c, m, spec.methods[m]); err != nil {
			return err
		}
		c.methods = append(c.methods, m)
	}
	return nil
}

func (b *Bridge) defineInit(c *Class, spec *classSpec) error {
	fn := func(args []host.Handle) (host.Handle, error) {
		if len(args) == 0 {
			return 0, errors.InvalidInput(errors.PhaseHost, "__init__ needs an instance")
		}
		self := args[0]
		if spec.noInit {
			return 0, errors.New(errors.PhaseHost, errors.KindNotCallable).
				ForeignType(c.name).
				Detail("class cannot be instantiated").
				Build()
		}
		inst, attached := instance.Of(b.rt, self)
		if attached && inst.Find(c.key, false) != nil {
			return 0, errors.New(errors.PhaseHost, errors.KindInvalidInput).
				ForeignType(b.rt.TypeName(self)).
				GoType(c.typ.String()).
				Detail("instance already initialized").
				Build()
		}
		if spec.init == nil && len(args) > 1 {
			return 0, errors.New(errors.PhaseFromForeign, errors.KindTypeMismatch).
				ForeignType(c.name).
				Detail("__init__ takes no arguments, got %d", len(args)-1).
				Build()
		}

		if !attached {
			var err error
			if inst, err = b.attach(self); err != nil {
				return 0, err
			}
		}
		var init func(unsafe.Pointer) error
		if spec.init != nil {
			init = func(p unsafe.Pointer) error {
				_, err := spec.init.call(b, p, args[1:])
				return err
			}
		}
		p, err := c.value(inst, nil, init)
		if err != nil {
			return 0, err
		}
		b.adopt(c, inst, p, true)
		return 0, nil
	}
	return b.setFunc(c.handle, "__init__", fn)
}

func (b *Bridge) defineMethod(c *Class, name string, m *callable) error {
	fn := func(args []host.Handle) (host.Handle, error) {
		if len(args) == 0 {
			return 0, errors.InvalidInput(errors.PhaseHost, name+" needs an instance")
		}
		self := b.conv.Lvalue(args[0], c.key)
		if self == nil {
			return 0, errors.TypeMismatch(errors.PhaseFromForeign, []string{name, "self"},
				c.typ.String(), b.rt.TypeName(args[0]))
		}
		out, err := m.call(b, self, args[1:])
		if err != nil {
			return 0, err
		}
		return m.result(b, out)
	}
	return b.setFunc(c.handle, name, fn)
}

func (b *Bridge) setFunc(owner host.Handle, name string, fn host.CallFunc) error {
	f := b.rt.NewFunc(name, true, fn)
	defer b.rt.Decref(f)
	return b.rt.SetAttribute(owner, name, f)
}
