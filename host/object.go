package host

// Object owns one reference to a host object. It is the object-manager type
// of the bridge: converting an Object to the host side only adds a reference.
type Object struct {
	rt Runtime
	h  Handle
}

// Steal wraps h, taking over the caller's reference.
func Steal(rt Runtime, h Handle) Object {
	return Object{rt: rt, h: h}
}

// Borrow wraps h with a new reference.
func Borrow(rt Runtime, h Handle) Object {
	rt.Incref(h)
	return Object{rt: rt, h: h}
}

// Handle returns the wrapped handle without adding a reference.
func (o Object) Handle() Handle {
	return o.h
}

// Runtime returns the runtime the handle belongs to.
func (o Object) Runtime() Runtime {
	return o.rt
}

// IsNull reports whether o wraps no object.
func (o Object) IsNull() bool {
	return o.h == 0
}

// New returns a new reference to the wrapped handle.
func (o Object) New() Handle {
	if o.h != 0 {
		o.rt.Incref(o.h)
	}
	return o.h
}

// Clone returns a second Object holding its own reference.
func (o Object) Clone() Object {
	if o.h == 0 {
		return o
	}
	return Borrow(o.rt, o.h)
}

// Close drops the reference. o must not be used afterwards.
func (o Object) Close() {
	if o.h != 0 && o.rt != nil {
		o.rt.Decref(o.h)
	}
}
