package bridge

import (
	"unsafe"

	"github.com/wippyai/objbridge/typekey"
)

// Dynamic records the most-derived object a value is part of. Embedding it
// in a type exposed with Polymorphic lets the cast graph downcast from that
// type and lets conversions pick the most-derived class.
//
// The bridge fills it in for every object it creates or manages; a value
// built and kept on the Go side resolves to its static type.
type Dynamic struct {
	self unsafe.Pointer
	key  typekey.Key
}

// DynamicSelf returns d. Types embedding Dynamic implement Polymorph through
// it.
func (d *Dynamic) DynamicSelf() *Dynamic { return d }

// Polymorph is implemented by pointers to types embedding Dynamic.
type Polymorph interface {
	DynamicSelf() *Dynamic
}

// track records p, an object of most-derived type k, in the Dynamic of every
// polymorphic class it can be viewed as. Unless force is set a Dynamic that
// already names an object is left alone.
func (b *Bridge) track(p unsafe.Pointer, k typekey.Key, force bool) {
	for _, c := range b.classes {
		if c.dynamicOf == nil {
			continue
		}
		q := p
		if c.key != k {
			q = b.graph.FindStaticType(p, k, c.key)
			if q == nil {
				continue
			}
		}
		d := c.dynamicOf(q)
		if force || d.self == nil {
			d.self, d.key = p, k
		}
	}
}
