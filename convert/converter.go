package convert

import (
	"unsafe"

	"github.com/wippyai/objbridge/castgraph"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/instance"
	"github.com/wippyai/objbridge/registry"
	"github.com/wippyai/objbridge/typekey"
)

// Converter bundles what a conversion consults.
type Converter struct {
	Registry  *registry.Registry
	Graph     *castgraph.Graph
	Runtime   host.Runtime
	Overrides *instance.Overrides

	visiting map[typekey.Key]bool
}

// New creates a converter.
func New(reg *registry.Registry, graph *castgraph.Graph, rt host.Runtime, overrides *instance.Overrides) *Converter {
	return &Converter{
		Registry:  reg,
		Graph:     graph,
		Runtime:   rt,
		Overrides: overrides,
		visiting:  make(map[typekey.Key]bool),
	}
}

// Types returns the table keying the registry.
func (c *Converter) Types() *typekey.Table {
	return c.Registry.Types()
}

// Key returns the key of T in the converter's table.
func Key[T any](c *Converter) typekey.Key {
	return typekey.Of[T](c.Types())
}

func (c *Converter) name(k typekey.Key) string {
	return c.Types().Name(k)
}

// Lvalue returns the address of a value of type k embedded in h, or nil.
func (c *Converter) Lvalue(h host.Handle, k typekey.Key) unsafe.Pointer {
	if inst, ok := instance.Of(c.Runtime, h); ok {
		if p := inst.Find(k, false); p != nil {
			return p
		}
	}
	reg := c.Registry.Query(k)
	if reg == nil {
		return nil
	}
	for _, lv := range reg.Lvalues {
		if p := lv.Convert(h); p != nil {
			return p
		}
	}
	return nil
}

type stage1 struct {
	construct   registry.ConstructFunc
	convertible unsafe.Pointer
	ok          bool
}

func (c *Converter) stage1(h host.Handle, k typekey.Key) stage1 {
	reg := c.Registry.Query(k)
	if inst, ok := instance.Of(c.Runtime, h); ok {
		// a null smart pointer falls through to the rvalue chain
		shared := reg != nil && reg.IsShared
		if p := inst.Find(k, shared); p != nil {
			return stage1{convertible: p, ok: true}
		}
	}
	if reg == nil {
		return stage1{}
	}
	for _, rv := range reg.Rvalues {
		if data, ok := rv.Convertible(h); ok {
			return stage1{convertible: data, construct: rv.Construct, ok: true}
		}
	}
	return stage1{}
}

// convertible reports whether an rvalue of type k can be made from h. It is
// the check used by implicit conversions and refuses to re-enter a chain that
// is already being tried.
func (c *Converter) convertible(h host.Handle, k typekey.Key) bool {
	if inst, ok := instance.Of(c.Runtime, h); ok && inst.Find(k, false) != nil {
		return true
	}
	reg := c.Registry.Query(k)
	if reg == nil || c.visiting[k] {
		return false
	}
	c.visiting[k] = true
	defer delete(c.visiting, k)
	for _, rv := range reg.Rvalues {
		if _, ok := rv.Convertible(h); ok {
			return true
		}
	}
	return false
}
