package instance

import (
	"unsafe"

	"github.com/wippyai/objbridge/castgraph"
	"github.com/wippyai/objbridge/typekey"
)

// ValueHolder embeds a T in the instance.
type ValueHolder[T any] struct {
	graph *castgraph.Graph
	value *T
	key   typekey.Key
}

// NewValue constructs a T in inst's storage with init and installs a holder
// for it. The holder is not installed when init fails.
func NewValue[T any](inst *Instance, key typekey.Key, graph *castgraph.Graph, init func(*T) error) (*ValueHolder[T], error) {
	p := Storage[T](inst)
	if init != nil {
		if err := init(p); err != nil {
			var zero T
			*p = zero
			return nil, err
		}
	}
	h := &ValueHolder[T]{graph: graph, value: p, key: key}
	inst.Install(h)
	return h, nil
}

// Value returns the embedded value.
func (h *ValueHolder[T]) Value() *T {
	return h.value
}

func (h *ValueHolder[T]) Holds(dst typekey.Key, _ bool) unsafe.Pointer {
	if h.value == nil {
		return nil
	}
	p := unsafe.Pointer(h.value)
	if dst == h.key {
		return p
	}
	return h.graph.FindStaticType(p, h.key, dst)
}

func (h *ValueHolder[T]) Release() {
	if h.value == nil {
		return
	}
	if d, ok := any(h.value).(Dropper); ok {
		d.Drop()
	}
	var zero T
	*h.value = zero
	h.value = nil
}

// Ownership says whether a PointerHolder releases its pointee.
type Ownership int

const (
	// Owned pointees are dropped on release.
	Owned Ownership = iota

	// Borrowed pointees belong to someone else and outlive the holder.
	Borrowed
)

func (o Ownership) String() string {
	if o == Borrowed {
		return "borrowed"
	}
	return "owned"
}

// PointerHolder holds a *T.
type PointerHolder[T any] struct {
	graph  *castgraph.Graph
	alive  func() bool
	ptr    *T
	key    typekey.Key
	ptrKey typekey.Key
	own    Ownership
}

// NewPointer installs a holder for p. key names T and ptrKey names *T.
func NewPointer[T any](inst *Instance, p *T, key, ptrKey typekey.Key, graph *castgraph.Graph, own Ownership) *PointerHolder[T] {
	h := &PointerHolder[T]{graph: graph, ptr: p, key: key, ptrKey: ptrKey, own: own}
	inst.Install(h)
	return h
}

// Guard makes the holder refuse to hand out its pointer once alive reports
// false. It is meant for borrowed pointers whose owner may go away.
func (h *PointerHolder[T]) Guard(alive func() bool) {
	h.alive = alive
}

// Pointer returns the held pointer.
func (h *PointerHolder[T]) Pointer() *T {
	return h.ptr
}

// Ownership returns how the pointee is held.
func (h *PointerHolder[T]) Ownership() Ownership {
	return h.own
}

func (h *PointerHolder[T]) Holds(dst typekey.Key, nullPtrOnly bool) unsafe.Pointer {
	if h.alive != nil && !h.alive() {
		return nil
	}
	if dst == h.ptrKey && !(nullPtrOnly && h.ptr == nil) {
		return unsafe.Pointer(&h.ptr)
	}
	if h.ptr == nil {
		return nil
	}
	p := unsafe.Pointer(h.ptr)
	if dst == h.key {
		return p
	}
	return h.graph.FindDynamicType(p, h.key, dst)
}

func (h *PointerHolder[T]) Release() {
	if h.own == Owned && h.ptr != nil {
		if d, ok := any(h.ptr).(Dropper); ok {
			d.Drop()
		}
	}
	h.ptr = nil
}

// SharedHolder holds one use of a *Shared[T].
type SharedHolder[T any] struct {
	graph     *castgraph.Graph
	sp        *Shared[T]
	key       typekey.Key
	sharedKey typekey.Key
}

// NewSharedHolder installs a holder taking over one use of sp. key names T and
// sharedKey names *Shared[T].
func NewSharedHolder[T any](inst *Instance, sp *Shared[T], key, sharedKey typekey.Key, graph *castgraph.Graph) *SharedHolder[T] {
	h := &SharedHolder[T]{graph: graph, sp: sp, key: key, sharedKey: sharedKey}
	inst.Install(h)
	return h
}

// Shared returns the held smart pointer.
func (h *SharedHolder[T]) Shared() *Shared[T] {
	return h.sp
}

func (h *SharedHolder[T]) Holds(dst typekey.Key, nullPtrOnly bool) unsafe.Pointer {
	if dst == h.sharedKey && !(nullPtrOnly && h.sp.Get() == nil) {
		return unsafe.Pointer(&h.sp)
	}
	p := h.sp.Get()
	if p == nil {
		return nil
	}
	if dst == h.key {
		return unsafe.Pointer(p)
	}
	return h.graph.FindDynamicType(unsafe.Pointer(p), h.key, dst)
}

func (h *SharedHolder[T]) Release() {
	h.sp.Release()
}
