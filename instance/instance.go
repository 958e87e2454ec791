package instance

import (
	"reflect"
	"unsafe"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/resource"
	"github.com/wippyai/objbridge/typekey"
	"go.uber.org/zap"
)

// Dropper is implemented by Go values that need cleanup when their owning
// holder is released.
type Dropper = resource.Dropper

// Holder stores or references one Go value inside a host instance.
type Holder interface {
	// Holds returns the address of a value of type dst, or nil. With
	// nullPtrOnly a pointer or smart-pointer holder only answers for its own
	// pointer type when that pointer is non-nil.
	Holds(dst typekey.Key, nullPtrOnly bool) unsafe.Pointer

	// Release lets go of the value.
	Release()
}

type binding struct {
	overrides *Overrides
	p         unsafe.Pointer
}

// Instance is the Go-side record of a host instance.
type Instance struct {
	rt       host.Runtime
	holders  []Holder
	heap     []any
	bindings []binding
	self     host.Handle
	carved   bool
	heapOnly bool
}

// AttachOption configures a new Instance.
type AttachOption func(*Instance)

// HeapStorage makes every value of the instance live on the Go heap.
func HeapStorage() AttachOption {
	return func(i *Instance) {
		i.heapOnly = true
	}
}

// Attach creates the record for host instance h and stores it as h's payload.
func Attach(rt host.Runtime, h host.Handle, opts ...AttachOption) (*Instance, error) {
	inst := &Instance{rt: rt, self: h}
	for _, opt := range opts {
		opt(inst)
	}
	if !rt.SetPayload(h, inst) {
		return nil, errors.New(errors.PhaseHolder, errors.KindTypeMismatch).
			ForeignType(rt.TypeName(h)).
			Detail("not an instance").
			Build()
	}
	return inst, nil
}

// Of returns the record attached to h.
func Of(rt host.Runtime, h host.Handle) (*Instance, bool) {
	inst, ok := rt.Payload(h).(*Instance)
	return inst, ok
}

// Self returns the host handle of the instance. The reference is borrowed.
func (i *Instance) Self() host.Handle {
	return i.self
}

// Runtime returns the runtime owning the instance.
func (i *Instance) Runtime() host.Runtime {
	return i.rt
}

// Install adds h in front of the instance's holders.
func (i *Instance) Install(h Holder) {
	i.holders = append([]Holder{h}, i.holders...)
}

// Holders returns the installed holders, newest first.
func (i *Instance) Holders() []Holder {
	return i.holders
}

// Find asks each holder, newest first, for a value of type dst.
func (i *Instance) Find(dst typekey.Key, nullPtrOnly bool) unsafe.Pointer {
	for _, h := range i.holders {
		if p := h.Holds(dst, nullPtrOnly); p != nil {
			return p
		}
	}
	return nil
}

// Bind records p as implemented by this instance in o until reclaim.
func (i *Instance) Bind(o *Overrides, p unsafe.Pointer) {
	o.Bind(p, i.self)
	i.bindings = append(i.bindings, binding{overrides: o, p: p})
}

// HeapValues returns how many values fell back to the Go heap.
func (i *Instance) HeapValues() int {
	return len(i.heap)
}

// Reclaim unbinds back-references and releases every holder. It runs from the
// class finalizer, after the host handle is gone.
func (i *Instance) Reclaim() {
	for _, b := range i.bindings {
		b.overrides.Unbind(b.p)
	}
	i.bindings = nil
	for _, h := range i.holders {
		h.Release()
	}
	i.holders = nil
	i.heap = nil
	i.self = 0
}

// Finalize is a host.Finalizer reclaiming *Instance payloads.
func Finalize(payload any) {
	if inst, ok := payload.(*Instance); ok {
		inst.Reclaim()
	}
}

// AdditionalInstanceSize is the storage an instance needs to embed a value of
// the given size and alignment anywhere in its storage.
func AdditionalInstanceSize(size, align uintptr) uint32 {
	if size == 0 {
		return 0
	}
	if align == 0 {
		align = 1
	}
	return uint32(size + align - 1)
}

// SizeFor is the instance storage needed to carve a T, or 0 when a T never
// lives in arena storage.
func SizeFor[T any]() uint32 {
	if !PointerFree(reflect.TypeFor[T]()) {
		return 0
	}
	var zero T
	return AdditionalInstanceSize(unsafe.Sizeof(zero), unsafe.Alignof(zero))
}

// PointerFree reports whether values of t contain no Go pointers and may
// therefore live outside the Go heap.
func PointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || PointerFree(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !PointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	}
	return false
}

// Storage returns zeroed storage for a T owned by inst. The first pointer-free
// T that fits is carved from the instance's arena storage; everything else is
// allocated on the Go heap and recorded on the instance.
func Storage[T any](inst *Instance) *T {
	if p := carve[T](inst); p != nil {
		return p
	}
	p := new(T)
	inst.heap = append(inst.heap, p)
	Logger().Debug("holder storage on the Go heap",
		zap.String("type", reflect.TypeFor[T]().String()),
		zap.String("class", inst.rt.TypeName(inst.self)))
	return p
}

func carve[T any](inst *Instance) *T {
	if inst.heapOnly || inst.carved || !PointerFree(reflect.TypeFor[T]()) {
		return nil
	}
	var zero T
	size, align := uint32(unsafe.Sizeof(zero)), uintptr(unsafe.Alignof(zero))
	if size == 0 {
		return nil
	}

	addr, n, ok := inst.rt.Storage(inst.self)
	if !ok || n < size {
		return nil
	}
	mem := inst.rt.Arena()
	buf, err := mem.Bytes(addr, n)
	if err != nil {
		return nil
	}
	base := uintptr(unsafe.Pointer(&buf[0]))
	pad := uint32((align - base%align) % align)
	if pad+size > n {
		return nil
	}

	header := addr - host.HeaderSize
	if err := mem.WriteU32(header+host.HeaderHolderOffset, host.HeaderSize+pad); err != nil {
		return nil
	}
	inst.carved = true
	p := (*T)(unsafe.Pointer(&buf[pad]))
	*p = zero
	return p
}

// Carved reports whether a value was carved from the arena storage.
func (i *Instance) Carved() bool {
	return i.carved
}
