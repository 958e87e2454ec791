package host

import (
	"github.com/wippyai/objbridge/arena"
)

// Handle names a host object. 0 is the null handle.
type Handle uint32

// Kind tags the representation of a host object.
type Kind uint32

const (
	KindInvalid Kind = iota
	KindNone
	KindBool
	KindInt
	KindFloat
	KindStr
	KindBytes
	KindTuple
	KindList
	KindFunc
	KindMethod
	KindClass
	KindInstance
	KindWeakRef
)

var kindNames = [...]string{
	KindInvalid:  "<invalid>",
	KindNone:     "NoneType",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindStr:      "str",
	KindBytes:    "bytes",
	KindTuple:    "tuple",
	KindList:     "list",
	KindFunc:     "function",
	KindMethod:   "method",
	KindClass:    "type",
	KindInstance: "object",
	KindWeakRef:  "weakref",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "<unknown>"
}

// CallFunc implements a callable. args are borrowed; the result is a new
// reference.
type CallFunc func(args []Handle) (Handle, error)

// Finalizer runs when an instance is reclaimed, with the payload stored on it.
type Finalizer func(payload any)

// ClassSpec describes a class to create.
type ClassSpec struct {
	Name string

	// Bases are borrowed; the class keeps its own references.
	Bases []Handle

	// InstanceSize is the storage, in bytes, reserved after the header of
	// every instance.
	InstanceSize uint32

	// Finalizer runs on reclaim of instances of this class and of subclasses
	// that do not set their own.
	Finalizer Finalizer

	// Native marks classes created by the bridge for Go types.
	Native bool
}

// Runtime is the host runtime as seen by the bridge.
type Runtime interface {
	// Reference counting.
	Incref(h Handle)
	Decref(h Handle)
	RefCount(h Handle) int

	// Type queries.
	Kind(h Handle) Kind
	TypeName(h Handle) string
	ClassOf(h Handle) Handle
	IsInstance(h Handle, class Handle) bool
	IsSubclass(class, base Handle) bool

	// Scalars and sequences.
	None() Handle
	NewBool(v bool) Handle
	NewInt(v int64) Handle
	NewFloat(v float64) Handle
	NewStr(v string) Handle
	NewBytes(v []byte) Handle
	NewTuple(items ...Handle) Handle
	NewList(items ...Handle) Handle
	Bool(h Handle) (bool, bool)
	Int(h Handle) (int64, bool)
	Float(h Handle) (float64, bool)
	Str(h Handle) (string, bool)
	Bytes(h Handle) ([]byte, bool)
	Items(h Handle) ([]Handle, bool)

	// Classes, attributes and calls.
	NewClass(spec ClassSpec) (Handle, error)
	ClassName(class Handle) string
	NewFunc(name string, native bool, fn CallFunc) Handle
	IsNativeFunc(h Handle) bool
	GetAttribute(h Handle, name string) (Handle, error)
	SetAttribute(h Handle, name string, v Handle) error
	Call(callable Handle, args ...Handle) (Handle, error)

	// Instances.
	Allocate(class Handle, extraBytes uint32) (Handle, error)
	Arena() arena.Arena
	Storage(h Handle) (addr, size uint32, ok bool)
	Payload(h Handle) any
	SetPayload(h Handle, payload any) bool

	// Weak references.
	WeakRef(h Handle) (Handle, error)
	Deref(w Handle) Handle
}
