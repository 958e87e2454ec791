package registry

import (
	"unsafe"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/host"
	"github.com/wippyai/objbridge/typekey"
)

// ToForeignFunc converts the Go value at p to a new host reference.
type ToForeignFunc func(p unsafe.Pointer) (host.Handle, error)

// LvalueFunc returns the address of a value embedded in h, or nil.
type LvalueFunc func(h host.Handle) unsafe.Pointer

// ConvertibleFunc is the first stage of an rvalue conversion. It reports
// whether h can produce a value and returns data for the construct stage, or
// the address of an existing value when the converter has no construct stage.
type ConvertibleFunc func(h host.Handle) (unsafe.Pointer, bool)

// ConstructFunc is the second stage: it builds a value into dst, which points
// at caller storage of the target type.
type ConstructFunc func(h host.Handle, data, dst unsafe.Pointer) error

// LvalueConverter is one converter of an lvalue chain.
type LvalueConverter struct {
	Convert LvalueFunc

	// Name identifies the converter; a chain holds each name once.
	Name string

	// ForeignType names the host type the converter expects, for messages.
	ForeignType string
}

// RvalueConverter is one converter of an rvalue chain.
type RvalueConverter struct {
	Convertible ConvertibleFunc

	// Construct is nil for converters that hand out existing values.
	Construct ConstructFunc

	Name        string
	ForeignType string
}

// Registration is the per-type record of converters and class linkage.
type Registration struct {
	ToForeign ToForeignFunc
	Lvalues   []LvalueConverter
	Rvalues   []RvalueConverter

	// Name is the Go type name, for messages.
	Name string

	// ForeignType is the name of the linked class.
	ForeignType string

	Target typekey.Key
	Class  host.Handle

	// IsShared marks the registration of a shared-pointer variant.
	IsShared bool
}

// ClassObject returns the linked class or a no_class error.
func (r *Registration) ClassObject() (host.Handle, error) {
	if r.Class == 0 {
		return 0, errors.NoClassObject(r.Name)
	}
	return r.Class, nil
}

// ExpectedForeignType names what a host value must be to convert to this
// type: the linked class, else the first rvalue converter that names one.
func (r *Registration) ExpectedForeignType() string {
	if r.ForeignType != "" {
		return r.ForeignType
	}
	for _, c := range r.Rvalues {
		if c.ForeignType != "" {
			return c.ForeignType
		}
	}
	return ""
}

func hasLvalue(chain []LvalueConverter, name string) bool {
	if name == "" {
		return false
	}
	for _, c := range chain {
		if c.Name == name {
			return true
		}
	}
	return false
}

func hasRvalue(chain []RvalueConverter, name string) bool {
	if name == "" {
		return false
	}
	for _, c := range chain {
		if c.Name == name {
			return true
		}
	}
	return false
}
