package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseRegister    Phase = "register"     // converter and class registration
	PhaseToForeign   Phase = "to-foreign"   // Go to host
	PhaseFromForeign Phase = "from-foreign" // host to Go
	PhaseCast        Phase = "cast"         // cast graph search
	PhaseHolder      Phase = "holder"       // instance storage and holders
	PhaseHost        Phase = "host"         // host runtime operations
	PhaseConfig      Phase = "config"       // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindNoConverter       Kind = "no_converter"
	KindDanglingReference Kind = "dangling_reference"
	KindDuplicate         Kind = "duplicate_registration"
	KindTypeMismatch      Kind = "type_mismatch"
	KindOverflow          Kind = "overflow"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindNilPointer        Kind = "nil_pointer"
	KindNotFound          Kind = "not_found"
	KindAllocation        Kind = "allocation"
	KindInvalidHandle     Kind = "invalid_handle"
	KindInvalidInput      Kind = "invalid_input"
	KindNotCallable       Kind = "not_callable"
	KindNoClass           Kind = "no_class"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value       any
	Cause       error
	Phase       Phase
	Kind        Kind
	GoType      string
	ForeignType string
	Detail      string
	Path        []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.ForeignType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.ForeignType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", foreign type ")
			b.WriteString(e.ForeignType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("foreign type ")
			b.WriteString(e.ForeignType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.ForeignType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether any *Error in err's chain has the given kind,
// regardless of phase.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		return false
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// ForeignType sets the host type name
func (b *Builder) ForeignType(t string) *Builder {
	b.err.ForeignType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// NoConverter reports that no to-foreign converter is registered for goType.
func NoConverter(phase Phase, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNoConverter,
		GoType: goType,
		Detail: "no converter registered",
	}
}

// NoLvalueConverter reports that no converter could extract a reference to
// goType from a host object of foreignType.
func NoLvalueConverter(goType, foreignType string) *Error {
	return &Error{
		Phase:       PhaseFromForeign,
		Kind:        KindNoConverter,
		GoType:      goType,
		ForeignType: foreignType,
		Detail:      "no registered converter was able to extract a reference",
	}
}

// NoRvalueConverter reports that no converter could produce a value of goType
// from a host object of foreignType.
func NoRvalueConverter(goType, foreignType string) *Error {
	return &Error{
		Phase:       PhaseFromForeign,
		Kind:        KindNoConverter,
		GoType:      goType,
		ForeignType: foreignType,
		Detail:      "no registered converter was able to produce a value",
	}
}

// UnreachableCast reports a cast graph search that found no path.
// It carries the no_converter kind so callers see one failure category.
func UnreachableCast(src, dst string) *Error {
	return &Error{
		Phase:  PhaseCast,
		Kind:   KindNoConverter,
		GoType: src,
		Detail: fmt.Sprintf("no cast path to %s", dst),
	}
}

// DanglingReference reports a reference request into a host object that has
// no other owner.
func DanglingReference(goType string, refs int) *Error {
	return &Error{
		Phase:  PhaseFromForeign,
		Kind:   KindDanglingReference,
		GoType: goType,
		Detail: fmt.Sprintf("attempt to return dangling reference (reference count %d)", refs),
		Value:  refs,
	}
}

// DuplicateRegistration reports a second registration for the same slot.
func DuplicateRegistration(goType, what string) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindDuplicate,
		GoType: goType,
		Detail: fmt.Sprintf("%s already registered", what),
	}
}

// NoClassObject reports a Registration with no linked host class.
func NoClassObject(goType string) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindNoClass,
		GoType: goType,
		Detail: "no host class registered",
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, foreignType string) *Error {
	return &Error{
		Phase:       phase,
		Kind:        KindTypeMismatch,
		Path:        path,
		GoType:      goType,
		ForeignType: foreignType,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, path []string, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		GoType: goType,
		Detail: "nil pointer",
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		GoType: targetType,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:  value,
	}
}

// OutOfBounds creates an out of bounds error for a linear memory access
func OutOfBounds(phase Phase, offset, length, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access [%d, %d) out of bounds (size %d)", offset, uint64(offset)+uint64(length), size),
		Value:  offset,
	}
}

// InvalidHandle creates an invalid handle error
func InvalidHandle(phase Phase, handle uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidHandle,
		Detail: fmt.Sprintf("invalid handle %d", handle),
		Value:  handle,
	}
}

// NotCallable reports a call on a host object that is not callable.
func NotCallable(foreignType string) *Error {
	return &Error{
		Phase:       PhaseHost,
		Kind:        KindNotCallable,
		ForeignType: foreignType,
		Detail:      "object is not callable",
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
