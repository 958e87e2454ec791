// Package errors provides structured error types for the objbridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: path, Go/host type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseFromForeign, errors.KindTypeMismatch).
//		Path("args", "0").
//		GoType("uint8").
//		ForeignType("str").
//		Detail("cannot convert string to integer").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NoRvalueConverter("main.Point", "tuple")
//	err := errors.DanglingReference("*main.Engine", 1)
//
// Unreachable casts are reported with the no_converter kind, the same
// category callers see for missing converters.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
