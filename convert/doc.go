// Package convert moves values between Go and the host runtime.
//
// # Go to host
//
// ToForeign picks a strategy from the static type of the value:
//
//	host.Object, host.Handle  - already host references: add a reference
//	*E                        - the host instance that implements it, if any;
//	                            else a registered *E converter; else a copy
//	                            through E's converter; nil becomes None
//	anything else             - the type's registered to-foreign function
//
// # Host to Go
//
// FromForeign first looks for an lvalue, a value already embedded in the
// handle: the instance holders, then the type's lvalue chain. Failing that it
// runs an rvalue conversion in two stages. Stage 1 walks the rvalue chain and
// stops at the first converter that accepts the handle. Stage 2 constructs the
// value into caller storage, lazily and at most once. Pointer targets only
// take lvalues; None converts to nil.
//
// Construction errors are returned unmodified.
package convert
