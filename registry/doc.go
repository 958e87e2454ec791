// Package registry records, per Go type, how values cross the bridge.
//
// A Registration exists for every typekey.Key the bridge has touched. It holds
// at most one to-foreign function, two ordered converter chains for the reverse
// direction, and an optional link to the host class exposing the type:
//
//	Lvalues  - "does this handle embed a T?"          most recent first
//	Rvalues  - "can a T be constructed from it?"      most recent first,
//	                                                  implicit conversions last
//
// Registrations are created on first Lookup and never removed, so a
// *Registration is stable for the life of its Registry.
//
// A bootstrap function, typically installing converters for built-in types,
// runs on first access. The latch is set before it runs, so the bootstrap may
// itself call Lookup.
//
// Registry is NOT safe for concurrent use.
package registry
