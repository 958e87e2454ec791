// Package host implements the dynamic host runtime the bridge talks to.
//
// Host values are reference-counted objects named by a Handle. Every function
// that returns a Handle returns a new reference that the caller owns; Handle
// arguments are borrowed. Handle 0 is the null handle and never names an
// object.
//
// # Object Kinds
//
//	None, Bool, Int, Float, Str, Bytes   - immutable scalars
//	Tuple, List                          - sequences owning their items
//	Func, Method                         - callables (Native marks Go-backed ones)
//	Class                                - classes with bases and attributes
//	Instance                             - class instances with arena storage
//	WeakRef                              - weak references to instances
//
// # Instance Layout
//
// Allocate carves a block from the runtime's arena. The block starts with a
// fixed header followed by the instance storage:
//
//	offset  size  field
//	──────────────────────────────
//	0       4     type tag (class handle)
//	4       4     weak reference slot (first weakref handle)
//	8       4     holder offset (from the header; 0 when nothing is embedded)
//	12      4     storage size
//	16      n     storage
//
// IsInstance reads the type tag from the arena, not from Go-side state.
//
// # Reclaim
//
// When the last reference to an instance is released, the finalizer of its
// class (or nearest base with one) runs with the instance payload, weak
// references are cleared, the arena block is freed and the class reference is
// dropped.
//
// # Thread Safety
//
// Local is NOT thread-safe. The handle table it is built on is, but class and
// instance state assume the single-mutator discipline of the bridge.
package host
