// Package arena provides fixed-capacity linear memories that hold host
// instance headers and carved holder storage.
//
// Two backings are available:
//
//	Heap  - a Go-heap buffer, 8-byte aligned
//	Wasm  - a wazero linear memory exported by a minimal module
//
// Neither backing ever grows, so a view returned by Bytes stays valid until the
// block it covers is freed. Offset 0 is reserved as the null offset.
//
// # Allocation
//
// Blocks are rounded up to 8 bytes and recycled through per-size free lists:
//
//	a := arena.NewHeap(1 << 20)
//	off, err := a.Alloc(24, 8)
//	view, _ := a.Bytes(off, 24)
//	a.Free(off, 24, 8)
//
// Alloc returns an allocation error when the arena is exhausted; callers fall
// back to the Go heap.
package arena
