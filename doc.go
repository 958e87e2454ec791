// Package objbridge provides a cross-language object bridge between Go values
// and the objects of an in-process, reference-counted host runtime.
//
// The bridge converts values in both directions and exposes Go type
// hierarchies as host classes, with pointer adjustment between related types,
// dynamic dispatch into host-side overrides, and explicit lifetime rules for
// objects that live on both sides.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	objbridge/         Root package with the Memory and Allocator interfaces
//	├── typekey/       Type Keys: canonical, totally ordered type identifiers
//	├── registry/      Per-type Registrations and converter chains
//	├── castgraph/     Inheritance cast graph, search and cast cache
//	├── arena/         Linear memories (Go heap, wazero) for instance storage
//	├── resource/      Reference-counted handle table
//	├── host/          The host runtime: values, classes, instances, attributes
//	├── instance/      Instance layout, holders, smart pointers, overrides
//	├── convert/       Conversion pipeline (to-foreign, lvalue, rvalue)
//	├── bridge/        High-level API tying everything together
//	├── config/        TOML configuration
//	└── errors/        Structured error types for debugging
//
// # Quick Start
//
// Expose a Go type hierarchy and move values across:
//
//	b, err := bridge.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close(ctx)
//
//	_, err = bridge.ExposeClass[Engine](b, "Engine")
//	_, err = bridge.ExposeClass[Car](b, "Car",
//	    bridge.Bases(bridge.BaseOf(func(c *Car) *Engine { return &c.Engine })))
//
//	h, err := bridge.ToForeign(b, Car{Engine: Engine{HP: 120}})
//	eng, err := bridge.FromForeignPtr[Engine](b, h) // adjusted through the cast graph
//
// # Thread Safety
//
// The Registry, the cast graph and its cache assume a single mutating
// goroutine at a time, the same way the host runtime serializes execution.
// Bridge is NOT thread-safe; serialize access externally. The Type Key table
// and the handle table are safe for concurrent use.
//
// # Memory Model
//
// Every host instance has a fixed header in the arena (type tag, weak
// reference slot, holder offset, storage size) followed by its storage.
// Pointer-free values are embedded directly in that storage when it is large
// enough; everything else is allocated on the Go heap and recorded alongside
// the instance so it is released together with it.
package objbridge
