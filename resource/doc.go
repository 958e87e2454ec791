// Package resource provides reference-counted handle tables.
//
// A handle is a small integer naming a slot that holds a Go value. Slots start
// with one reference; Retain and Release adjust the count and the slot is freed
// when the last reference goes away. The host runtime stores every host
// object in such a table.
//
// # Handle Table
//
//	table := resource.NewTable()
//
//	// Insert a value, get a handle with one reference
//	handle := table.Insert(kind, value)
//
//	// Share it
//	table.Retain(handle)
//
//	// Drop references; the last one frees the slot
//	table.Release(handle)
//	value, freed := table.Release(handle)
//
// # Kinds
//
// Slots carry a kind tag chosen by the caller, checked by GetTyped:
//
//	value, ok := table.GetTyped(handle, kindInstance)
//
// # Observers
//
// Register observers to track lifecycle events:
//
//	table.Subscribe(observer)
//
// EventCreated, EventRetained, EventReleased and EventDropped are delivered
// synchronously after the table lock is released.
//
// # Memory Management
//
// Slots are not garbage collected. Values implementing Dropper are dropped when
// their last reference is released or when the table is closed.
package resource
