// Package instance embeds Go values in host instances.
//
// Every host instance created for an exposed Go type carries an *Instance as
// its payload. The Instance owns a list of holders, newest first. A holder
// owns or references exactly one Go value and answers Holds(k): the address
// of a value of type k it can supply, or nil.
//
//	ValueHolder[T]    - the value itself, stored in the instance
//	PointerHolder[T]  - a *T, owned or borrowed
//	SharedHolder[T]   - a *Shared[T] with shared ownership
//
// Pointer-free values are carved from the instance's arena storage when it is
// large enough and suitably aligned; anything else lives on the Go heap and is
// recorded on the Instance. The header's holder offset names the carved value.
//
// When the host reclaims the instance, Reclaim unbinds back-references and
// releases the holders. Owned values implementing Dropper are dropped;
// borrowed ones are left alone.
package instance
