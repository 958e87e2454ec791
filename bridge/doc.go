// Package bridge exposes Go types to a host runtime and converts values
// between the two.
//
// A Bridge owns a type key table, a converter registry bootstrapped with the
// built-in scalar converters, a cast graph and a host runtime:
//
//	b, err := bridge.New(ctx)
//	if err != nil {
//	    return err
//	}
//	defer b.Close(ctx)
//
// # Classes
//
// ExposeClass creates a host class for a Go struct type. Bases must be
// exposed first and are declared with BaseOf, which also adds the cast graph
// edges used to adjust pointers between the types:
//
//	bridge.ExposeClass[Engine](b, "Engine", bridge.Methods())
//	bridge.ExposeClass[Car](b, "Car",
//	    bridge.Bases(bridge.BaseOf(func(c *Car) *Engine { return &c.Engine })),
//	    bridge.Init(func(c *Car, hp int) { c.HP = hp }))
//
// Construct calls a class the way host code would and returns the instance
// with the value it holds:
//
//	h, car, _ := bridge.Construct[Car](b, 120)
//
// Values convert to the host by copy; instances convert back by reference to
// the value they hold, adjusted to the requested base:
//
//	h, _ := bridge.ToForeign(b, Car{})
//	eng, _ := bridge.FromForeignPtr[Engine](b, h)
//
// # Lifetimes
//
// Manage hands a Go object to the host, Reference lends it, and
// ManageShared shares it through instance.Shared. Results of host calls that
// return pointers into host objects are checked so that a pointer into an
// object about to be reclaimed is refused.
//
// # Overrides
//
// A class exposed with BackReference binds its objects to their host
// instances. Go code dispatches to methods a host subclass defines with
// CallOverride, falling back to the Go implementation:
//
//	func (s *Shape) Area(b *bridge.Bridge) (float64, error) {
//	    return bridge.CallOverride(b, s, "area", s.area)
//	}
//
// Types exposed with Polymorphic embed Dynamic so that casts and conversions
// see an object's most-derived type.
package bridge
