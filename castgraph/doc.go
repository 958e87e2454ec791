// Package castgraph finds pointer adjustments between registered Go types.
//
// Types are vertices named by typekey.Key. An edge carries a CastFunc that
// turns a pointer to its source type into a pointer to its destination type,
// or nil when the object is not of that type. Two adjacency sets are kept:
//
//	full  - every edge, including checked downcasts
//	up    - edges that always succeed (embedded bases)
//
// FindStaticType searches the up graph from the static type of a pointer.
// FindDynamicType first resolves the most-derived type of the object through
// the source type's DynamicIDFunc, then searches the full graph from there.
//
// # Search
//
// For a target D the graph computes, once per target, the hop distance of
// every vertex to D by breadth-first search over reversed edges. The search
// is best first: states are ordered by their vertex's distance, ties in
// insertion order. A state's cast runs when the state is dequeued; a nil
// result abandons it. The first state that reaches D wins, so an earlier
// equal-distance path is kept even when a later one would be shorter.
//
// # Cache
//
// Results are cached by (source, target, offset of p inside its most-derived
// object, most-derived type) as an offset relative to p, or as unreachable.
// Only results inside the most-derived object are cached: a cast that follows
// a pointer, such as an embedded *T base, lands at a different offset for
// every object. Sizing objects needs WithTypeTable.
//
// Adding an edge can only make pairs reachable, so AddCast drops unreachable
// entries, and only when the cache grew since the previous purge.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use.
package castgraph
