package castgraph

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/wippyai/objbridge/typekey"
	"go.uber.org/zap"
)

// CastFunc adjusts a pointer to its edge's destination type. It returns nil
// when the object cannot be viewed as that type.
type CastFunc func(unsafe.Pointer) unsafe.Pointer

// DynamicIDFunc returns the most-derived object containing p and its type.
type DynamicIDFunc func(p unsafe.Pointer) (unsafe.Pointer, typekey.Key)

// unreachable marks a cached pair with no path.
const unreachable = math.MinInt

type edge struct {
	cast     CastFunc
	dst      int
	downcast bool
}

type vertex struct {
	dynamicID   DynamicIDFunc
	full        []edge
	up          []edge
	key         typekey.Key
	polymorphic bool
}

type cacheKey struct {
	src     typekey.Key
	dst     typekey.Key
	offset  int
	dynamic typekey.Key
}

type distanceKey struct {
	target int
	upOnly bool
}

// Graph is the inheritance cast graph with its cast cache.
type Graph struct {
	log              *zap.Logger
	types            *typekey.Table
	index            map[typekey.Key]int
	cache            map[cacheKey]int
	distances        map[distanceKey][]int
	vertices         []vertex
	expectedCacheLen int
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger used for cache maintenance messages.
func WithLogger(l *zap.Logger) Option {
	return func(g *Graph) {
		g.log = l
	}
}

// WithTypeTable sets the table used to size the objects being cast. Without
// it, or for keys with no Go type, only unreachable pairs are cached.
func WithTypeTable(t *typekey.Table) Option {
	return func(g *Graph) {
		g.types = t
	}
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		index:     make(map[typekey.Key]int),
		cache:     make(map[cacheKey]int),
		distances: make(map[distanceKey][]int),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = Logger()
	}
	return g
}

func (g *Graph) vertexFor(k typekey.Key) int {
	if i, ok := g.index[k]; ok {
		return i
	}
	i := len(g.vertices)
	g.vertices = append(g.vertices, vertex{
		key: k,
		dynamicID: func(p unsafe.Pointer) (unsafe.Pointer, typekey.Key) {
			return p, k
		},
	})
	g.index[k] = i
	return i
}

// RegisterDynamicID makes k polymorphic: casts from k first ask fn for the
// most-derived object.
func (g *Graph) RegisterDynamicID(k typekey.Key, fn DynamicIDFunc) {
	v := &g.vertices[g.vertexFor(k)]
	v.dynamicID = fn
	v.polymorphic = true
}

// Registered reports whether k is a vertex of the graph.
func (g *Graph) Registered(k typekey.Key) bool {
	_, ok := g.index[k]
	return ok
}

// Polymorphic reports whether k has a dynamic id resolver.
func (g *Graph) Polymorphic(k typekey.Key) bool {
	i, ok := g.index[k]
	return ok && g.vertices[i].polymorphic
}

// DynamicID resolves the most-derived object of p, which is of type k. Types
// without a resolver resolve to (p, k).
func (g *Graph) DynamicID(p unsafe.Pointer, k typekey.Key) (unsafe.Pointer, typekey.Key) {
	i, ok := g.index[k]
	if !ok || p == nil {
		return p, k
	}
	return g.vertices[i].dynamicID(p)
}

// AddCast adds an edge from src to dst. Downcast edges are kept out of the up
// graph.
func (g *Graph) AddCast(src, dst typekey.Key, cast CastFunc, isDowncast bool) {
	if len(g.cache) > g.expectedCacheLen {
		purged := 0
		for k, off := range g.cache {
			if off == unreachable {
				delete(g.cache, k)
				purged++
			}
		}
		g.expectedCacheLen = len(g.cache)
		if purged > 0 {
			g.log.Debug("purged unreachable cast cache entries",
				zap.Int("purged", purged),
				zap.Int("remaining", g.expectedCacheLen))
		}
	}

	s := g.vertexFor(src)
	d := g.vertexFor(dst)
	e := edge{cast: cast, dst: d, downcast: isDowncast}
	g.vertices[s].full = append(g.vertices[s].full, e)
	if !isDowncast {
		g.vertices[s].up = append(g.vertices[s].up, e)
	}
	clear(g.distances)
}

// FindStaticType converts p, an exact src, to dst using upcasts only.
func (g *Graph) FindStaticType(p unsafe.Pointer, src, dst typekey.Key) unsafe.Pointer {
	return g.convert(p, src, dst, false)
}

// FindDynamicType converts p, a src, to dst using the object's most-derived
// type and every edge, including downcasts.
func (g *Graph) FindDynamicType(p unsafe.Pointer, src, dst typekey.Key) unsafe.Pointer {
	return g.convert(p, src, dst, true)
}

// Cast is FindDynamicType.
func (g *Graph) Cast(p unsafe.Pointer, src, dst typekey.Key) unsafe.Pointer {
	return g.FindDynamicType(p, src, dst)
}

func (g *Graph) convert(p unsafe.Pointer, src, dst typekey.Key, polymorphic bool) unsafe.Pointer {
	if p == nil {
		return nil
	}
	if src == dst {
		return p
	}
	s, ok := g.index[src]
	if !ok {
		return nil
	}
	d, ok := g.index[dst]
	if !ok {
		return nil
	}

	derived, dynamic := p, src
	if polymorphic {
		derived, dynamic = g.vertices[s].dynamicID(p)
		if derived == nil {
			return nil
		}
	}
	key := cacheKey{
		src:     src,
		dst:     dst,
		offset:  int(uintptr(p) - uintptr(derived)),
		dynamic: dynamic,
	}
	if off, ok := g.cache[key]; ok {
		if off == unreachable {
			return nil
		}
		return unsafe.Add(p, off)
	}

	var result unsafe.Pointer
	if !polymorphic {
		result = g.search(p, s, d, true)
	} else {
		if dv, ok := g.index[dynamic]; ok && dynamic != src {
			result = g.search(derived, dv, d, false)
		}
		if result == nil {
			result = g.search(p, s, d, false)
		}
	}

	if result == nil {
		g.cache[key] = unreachable
		return nil
	}
	if !g.within(result, derived, dynamic) {
		// reached through a pointer, so the offset differs per object
		g.log.Debug("cast result outside the source object, not cached",
			zap.String("src", g.name(src)),
			zap.String("dst", g.name(dst)))
		return result
	}
	g.cache[key] = int(uintptr(result) - uintptr(p))
	return result
}

// within reports whether q points into the object of type k at base.
func (g *Graph) within(q, base unsafe.Pointer, k typekey.Key) bool {
	if g.types == nil {
		return false
	}
	t := g.types.Type(k)
	if t == nil {
		return false
	}
	lo, hi := uintptr(base), uintptr(base)+t.Size()
	return uintptr(q) >= lo && uintptr(q) < hi
}

func (g *Graph) name(k typekey.Key) string {
	if g.types != nil {
		if n := g.types.Name(k); n != "" {
			return n
		}
	}
	return fmt.Sprintf("#%d", k)
}

// Reachable reports whether a path from src to dst exists in the full graph,
// ignoring whether the casts along it would succeed.
func (g *Graph) Reachable(src, dst typekey.Key) bool {
	s, ok := g.index[src]
	if !ok {
		return false
	}
	d, ok := g.index[dst]
	if !ok {
		return false
	}
	return g.distancesTo(d, false)[s] >= 0
}

// CacheLen returns the number of cached pairs, reachable or not.
func (g *Graph) CacheLen() int {
	return len(g.cache)
}

// Edge describes one registered cast for introspection.
type Edge struct {
	Src      typekey.Key
	Dst      typekey.Key
	Downcast bool
}

// Edges returns every edge in insertion order per source vertex.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, v := range g.vertices {
		for _, e := range v.full {
			out = append(out, Edge{Src: v.key, Dst: g.vertices[e.dst].key, Downcast: e.downcast})
		}
	}
	return out
}

// Keys returns the vertices in registration order.
func (g *Graph) Keys() []typekey.Key {
	out := make([]typekey.Key, len(g.vertices))
	for i, v := range g.vertices {
		out[i] = v.key
	}
	return out
}
