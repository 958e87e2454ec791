package castgraph

import (
	"container/heap"
	"unsafe"
)

// distancesTo returns the hop distance of every vertex to target, -1 when
// target cannot be reached. Results are memoized until the next AddCast.
func (g *Graph) distancesTo(target int, upOnly bool) []int {
	key := distanceKey{target: target, upOnly: upOnly}
	if dist, ok := g.distances[key]; ok {
		return dist
	}

	reverse := make([][]int, len(g.vertices))
	for i, v := range g.vertices {
		adj := v.full
		if upOnly {
			adj = v.up
		}
		for _, e := range adj {
			reverse[e.dst] = append(reverse[e.dst], i)
		}
	}

	dist := make([]int, len(g.vertices))
	for i := range dist {
		dist[i] = -1
	}
	dist[target] = 0
	queue := []int{target}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, u := range reverse[v] {
			if dist[u] < 0 {
				dist[u] = dist[v] + 1
				queue = append(queue, u)
			}
		}
	}

	g.distances[key] = dist
	return dist
}

type state struct {
	from unsafe.Pointer
	cast CastFunc
	v    int
	dist int
	seq  int
}

type frontier []state

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].dist != f[j].dist {
		return f[i].dist < f[j].dist
	}
	return f[i].seq < f[j].seq
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(state)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	s := old[n-1]
	*f = old[:n-1]
	return s
}

type visit struct {
	p unsafe.Pointer
	v int
}

// search walks from (p, src) toward dst and returns the first pointer that
// arrives at dst.
func (g *Graph) search(p unsafe.Pointer, src, dst int, upOnly bool) unsafe.Pointer {
	dist := g.distancesTo(dst, upOnly)
	if dist[src] < 0 {
		return nil
	}

	seq := 0
	q := &frontier{{from: p, v: src, dist: dist[src]}}
	visited := make(map[visit]bool)

	for q.Len() > 0 {
		s := heap.Pop(q).(state)
		cur := s.from
		if s.cast != nil {
			cur = s.cast(s.from)
			if cur == nil {
				continue
			}
		}
		if s.v == dst {
			return cur
		}
		at := visit{p: cur, v: s.v}
		if visited[at] {
			continue
		}
		visited[at] = true

		adj := g.vertices[s.v].full
		if upOnly {
			adj = g.vertices[s.v].up
		}
		for _, e := range adj {
			if dist[e.dst] < 0 {
				continue
			}
			seq++
			heap.Push(q, state{from: cur, cast: e.cast, v: e.dst, dist: dist[e.dst], seq: seq})
		}
	}
	return nil
}
