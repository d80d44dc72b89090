package topology

import "container/heap"

// PathEnumerator lazily yields loopless paths from src to dst in
// non-decreasing total-weight order (Yen's algorithm). It never mutates the
// graph: spur searches exclude edges and vertices through the parameters of
// the shortest-path engine instead of removing them.
//
// An enumeration in progress observes the graph as it is when Next is
// called; do not interleave Next with graph mutations.
type PathEnumerator struct {
	g        *Graph
	src, dst *Node

	yielded []Path
	cands   *pathHeap
	started bool
	done    bool
}

// KShortest starts a lazy enumeration of the shortest loopless paths from
// src to dst. Call Next repeatedly to draw paths.
func KShortest(g *Graph, src, dst *Node) *PathEnumerator {
	return &PathEnumerator{g: g, src: src, dst: dst, cands: &pathHeap{}}
}

// Next returns the next shortest path, or (zero, false) when no further
// path exists.
func (e *PathEnumerator) Next() (Path, bool) {
	if e.done {
		return Path{}, false
	}
	if !e.started {
		e.started = true
		first, ok := ShortestPath(e.g, e.src, e.dst, nil)
		if !ok {
			e.done = true
			return Path{}, false
		}
		e.yielded = append(e.yielded, first)
		return first, true
	}

	e.spurFrom(e.yielded[len(e.yielded)-1])

	for e.cands.Len() > 0 {
		next := heap.Pop(e.cands).(Path)
		if e.seen(next) {
			continue
		}
		e.yielded = append(e.yielded, next)
		return next, true
	}
	e.done = true
	return Path{}, false
}

// spurFrom generates candidate deviations from the most recently yielded
// path and pushes them onto the candidate heap.
func (e *PathEnumerator) spurFrom(p Path) {
	for i := 0; i+1 < len(p.Nodes); i++ {
		spur := p.Nodes[i]
		root := p.Nodes[:i+1]

		// Edges leaving the spur node along any yielded path that shares
		// this root prefix must not be reused.
		excluded := make(map[*Link]bool)
		for _, q := range e.yielded {
			if !q.HasPrefix(root) || i+1 >= len(q.Nodes) {
				continue
			}
			if l := e.g.Edge(q.Nodes[i], q.Nodes[i+1]); l != nil {
				excluded[l] = true
			}
		}

		// Root vertices other than the spur node are off limits.
		forbidden := make(map[*Node]bool, i)
		for _, v := range root[:i] {
			forbidden[v] = true
		}

		sp, ok := shortestPath(e.g, spur, e.dst, forbidden, excluded)
		if !ok {
			continue
		}

		nodes := make([]*Node, 0, i+len(sp.Nodes))
		nodes = append(nodes, root[:i]...)
		nodes = append(nodes, sp.Nodes...)

		// Recompute the total weight from the edges of the joined path.
		links := e.g.EdgesAlong(nodes)
		if len(links) != len(nodes)-1 {
			continue
		}
		total := 0.0
		for _, l := range links {
			total += l.Weight()
		}

		cand := Path{Nodes: nodes, Weight: total}
		if e.seen(cand) || e.pending(cand) {
			continue
		}
		heap.Push(e.cands, cand)
	}
}

func (e *PathEnumerator) seen(p Path) bool {
	for _, q := range e.yielded {
		if q.Equal(p) {
			return true
		}
	}
	return false
}

func (e *PathEnumerator) pending(p Path) bool {
	for _, q := range *e.cands {
		if q.Equal(p) {
			return true
		}
	}
	return false
}

// --- candidate heap ordered by total weight ---

type pathHeap []Path

func (h pathHeap) Len() int           { return len(h) }
func (h pathHeap) Less(i, j int) bool { return h[i].Weight < h[j].Weight }
func (h pathHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *pathHeap) Push(x any)        { *h = append(*h, x.(Path)) }
func (h *pathHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	*h = old[:n-1]
	return p
}
