package topology

import (
	"container/heap"
	"math"
)

// Path is an ordered vertex sequence with its total edge weight.
type Path struct {
	Nodes  []*Node
	Weight float64
}

// Equal reports whether p and q visit the same vertex sequence.
func (p Path) Equal(q Path) bool {
	if len(p.Nodes) != len(q.Nodes) {
		return false
	}
	for i := range p.Nodes {
		if p.Nodes[i] != q.Nodes[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether p starts with the given vertex sequence.
func (p Path) HasPrefix(prefix []*Node) bool {
	if len(prefix) > len(p.Nodes) {
		return false
	}
	for i := range prefix {
		if p.Nodes[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ShortestPath computes the minimum-weight path from src to dst with
// Dijkstra's algorithm. Vertices in forbidden are never expanded. Ties on
// equal tentative distance break on node name, so results are deterministic
// regardless of map iteration order.
//
// Returns (path, true) on success; (zero, false) when dst is unreachable or
// either endpoint is missing from the graph.
func ShortestPath(g *Graph, src, dst *Node, forbidden map[*Node]bool) (Path, bool) {
	return shortestPath(g, src, dst, forbidden, nil)
}

// shortestPath additionally never traverses links in excluded. The spur
// searches of the k-shortest-paths enumerator use this instead of mutating
// the graph.
func shortestPath(g *Graph, src, dst *Node, forbidden map[*Node]bool, excluded map[*Link]bool) (Path, bool) {
	if !g.HasVertex(src) || !g.HasVertex(dst) {
		return Path{}, false
	}
	if forbidden[src] || forbidden[dst] {
		return Path{}, false
	}

	dist := map[*Node]float64{src: 0}
	prev := make(map[*Node]*Node)
	visited := make(map[*Node]bool)

	pq := &nodeQueue{{node: src, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*nodeItem)
		u := item.node
		if visited[u] {
			continue // stale entry
		}
		visited[u] = true
		if u == dst {
			break
		}
		for _, a := range g.Neighbors(u) {
			v := a.Peer
			if visited[v] || forbidden[v] || excluded[a.Link] {
				continue
			}
			alt := dist[u] + a.Link.Weight()
			if cur, ok := dist[v]; !ok || alt < cur {
				dist[v] = alt
				prev[v] = u
				heap.Push(pq, &nodeItem{node: v, dist: alt})
			}
		}
	}

	total, ok := dist[dst]
	if !ok || math.IsInf(total, 1) {
		return Path{}, false
	}

	// Reconstruct src..dst.
	var nodes []*Node
	for at := dst; at != nil; at = prev[at] {
		nodes = append(nodes, at)
		if at == src {
			break
		}
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	return Path{Nodes: nodes, Weight: total}, true
}

// --- priority queue for Dijkstra ---

type nodeItem struct {
	node *Node
	dist float64
}

type nodeQueue []*nodeItem

func (pq nodeQueue) Len() int { return len(pq) }
func (pq nodeQueue) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].node.Name < pq[j].node.Name
}
func (pq nodeQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *nodeQueue) Push(x any)   { *pq = append(*pq, x.(*nodeItem)) }
func (pq *nodeQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}
