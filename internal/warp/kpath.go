package warp

import "github.com/okdaichi/warp/internal/topology"

// KPathSelection yields up to k diverse paths from src to dst over the
// local graph. Candidates are drawn lazily from the k-shortest-paths
// enumerator and filtered:
//
//   - a stretch cap rejects candidates more than twice as long (in hops)
//     as the first accepted path;
//   - bottleneck bookkeeping charges each accepted path's bottleneck
//     bandwidth against its edges, and rejects candidates whose own
//     bottleneck is already exhausted.
//
// Every accept and prune is reported to the event sink. The selection is a
// pure function of the current graph snapshot; callers cache the result in
// the route table.
func (d *Database) KPathSelection(src, dst *topology.Node, k int) []topology.Path {
	d.mustOwnVertex()
	if k <= 0 || !d.graph.HasVertex(dst) {
		return nil
	}

	usage := make(map[*topology.Link]float64)
	capacity := make(map[*topology.Link]float64)
	for _, l := range d.graph.Links() {
		capacity[l] = d.effectiveBandwidthOf(l)
	}

	enum := topology.KShortest(d.graph, src, dst)

	var accepted []topology.Path
	var shortestHops int
	for len(accepted) < k {
		cand, ok := enum.Next()
		if !ok {
			break
		}
		links := d.graph.EdgesAlong(cand.Nodes)
		if len(links) != len(cand.Nodes)-1 {
			continue
		}

		bottleneck := capacity[links[0]] - usage[links[0]]
		for _, l := range links[1:] {
			if avail := capacity[l] - usage[l]; avail < bottleneck {
				bottleneck = avail
			}
		}

		if len(accepted) == 0 {
			shortestHops = len(cand.Nodes) - 1
		} else {
			if len(cand.Nodes)-1 > 2*shortestHops {
				d.events.OnPathPruned(d.owner, cand)
				continue
			}
			if bottleneck <= 0 {
				d.events.OnPathPruned(d.owner, cand)
				continue
			}
			fits := true
			for _, l := range links {
				if capacity[l]-usage[l] < bottleneck {
					fits = false
					break
				}
			}
			if !fits {
				d.events.OnPathPruned(d.owner, cand)
				continue
			}
		}

		for _, l := range links {
			usage[l] += bottleneck
		}
		accepted = append(accepted, cand)
		d.events.OnPathAccepted(d.owner, cand)
	}
	return accepted
}
