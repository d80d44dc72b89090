package warp

import (
	"fmt"
	"log/slog"

	"github.com/okdaichi/warp/internal/topology"
)

// Database is a node's mirror of the known topology: a local graph, the
// latest accepted record per origin, per-origin sequence numbers, direct
// neighbor liveness timers, and the route cache.
//
// All mutations happen on the owning node's handlers; the database is not
// safe for concurrent use.
type Database struct {
	owner  *topology.Node
	graph  *topology.Graph
	oracle TopologyOracle
	queues QueueObserver
	events EventSink

	topK            int
	neighborTimeout float64

	nodeRecords map[*topology.Node]NodeRecord
	linkRecords map[*topology.Link]LinkRecord

	seqNums    map[*topology.Node]uint64
	seqOrigins map[*topology.Node]*topology.Node
	maxSeq     uint64

	neighbors     map[*topology.Node]float64 // elapsed since last heard
	neighborOrder []*topology.Node

	routes map[*topology.Node][]*RouteInformation
}

// NewDatabase creates the database for owner. oracle and queues may be nil
// in tests; events may be nil for a silent database.
func NewDatabase(owner *topology.Node, topK int, neighborTimeout float64, oracle TopologyOracle, queues QueueObserver, events EventSink) *Database {
	if events == nil {
		events = NopSink{}
	}
	d := &Database{
		owner:           owner,
		graph:           topology.NewGraph(),
		oracle:          oracle,
		queues:          queues,
		events:          events,
		topK:            topK,
		neighborTimeout: neighborTimeout,
		nodeRecords:     make(map[*topology.Node]NodeRecord),
		linkRecords:     make(map[*topology.Link]LinkRecord),
		seqNums:         make(map[*topology.Node]uint64),
		seqOrigins:      make(map[*topology.Node]*topology.Node),
		neighbors:       make(map[*topology.Node]float64),
		routes:          make(map[*topology.Node][]*RouteInformation),
	}
	d.graph.AddVertex(owner)
	return d
}

// Owner returns the node this database belongs to.
func (d *Database) Owner() *topology.Node { return d.owner }

// Graph returns the owner's local belief about the topology.
func (d *Database) Graph() *topology.Graph { return d.graph }

// TopK returns the maximum number of candidate paths kept per destination.
func (d *Database) TopK() int { return d.topK }

// SetTopK changes the candidate path budget and discards all cached routes.
func (d *Database) SetTopK(k int) {
	d.topK = k
	d.InvalidateRoutes()
}

// SequenceNumber returns the highest accepted sequence number for origin.
func (d *Database) SequenceNumber(origin *topology.Node) uint64 {
	return d.seqNums[origin]
}

// NextSequenceNumber reserves the next sequence number for the owner's own
// advertisements: one past the highest number seen from any origin.
func (d *Database) NextSequenceNumber() uint64 {
	d.maxSeq++
	return d.maxSeq
}

// NodeRecord returns the latest accepted record for v.
func (d *Database) NodeRecord(v *topology.Node) (NodeRecord, bool) {
	rec, ok := d.nodeRecords[v]
	return rec, ok
}

// LinkRecord returns the metadata stored for a local edge.
func (d *Database) LinkRecord(l *topology.Link) (LinkRecord, bool) {
	lr, ok := d.linkRecords[l]
	return lr, ok
}

// DirectNeighbors returns the live direct neighbors in discovery order.
func (d *Database) DirectNeighbors() []*topology.Node {
	return d.neighborOrder
}

// IsDirectNeighbor reports whether n is currently a live direct neighbor.
func (d *Database) IsDirectNeighbor(n *topology.Node) bool {
	_, ok := d.neighbors[n]
	return ok
}

// NeighborElapsed returns the seconds since n was last heard from.
func (d *Database) NeighborElapsed(n *topology.Node) float64 {
	return d.neighbors[n]
}

// ProcessLSA applies an advertisement to the database. It returns false for
// stale sequence numbers; a stale LSA still refreshes the forwarder's
// liveness timer, since it proves the forwarder is alive.
func (d *Database) ProcessLSA(lsa *LSA) bool {
	origin := lsa.Record.Node
	if lsa.Sequence <= d.seqNums[origin] {
		if _, ok := d.neighbors[lsa.Forwarding]; ok {
			d.neighbors[lsa.Forwarding] = 0
		}
		return false
	}

	d.seqNums[origin] = lsa.Sequence
	if lsa.Sequence > d.maxSeq {
		d.maxSeq = lsa.Sequence
	}
	d.seqOrigins[origin] = lsa.Forwarding

	d.UpsertNodeRecord(lsa.Record)

	if fwd := lsa.Forwarding; fwd != nil && fwd != d.owner {
		switch {
		case d.graph.Edge(d.owner, fwd) != nil:
			d.touchNeighbor(fwd)
		case d.physicallyAdjacent(fwd):
			// First contact from a physical neighbor: bring the
			// owner<->forwarder edge into the local graph and re-advertise
			// the owner's own record with it.
			if phys := d.oracle.LinkBetween(d.owner, fwd); phys != nil {
				clone := phys.Clone()
				d.graph.AddEdge(d.owner, fwd, clone)
				d.linkRecords[clone] = LinkRecord{
					Link:               clone,
					Connected:          fwd,
					EffectiveBandwidth: clone.EffectiveBandwidth(),
				}
				d.UpsertNodeRecord(d.CreateNodeRecord())
			}
			d.touchNeighbor(fwd)
		}
	}
	return true
}

func (d *Database) physicallyAdjacent(n *topology.Node) bool {
	if d.oracle == nil {
		return false
	}
	for _, nb := range d.oracle.NeighborsOf(d.owner) {
		if nb == n {
			return true
		}
	}
	return false
}

func (d *Database) touchNeighbor(n *topology.Node) {
	if _, ok := d.neighbors[n]; !ok {
		d.neighborOrder = append(d.neighborOrder, n)
	}
	d.neighbors[n] = 0
}

// UpsertNodeRecord merges a record into the local graph. Advertisements
// carry a node's full link set, so for records about other nodes, edges the
// record omits are removed. The owner's own record never removes edges:
// the owner also discovers neighbors by direct adjacency.
func (d *Database) UpsertNodeRecord(rec NodeRecord) {
	d.graph.AddVertex(rec.Node)
	d.nodeRecords[rec.Node] = rec

	for _, lr := range rec.Links {
		d.graph.AddVertex(lr.Connected)
		edge := d.graph.Edge(rec.Node, lr.Connected)
		if edge == nil {
			edge = lr.Link.Clone()
			d.graph.AddEdge(rec.Node, lr.Connected, edge)
		} else {
			edge.Bandwidth = lr.Link.Bandwidth
			edge.FullDuplex = lr.Link.FullDuplex
		}
		eff := lr.EffectiveBandwidth
		if d.topK > 1 {
			eff = d.loadAwareBandwidth(rec.Node, lr)
		}
		d.linkRecords[edge] = LinkRecord{Link: edge, Connected: lr.Connected, EffectiveBandwidth: eff}
	}

	if rec.Node != d.owner {
		present := make(map[*topology.Node]bool, len(rec.Links))
		for _, lr := range rec.Links {
			present[lr.Connected] = true
		}
		adj := d.graph.Neighbors(rec.Node)
		stale := make([]topology.Adjacency, 0, len(adj))
		for _, a := range adj {
			if !present[a.Peer] {
				stale = append(stale, a)
			}
		}
		for _, a := range stale {
			d.graph.RemoveEdge(rec.Node, a.Peer)
			delete(d.linkRecords, a.Link)
		}
	}

	d.InvalidateRoutes()
}

// loadAwareBandwidth degrades an advertised bandwidth by the worst queue
// pressure reported at either endpoint. Only applied in multipath mode:
// with a single candidate path the hint would just destabilize the one
// route.
func (d *Database) loadAwareBandwidth(origin *topology.Node, lr LinkRecord) float64 {
	ratio := 0.0
	if rec, ok := d.nodeRecords[origin]; ok && rec.HighestQueueRatio > ratio {
		ratio = rec.HighestQueueRatio
	}
	if rec, ok := d.nodeRecords[lr.Connected]; ok && rec.HighestQueueRatio > ratio {
		ratio = rec.HighestQueueRatio
	}
	return lr.EffectiveBandwidth * (1 - ratio)
}

// CreateNodeRecord snapshots the owner's current links and queue pressure.
func (d *Database) CreateNodeRecord() NodeRecord {
	rec := NodeRecord{Node: d.owner}
	for _, a := range d.graph.Neighbors(d.owner) {
		rec.Links = append(rec.Links, LinkRecord{
			Link:               a.Link,
			Connected:          a.Peer,
			EffectiveBandwidth: a.Link.EffectiveBandwidth(),
		})
	}
	if d.queues != nil {
		rec.HighestQueueRatio = d.queues.HighestQueueRatio(d.owner)
	}
	return rec
}

// Update advances the liveness timers and declares neighbors that exceeded
// the timeout dead: the dead node's record and the owner<->dead edge are
// dropped, and the route cache is invalidated. The declared-dead neighbors
// are returned so the router can advertise the topology change.
func (d *Database) Update(delta float64) []*topology.Node {
	var dead []*topology.Node
	for _, n := range d.neighborOrder {
		if _, ok := d.neighbors[n]; !ok {
			continue
		}
		d.neighbors[n] += delta
		if d.neighbors[n] >= d.neighborTimeout {
			dead = append(dead, n)
		}
	}
	for _, n := range dead {
		d.declareDead(n)
	}
	return dead
}

func (d *Database) declareDead(n *topology.Node) {
	slog.Info("declaring neighbor dead",
		"node", d.owner.Name, "neighbor", n.Name, "timeout", d.neighborTimeout)

	delete(d.neighbors, n)
	for i, v := range d.neighborOrder {
		if v == n {
			d.neighborOrder = append(d.neighborOrder[:i], d.neighborOrder[i+1:]...)
			break
		}
	}

	// The dead node's own view is untrusted now, but only the edge we can
	// vouch for — ours — is removed. Its other links stay until their
	// owners advertise otherwise.
	delete(d.nodeRecords, n)
	if e := d.graph.Edge(d.owner, n); e != nil {
		d.graph.RemoveEdge(d.owner, n)
		delete(d.linkRecords, e)
	}
	d.InvalidateRoutes()
}

// Routes returns the cached candidate routes for dst, computing them on a
// miss with the filtered k-path selection.
func (d *Database) Routes(dst *topology.Node) []*RouteInformation {
	if rts, ok := d.routes[dst]; ok {
		return rts
	}
	paths := d.KPathSelection(d.owner, dst, d.topK)
	rts := make([]*RouteInformation, 0, len(paths))
	for _, p := range paths {
		rts = append(rts, &RouteInformation{Path: p})
	}
	d.routes[dst] = rts
	return rts
}

// InvalidateRoutes discards every cached route.
func (d *Database) InvalidateRoutes() {
	if len(d.routes) > 0 {
		d.routes = make(map[*topology.Node][]*RouteInformation)
	}
}

// effectiveBandwidthOf reads a link's capacity from its record, falling
// back to the link attributes for edges without one.
func (d *Database) effectiveBandwidthOf(l *topology.Link) float64 {
	if lr, ok := d.linkRecords[l]; ok {
		return lr.EffectiveBandwidth
	}
	return l.EffectiveBandwidth()
}

// mustOwnVertex panics when the owner is missing from its own graph: that
// indicates a corrupted database, and continuing would route garbage.
func (d *Database) mustOwnVertex() {
	if !d.graph.HasVertex(d.owner) {
		panic(fmt.Sprintf("warp: node %s missing from its own local graph", d.owner.Name))
	}
}
