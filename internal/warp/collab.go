// Package warp implements the per-node WARP routing engine: the link-state
// database, LSA flooding with sequence numbers and neighbor liveness, the
// filtered k-shortest-paths selector, and the deficit-weighted path picker.
//
// A node's engine is a Router wired to its collaborators by explicit
// dependency injection; there is no process-wide state. All methods are
// driven cooperatively from a single simulation thread.
package warp

import "github.com/okdaichi/warp/internal/topology"

// TopologyOracle exposes the real network graph. The engine consults it
// only to synthesize a direct-neighbor edge when an LSA arrives from a
// physically adjacent node not yet present in the local graph.
type TopologyOracle interface {
	// NeighborsOf returns the nodes physically adjacent to n.
	NeighborsOf(n *topology.Node) []*topology.Node

	// LinkBetween returns the physical link connecting a and b, or nil.
	LinkBetween(a, b *topology.Node) *topology.Link
}

// LinkSender enqueues a datagram for transmission from one node toward
// another. The implementation owns queuing, transmission delay, and drops.
type LinkSender interface {
	SendDatagram(from, to *topology.Node, d Datagram)
}

// QueueObserver reports outbound queue pressure, feeding the load hint
// carried in node records.
type QueueObserver interface {
	// HighestQueueRatio returns the highest fill ratio, in [0, 1], across
	// n's per-link outbound queues.
	HighestQueueRatio(n *topology.Node) float64
}

// EventSink receives routing events for logging and telemetry. A single
// sink per node suffices.
type EventSink interface {
	OnDatagramReceived(n *topology.Node, d Datagram)
	OnPathAccepted(n *topology.Node, p topology.Path)
	OnPathPruned(n *topology.Node, p topology.Path)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) OnDatagramReceived(*topology.Node, Datagram)  {}
func (NopSink) OnPathAccepted(*topology.Node, topology.Path) {}
func (NopSink) OnPathPruned(*topology.Node, topology.Path)   {}
