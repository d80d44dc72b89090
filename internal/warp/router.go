package warp

import (
	"errors"
	"hash/fnv"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"

	"github.com/okdaichi/warp/internal/topology"
)

// errBroadcastNextHop is returned when the forwarding plane is asked to
// route a datagram with no destination. Only unicast datagrams forward.
var errBroadcastNextHop = errors.New("cannot compute next hop for a broadcast datagram")

// Defaults for the per-node engine configuration.
const (
	DefaultTopK                = 3
	DefaultNeighborTimeout     = 12.0 // seconds
	DefaultHelloInterval       = 3.0  // seconds
	DefaultHelloBroadcastEvery = 5
)

// Config holds the per-node engine parameters. The zero value is usable;
// every field falls back to its default.
type Config struct {
	// TopK is the maximum number of candidate paths kept per destination.
	// 1 degenerates to shortest-path routing.
	TopK int

	// NeighborTimeout is how many seconds a direct neighbor may stay
	// silent before it is declared dead.
	NeighborTimeout float64

	// HelloInterval is the seconds between hello emissions. The first
	// emission is jittered per node to avoid fleet-wide synchronization.
	HelloInterval float64

	// HelloBroadcastEvery makes every Nth hello a broadcast; the others
	// are unicast to each direct neighbor.
	HelloBroadcastEvery int
}

func (c Config) topK() int {
	if c.TopK > 0 {
		return c.TopK
	}
	return DefaultTopK
}

func (c Config) neighborTimeout() float64 {
	if c.NeighborTimeout > 0 {
		return c.NeighborTimeout
	}
	return DefaultNeighborTimeout
}

func (c Config) helloInterval() float64 {
	if c.HelloInterval > 0 {
		return c.HelloInterval
	}
	return DefaultHelloInterval
}

func (c Config) helloBroadcastEvery() int {
	if c.HelloBroadcastEvery > 0 {
		return c.HelloBroadcastEvery
	}
	return DefaultHelloBroadcastEvery
}

// Deps are the collaborators a router is constructed with. Sender and
// Oracle are required; Queues and Events may be nil; Rand defaults to a
// source seeded from the node name.
type Deps struct {
	Oracle TopologyOracle
	Sender LinkSender
	Queues QueueObserver
	Events EventSink
	Rand   *rand.Rand
}

// Router is the per-node WARP engine: it owns the link-state database,
// runs the hello/flooding schedule, and makes per-datagram forwarding
// decisions. It is driven cooperatively by Update and Receive from a
// single thread.
type Router struct {
	node   *topology.Node
	db     *Database
	picker *PathPicker
	oracle TopologyOracle
	sender LinkSender
	events EventSink

	active bool

	helloInterval  float64
	broadcastEvery int
	helloElapsed   float64
	helloCount     int

	drops     uint64
	staleLSAs uint64
}

// NewRouter wires a routing engine for node.
func NewRouter(node *topology.Node, cfg Config, deps Deps) *Router {
	rng := deps.Rand
	if rng == nil {
		h := fnv.New64a()
		h.Write([]byte(node.Name))
		rng = rand.New(rand.NewSource(int64(h.Sum64())))
	}
	events := deps.Events
	if events == nil {
		events = NopSink{}
	}
	db := NewDatabase(node, cfg.topK(), cfg.neighborTimeout(), deps.Oracle, deps.Queues, events)
	r := &Router{
		node:           node,
		db:             db,
		picker:         NewPathPicker(db, rng),
		oracle:         deps.Oracle,
		sender:         deps.Sender,
		events:         events,
		active:         true,
		helloInterval:  cfg.helloInterval(),
		broadcastEvery: cfg.helloBroadcastEvery(),
	}
	// Desynchronize the fleet: start each node partway into its interval.
	r.helloElapsed = rng.Float64() * r.helloInterval
	return r
}

// Node returns the identity this router serves.
func (r *Router) Node() *topology.Node { return r.node }

// DB exposes the link-state database.
func (r *Router) DB() *Database { return r.db }

// Active reports the administrative state.
func (r *Router) Active() bool { return r.active }

// SetActive brings the node administratively up or down. A down node drops
// every received datagram and emits nothing.
func (r *Router) SetActive(active bool) { r.active = active }

// Drops returns the number of datagrams this node has dropped.
func (r *Router) Drops() uint64 { return r.drops }

// StaleLSAs returns the number of advertisements rejected as stale.
func (r *Router) StaleLSAs() uint64 { return r.staleLSAs }

// Update advances the engine by delta seconds: neighbor timeouts first,
// then due hello emissions. Received datagrams are ingested separately via
// Receive, after all nodes have updated, so the per-tick order is
// deterministic.
func (r *Router) Update(delta float64) {
	if !r.active {
		return
	}
	for _, dead := range r.db.Update(delta) {
		r.advertiseDeadNeighbor(dead)
	}
	r.helloElapsed += delta
	for r.helloElapsed >= r.helloInterval {
		r.helloElapsed -= r.helloInterval
		r.emitHello()
	}
}

// emitHello advertises a fresh snapshot of the owner's record to every
// physical neighbor. Every Nth emission is a broadcast (no destination);
// the rest are unicast per neighbor, which receivers deliver without
// re-flooding.
func (r *Router) emitHello() {
	r.helloCount++
	broadcast := r.helloCount%r.broadcastEvery == 0

	rec := r.db.CreateNodeRecord()
	seq := r.db.NextSequenceNumber()
	for _, nb := range r.oracle.NeighborsOf(r.node) {
		var dst *topology.Node
		if !broadcast {
			dst = nb
		}
		r.sender.SendDatagram(r.node, nb, NewLSA(r.node, dst, rec, seq))
	}
}

// advertiseDeadNeighbor tells the dead node's remaining neighbors that the
// owner's side of the link is gone. The advertisement is unicast, not
// flooded, and unicast advertisements are terminal: each receiver applies
// the record if its sequence check accepts it and does not re-flood it.
func (r *Router) advertiseDeadNeighbor(dead *topology.Node) {
	rec := r.db.CreateNodeRecord()
	seq := r.db.NextSequenceNumber()
	for _, a := range r.db.Graph().Neighbors(dead) {
		if a.Peer == r.node {
			continue
		}
		r.sender.SendDatagram(r.node, a.Peer, NewLSA(r.node, a.Peer, rec, seq))
	}
}

// Receive ingests a datagram arriving at this node. Inactive nodes drop
// everything. LSAs go to the flooding logic; datagrams for this node are
// delivered to the event sink; anything else is forwarded.
func (r *Router) Receive(d Datagram) {
	if !r.active {
		r.drops++
		return
	}
	if lsa, ok := d.(*LSA); ok {
		r.receiveLSA(lsa)
		return
	}
	if d.Destination() == r.node {
		r.events.OnDatagramReceived(r.node, d)
		return
	}
	fwd, hop, err := r.NextHop(d)
	if err != nil {
		r.drops++
		slog.Warn("dropping unroutable datagram", "node", r.node.Name, "err", err)
		return
	}
	if hop == nil {
		r.drops++
		return
	}
	r.sender.SendDatagram(r.node, hop, fwd)
}

func (r *Router) receiveLSA(lsa *LSA) {
	if !r.db.ProcessLSA(lsa) {
		r.staleLSAs++
		return
	}
	if lsa.Dst != nil {
		// Unicast advertisements are terminal: deliver, never re-flood.
		return
	}
	// Split-horizon flood: skip the origin and the upstream forwarder.
	for _, nb := range r.db.DirectNeighbors() {
		if nb == lsa.Src || nb == lsa.Forwarding {
			continue
		}
		clone := lsa.Clone()
		clone.Forwarding = r.node
		r.sender.SendDatagram(r.node, nb, clone)
	}
}

// NextHop decides where d goes from this node.
//
// Local delivery returns a nil hop with a nil error. Source-routed
// datagrams advance along their embedded path; a datagram that ran out of
// path returns a nil hop (drop). Anything else gets a fresh route from the
// path picker and is rewritten into a source-routed datagram whose hop
// index starts at 1.
func (r *Router) NextHop(d Datagram) (Datagram, *topology.Node, error) {
	if d.Destination() == r.node {
		return d, nil, nil
	}
	if d.Destination() == nil {
		return d, nil, errBroadcastNextHop
	}

	if sr, ok := d.(*SourceRouted); ok {
		sr.HopIndex++
		if sr.HopIndex < len(sr.Path) {
			return sr, sr.Path[sr.HopIndex], nil
		}
		return sr, nil, nil // path exhausted
	}

	rt := r.picker.Pick(d.Destination(), d.Size())
	if rt == nil || len(rt.Path.Nodes) < 2 {
		return d, nil, nil
	}
	sr := &SourceRouted{
		ID:       datagramID(d),
		Src:      d.Source(),
		Dst:      d.Destination(),
		Bytes:    payloadBytes(d),
		Path:     rt.Path.Nodes,
		HopIndex: 1,
	}
	return sr, sr.Path[1], nil
}

func payloadBytes(d Datagram) int {
	if p, ok := d.(*Payload); ok {
		return p.Bytes
	}
	return d.Size()
}

func datagramID(d Datagram) uuid.UUID {
	switch v := d.(type) {
	case *Payload:
		return v.ID
	case *SourceRouted:
		return v.ID
	case *LSA:
		return v.ID
	default:
		return uuid.New()
	}
}
