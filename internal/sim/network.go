// Package sim is the discrete-event harness that exercises the WARP
// engine: it owns the real topology, the per-link transmission queues, the
// per-node routers, and the tick loop that drives them.
package sim

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/okdaichi/warp/internal/topology"
	"github.com/okdaichi/warp/internal/warp"
	"github.com/okdaichi/warp/observability"
)

// Defaults for the simulation configuration.
const (
	DefaultTickSeconds        = 0.1
	DefaultQueueCapacityBytes = 64 * 1024
)

// Config holds the simulation parameters. The zero value is usable.
type Config struct {
	// TickSeconds is the fixed step of the simulation clock.
	TickSeconds float64

	// QueueCapacityBytes bounds each per-link outbound queue; datagrams
	// that do not fit are dropped.
	QueueCapacityBytes int

	// Seed feeds the per-node random sources, so runs are reproducible.
	Seed int64

	// Router configures every node's WARP engine.
	Router warp.Config
}

func (c Config) tickSeconds() float64 {
	if c.TickSeconds > 0 {
		return c.TickSeconds
	}
	return DefaultTickSeconds
}

func (c Config) queueCapacity() int {
	if c.QueueCapacityBytes > 0 {
		return c.QueueCapacityBytes
	}
	return DefaultQueueCapacityBytes
}

// Position is a node's layout coordinate, kept for the view command.
type Position struct {
	X, Y float64
}

// Stats are the network-wide counters accumulated over a run.
type Stats struct {
	Ticks              uint64
	DatagramsDelivered uint64
	DatagramsDropped   uint64
	LsasSent           uint64
	LsasReceived       uint64
	LsasStale          uint64
	PathsAccepted      uint64
	PathsPruned        uint64
}

// delivery is a datagram scheduled to arrive at a node at the end of the
// current tick.
type delivery struct {
	to *topology.Node
	d  warp.Datagram
}

// linkQueue is one node's outbound FIFO for a single link. Transmission is
// serialized: the head datagram occupies the link for size/bandwidth
// seconds before the next one starts.
type linkQueue struct {
	link     *topology.Link
	peer     *topology.Node
	items    []warp.Datagram
	bytes    int
	capacity int

	// headRemaining is the transmission time left for the head datagram;
	// zero means it has not started yet.
	headRemaining float64
}

func (q *linkQueue) fillRatio() float64 {
	if q.capacity == 0 {
		return 0
	}
	return float64(q.bytes) / float64(q.capacity)
}

// Host is one simulated node: its router plus its outbound link queues.
type Host struct {
	node   *topology.Node
	router *warp.Router
	queues []*linkQueue
	byLink map[*topology.Link]*linkQueue
}

// Node returns the host's identity.
func (h *Host) Node() *topology.Node { return h.node }

// Router returns the host's WARP engine.
func (h *Host) Router() *warp.Router { return h.router }

// Network is the simulated mesh. It implements the engine's collaborator
// interfaces (topology oracle, link sender, queue observer, event sink) so
// each router sees only injected dependencies.
//
// Step is called from the single simulation goroutine; the mutex exists for
// the HTTP status handlers that read concurrently.
type Network struct {
	mu  sync.RWMutex
	cfg Config

	graph     *topology.Graph
	positions map[*topology.Node]Position
	hosts     map[*topology.Node]*Host
	order     []*topology.Node
	byName    map[string]*topology.Node

	recorders map[*topology.Node]*observability.Recorder

	pending []delivery
	stats   Stats
	now     float64

	watch     uuid.UUID
	watchSet  bool
	watchDone bool
}

// NewNetwork builds hosts and routers for every vertex of graph. positions
// may be nil.
func NewNetwork(graph *topology.Graph, positions map[*topology.Node]Position, cfg Config) *Network {
	n := &Network{
		cfg:       cfg,
		graph:     graph,
		positions: positions,
		hosts:     make(map[*topology.Node]*Host),
		byName:    make(map[string]*topology.Node),
		recorders: make(map[*topology.Node]*observability.Recorder),
	}

	n.order = append(n.order, graph.Vertices()...)
	sort.Slice(n.order, func(i, j int) bool { return n.order[i].Name < n.order[j].Name })

	for i, v := range n.order {
		n.byName[v.Name] = v
		host := &Host{node: v, byLink: make(map[*topology.Link]*linkQueue)}
		for _, a := range graph.Neighbors(v) {
			q := &linkQueue{link: a.Link, peer: a.Peer, capacity: cfg.queueCapacity()}
			host.queues = append(host.queues, q)
			host.byLink[a.Link] = q
		}
		host.router = warp.NewRouter(v, cfg.Router, warp.Deps{
			Oracle: n,
			Sender: n,
			Queues: n,
			Events: n,
			Rand:   rand.New(rand.NewSource(cfg.Seed + int64(i))),
		})
		n.hosts[v] = host
	}
	return n
}

func (n *Network) recorder(v *topology.Node) *observability.Recorder {
	rec, ok := n.recorders[v]
	if !ok {
		rec = observability.NewRecorder(v.Name)
		n.recorders[v] = rec
	}
	return rec
}

// Step advances the simulation by delta seconds: every router updates
// (timeouts, then hello emissions), the link queues transmit, and finished
// datagrams are handed to their receivers. Nodes are visited in name order
// so runs are deterministic.
func (n *Network) Step(delta float64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.now += delta
	n.stats.Ticks++

	for _, v := range n.order {
		n.hosts[v].router.Update(delta)
	}
	for _, v := range n.order {
		for _, q := range n.hosts[v].queues {
			n.drain(q, delta)
		}
	}

	arrivals := n.pending
	n.pending = nil
	for _, a := range arrivals {
		host, ok := n.hosts[a.to]
		if !ok {
			continue
		}
		if _, isLSA := a.d.(*warp.LSA); isLSA {
			n.stats.LsasReceived++
			n.recorder(a.to).LsaReceived()
			staleBefore := host.router.StaleLSAs()
			host.router.Receive(a.d)
			if host.router.StaleLSAs() > staleBefore {
				n.stats.LsasStale++
				n.recorder(a.to).LsaStale()
			}
			continue
		}
		host.router.Receive(a.d)
	}
}

// drain transmits from q for up to budget seconds of link time.
func (n *Network) drain(q *linkQueue, budget float64) {
	for len(q.items) > 0 && budget > 0 {
		head := q.items[0]
		if q.headRemaining == 0 {
			eff := q.link.EffectiveBandwidth()
			if eff <= 0 {
				return // link unusable; queue stalls
			}
			q.headRemaining = float64(head.Size()*8) / eff
		}
		if q.headRemaining > budget {
			q.headRemaining -= budget
			return
		}
		budget -= q.headRemaining
		q.headRemaining = 0
		q.items = q.items[1:]
		q.bytes -= head.Size()
		n.pending = append(n.pending, delivery{to: q.peer, d: head})
	}
}

// --- collaborator contracts consumed by the routers ---

// NeighborsOf returns the physical neighbors of v.
func (n *Network) NeighborsOf(v *topology.Node) []*topology.Node {
	var peers []*topology.Node
	for _, a := range n.graph.Neighbors(v) {
		peers = append(peers, a.Peer)
	}
	return peers
}

// LinkBetween returns the physical link between a and b, or nil.
func (n *Network) LinkBetween(a, b *topology.Node) *topology.Link {
	return n.graph.Edge(a, b)
}

// SendDatagram enqueues d on the from-side queue of the link toward to.
// Advertisements addressed to nodes with no shared link (dead-neighbor
// unicasts) bypass the queues and arrive at the end of the tick.
func (n *Network) SendDatagram(from, to *topology.Node, d warp.Datagram) {
	host, ok := n.hosts[from]
	if !ok {
		return
	}
	if _, isLSA := d.(*warp.LSA); isLSA {
		n.stats.LsasSent++
		n.recorder(from).LsaSent()
	}
	link := n.graph.Edge(from, to)
	if link == nil {
		n.pending = append(n.pending, delivery{to: to, d: d})
		return
	}
	q := host.byLink[link]
	if q == nil || q.bytes+d.Size() > q.capacity {
		n.stats.DatagramsDropped++
		n.recorder(from).DatagramDropped()
		slog.Debug("outbound queue full, dropping datagram",
			"node", from.Name, "peer", to.Name, "size", d.Size())
		return
	}
	q.items = append(q.items, d)
	q.bytes += d.Size()
}

// HighestQueueRatio returns the worst outbound queue fill ratio at v.
func (n *Network) HighestQueueRatio(v *topology.Node) float64 {
	host, ok := n.hosts[v]
	if !ok {
		return 0
	}
	highest := 0.0
	for _, q := range host.queues {
		if r := q.fillRatio(); r > highest {
			highest = r
		}
	}
	return highest
}

// OnDatagramReceived records a local delivery.
func (n *Network) OnDatagramReceived(v *topology.Node, d warp.Datagram) {
	n.stats.DatagramsDelivered++
	n.recorder(v).DatagramDelivered()
	slog.Info("datagram delivered", "node", v.Name, "size", d.Size())
	if n.watchSet && deliveredID(d) == n.watch {
		n.watchDone = true
	}
}

// OnPathAccepted records a path accepted by the k-path selector.
func (n *Network) OnPathAccepted(v *topology.Node, p topology.Path) {
	n.stats.PathsAccepted++
	n.recorder(v).PathAccepted()
	slog.Debug("path accepted", "node", v.Name, "path", FormatPath(p), "weight", p.Weight)
}

// OnPathPruned records a path rejected by the k-path selector.
func (n *Network) OnPathPruned(v *topology.Node, p topology.Path) {
	n.stats.PathsPruned++
	n.recorder(v).PathPruned()
	slog.Debug("path pruned", "node", v.Name, "path", FormatPath(p), "weight", p.Weight)
}

func deliveredID(d warp.Datagram) uuid.UUID {
	switch v := d.(type) {
	case *warp.Payload:
		return v.ID
	case *warp.SourceRouted:
		return v.ID
	default:
		return uuid.UUID{}
	}
}

// --- operations behind the console and the HTTP handlers ---

// NodeByName resolves a node handle.
func (n *Network) NodeByName(name string) (*topology.Node, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.byName[name]
	return v, ok
}

// Host returns the host for the named node.
func (n *Network) Host(name string) (*Host, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.byName[name]
	if !ok {
		return nil, false
	}
	return n.hosts[v], true
}

// Nodes returns all node names in order.
func (n *Network) Nodes() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, len(n.order))
	for i, v := range n.order {
		names[i] = v.Name
	}
	return names
}

// Position returns the layout coordinate of v.
func (n *Network) Position(v *topology.Node) Position {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.positions[v]
}

// Send injects a payload of the given size at src, addressed to dst, and
// returns its datagram ID.
func (n *Network) Send(src, dst string, bytes int) (uuid.UUID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.byName[src]
	if !ok {
		return uuid.UUID{}, fmt.Errorf("unknown node %q", src)
	}
	t, ok := n.byName[dst]
	if !ok {
		return uuid.UUID{}, fmt.Errorf("unknown node %q", dst)
	}
	p := warp.NewPayload(s, t, bytes)
	n.hosts[s].router.Receive(p)
	return p.ID, nil
}

// SetTopK changes a node's candidate path budget.
func (n *Network) SetTopK(name string, k int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.byName[name]
	if !ok {
		return fmt.Errorf("unknown node %q", name)
	}
	n.hosts[v].router.DB().SetTopK(k)
	return nil
}

// Toggle flips a node's administrative state and returns the new state.
func (n *Network) Toggle(name string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.byName[name]
	if !ok {
		return false, fmt.Errorf("unknown node %q", name)
	}
	r := n.hosts[v].router
	r.SetActive(!r.Active())
	return r.Active(), nil
}

// CandidatePaths returns src's current route candidates toward dst.
func (n *Network) CandidatePaths(src, dst string) ([]topology.Path, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.byName[src]
	if !ok {
		return nil, fmt.Errorf("unknown node %q", src)
	}
	t, ok := n.byName[dst]
	if !ok {
		return nil, fmt.Errorf("unknown node %q", dst)
	}
	db := n.hosts[s].router.DB()
	routes := db.Routes(t)
	paths := make([]topology.Path, 0, len(routes))
	for _, r := range routes {
		paths = append(paths, r.Path)
	}
	return paths, nil
}

// SetWatch arms the quit-on-transmit trigger for the given datagram ID.
func (n *Network) SetWatch(id uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.watch = id
	n.watchSet = true
	n.watchDone = false
}

// WatchTriggered reports whether the watched datagram has been delivered.
func (n *Network) WatchTriggered() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.watchSet && n.watchDone
}

// Snapshot returns a copy of the run counters.
func (n *Network) Snapshot() Stats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stats
}

// Now returns the simulated time in seconds.
func (n *Network) Now() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.now
}

// FormatPath renders a path as dash-joined node names.
func FormatPath(p topology.Path) string {
	s := ""
	for i, v := range p.Nodes {
		if i > 0 {
			s += "-"
		}
		s += v.Name
	}
	return s
}
