package warp

import (
	"github.com/google/uuid"

	"github.com/okdaichi/warp/internal/topology"
)

// headerBytes is the base datagram header: a 4-byte source handle and a
// 4-byte destination handle.
const headerBytes = 8

// Datagram is anything the forwarding plane can move between nodes.
// A nil Destination means broadcast.
type Datagram interface {
	Source() *topology.Node
	Destination() *topology.Node

	// Size is the on-wire size in bytes, used by the transmission model.
	Size() int
}

// Payload is a plain unicast datagram carrying application bytes.
type Payload struct {
	ID    uuid.UUID
	Src   *topology.Node
	Dst   *topology.Node
	Bytes int
}

// NewPayload creates a payload datagram of the given size in bytes.
func NewPayload(src, dst *topology.Node, bytes int) *Payload {
	return &Payload{ID: uuid.New(), Src: src, Dst: dst, Bytes: bytes}
}

func (p *Payload) Source() *topology.Node      { return p.Src }
func (p *Payload) Destination() *topology.Node { return p.Dst }
func (p *Payload) Size() int                   { return headerBytes + p.Bytes }

// SourceRouted is a datagram carrying its full forward path, so that
// intermediate nodes bypass their own path selection. Path[0] is the node
// that selected the path; HopIndex points at the vertex currently holding
// the datagram.
type SourceRouted struct {
	ID       uuid.UUID
	Src      *topology.Node
	Dst      *topology.Node
	Bytes    int
	Path     []*topology.Node
	HopIndex int
}

func (d *SourceRouted) Source() *topology.Node      { return d.Src }
func (d *SourceRouted) Destination() *topology.Node { return d.Dst }

// Size accounts for the embedded path: one 4-byte handle per hop on top of
// the header and the carried bytes.
func (d *SourceRouted) Size() int { return headerBytes + 4*len(d.Path) + d.Bytes }

// LSA is a link-state advertisement: one node's declaration of its current
// links, carried by a sequenced datagram. Dst is nil for flooded copies and
// set for unicast hellos and dead-neighbor advertisements. Forwarding is
// the neighbor that relayed this copy; it equals the origin on first
// emission.
type LSA struct {
	ID         uuid.UUID
	Src        *topology.Node
	Dst        *topology.Node
	Record     NodeRecord
	Sequence   uint64
	Forwarding *topology.Node
}

// NewLSA creates an advertisement of rec originating at src. dst may be nil
// for a broadcast copy.
func NewLSA(src, dst *topology.Node, rec NodeRecord, seq uint64) *LSA {
	return &LSA{
		ID:         uuid.New(),
		Src:        src,
		Dst:        dst,
		Record:     rec,
		Sequence:   seq,
		Forwarding: src,
	}
}

func (l *LSA) Source() *topology.Node      { return l.Src }
func (l *LSA) Destination() *topology.Node { return l.Dst }

// Size is the sequence number and origin handle plus 12 bytes per link
// record, on top of the base header.
func (l *LSA) Size() int { return headerBytes + 8 + 12*len(l.Record.Links) }

// Clone copies the advertisement for re-flooding. The clone is a distinct
// datagram with its own identity; the forwarding node is set by the caller.
func (l *LSA) Clone() *LSA {
	c := *l
	c.ID = uuid.New()
	return &c
}
