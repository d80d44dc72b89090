package warp

import "github.com/okdaichi/warp/internal/topology"

// LinkRecord is the advertised state of one link: the link itself, the node
// it reaches, and the effective bandwidth observed when the snapshot was
// taken.
type LinkRecord struct {
	Link               *topology.Link
	Connected          *topology.Node
	EffectiveBandwidth float64
}

// NodeRecord is a node's snapshot of its own links, as carried by an LSA.
// HighestQueueRatio is a load hint: the worst outbound queue fill ratio at
// snapshot time.
type NodeRecord struct {
	Node              *topology.Node
	Links             []LinkRecord
	HighestQueueRatio float64
}
