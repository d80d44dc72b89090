package warp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okdaichi/warp/internal/topology"
)

// staticOracle serves a fixed live-network graph.
type staticOracle struct {
	graph *topology.Graph
}

func (o *staticOracle) NeighborsOf(n *topology.Node) []*topology.Node {
	var peers []*topology.Node
	for _, a := range o.graph.Neighbors(n) {
		peers = append(peers, a.Peer)
	}
	return peers
}

func (o *staticOracle) LinkBetween(a, b *topology.Node) *topology.Link {
	return o.graph.Edge(a, b)
}

func record(n *topology.Node, peers ...*topology.Node) NodeRecord {
	rec := NodeRecord{Node: n}
	for _, p := range peers {
		rec.Links = append(rec.Links, LinkRecord{
			Link:               topology.NewLink(1000, true),
			Connected:          p,
			EffectiveBandwidth: 1000,
		})
	}
	return rec
}

func TestDatabase_ProcessLSA_AcceptAndStale(t *testing.T) {
	owner := topology.NewNode("owner")
	origin := topology.NewNode("origin")
	db := NewDatabase(owner, 1, 12, nil, nil, nil)

	lsa := NewLSA(origin, nil, record(origin), 3)
	require.True(t, db.ProcessLSA(lsa))
	assert.Equal(t, uint64(3), db.SequenceNumber(origin))

	_, ok := db.NodeRecord(origin)
	assert.True(t, ok)

	// Same sequence again: stale, no mutation.
	again := NewLSA(origin, nil, record(origin, topology.NewNode("phantom")), 3)
	assert.False(t, db.ProcessLSA(again))
	rec, _ := db.NodeRecord(origin)
	assert.Empty(t, rec.Links, "stale LSA must not replace the stored record")

	// Newer sequence: accepted.
	newer := NewLSA(origin, nil, record(origin), 4)
	assert.True(t, db.ProcessLSA(newer))
	assert.Equal(t, uint64(4), db.SequenceNumber(origin))
}

func TestDatabase_ProcessLSA_StaleResetsForwarderTimer(t *testing.T) {
	live := topology.NewGraph()
	owner := topology.NewNode("owner")
	nb := topology.NewNode("nb")
	require.NoError(t, live.AddEdge(owner, nb, topology.NewLink(1000, true)))

	db := NewDatabase(owner, 1, 10, &staticOracle{graph: live}, nil, nil)

	// First LSA from nb establishes it as a direct neighbor.
	require.True(t, db.ProcessLSA(NewLSA(nb, nil, record(nb, owner), 1)))
	require.True(t, db.IsDirectNeighbor(nb))

	db.Update(4)
	assert.InDelta(t, 4, db.NeighborElapsed(nb), 1e-9)

	// A stale LSA still proves the forwarder is alive.
	assert.False(t, db.ProcessLSA(NewLSA(nb, nil, record(nb, owner), 1)))
	assert.InDelta(t, 0, db.NeighborElapsed(nb), 1e-9)
}

func TestDatabase_ProcessLSA_SynthesizesDirectNeighborEdge(t *testing.T) {
	live := topology.NewGraph()
	owner := topology.NewNode("owner")
	nb := topology.NewNode("nb")
	require.NoError(t, live.AddEdge(owner, nb, topology.NewLink(2000, false)))

	db := NewDatabase(owner, 1, 10, &staticOracle{graph: live}, nil, nil)
	require.Nil(t, db.Graph().Edge(owner, nb))

	require.True(t, db.ProcessLSA(NewLSA(nb, nil, record(nb), 1)))

	edge := db.Graph().Edge(owner, nb)
	require.NotNil(t, edge, "owner<->forwarder edge must be synthesized")
	assert.Equal(t, 2000.0, edge.Bandwidth)
	assert.False(t, edge.FullDuplex)
	assert.NotSame(t, live.Edge(owner, nb), edge, "local graph holds a clone, not the shared link")

	rec, ok := db.NodeRecord(owner)
	require.True(t, ok)
	require.Len(t, rec.Links, 1)
	assert.Same(t, nb, rec.Links[0].Connected)
}

func TestDatabase_UpsertNodeRecord_RemovesOmittedEdges(t *testing.T) {
	owner := topology.NewNode("owner")
	b, c, d := topology.NewNode("b"), topology.NewNode("c"), topology.NewNode("d")
	db := NewDatabase(owner, 1, 12, nil, nil, nil)

	db.UpsertNodeRecord(record(b, c, d))
	require.NotNil(t, db.Graph().Edge(b, c))
	require.NotNil(t, db.Graph().Edge(b, d))

	// b now advertises only c: the b-d edge must go.
	db.UpsertNodeRecord(record(b, c))
	assert.NotNil(t, db.Graph().Edge(b, c))
	assert.Nil(t, db.Graph().Edge(b, d))
}

func TestDatabase_UpsertNodeRecord_KeepsExistingEdgeObject(t *testing.T) {
	owner := topology.NewNode("owner")
	b, c := topology.NewNode("b"), topology.NewNode("c")
	db := NewDatabase(owner, 1, 12, nil, nil, nil)

	db.UpsertNodeRecord(record(b, c))
	first := db.Graph().Edge(b, c)
	require.NotNil(t, first)

	db.UpsertNodeRecord(record(b, c))
	assert.Same(t, first, db.Graph().Edge(b, c), "re-upsert keeps the edge object")
}

func TestDatabase_SelfRecordNeverRemovesEdges(t *testing.T) {
	owner := topology.NewNode("owner")
	b := topology.NewNode("b")
	db := NewDatabase(owner, 1, 12, nil, nil, nil)
	require.NoError(t, db.Graph().AddEdge(owner, b, topology.NewLink(1000, true)))

	// An empty self-record must not strip the directly discovered edge.
	db.UpsertNodeRecord(NodeRecord{Node: owner})
	assert.NotNil(t, db.Graph().Edge(owner, b))
}

func TestDatabase_CreateUpsertRoundTripIdempotent(t *testing.T) {
	owner := topology.NewNode("owner")
	b, c := topology.NewNode("b"), topology.NewNode("c")
	db := NewDatabase(owner, 1, 12, nil, nil, nil)
	require.NoError(t, db.Graph().AddEdge(owner, b, topology.NewLink(1000, true)))
	require.NoError(t, db.Graph().AddEdge(owner, c, topology.NewLink(500, false)))

	before := len(db.Graph().Links())
	edgeB, edgeC := db.Graph().Edge(owner, b), db.Graph().Edge(owner, c)

	db.UpsertNodeRecord(db.CreateNodeRecord())

	assert.Equal(t, before, len(db.Graph().Links()))
	assert.Same(t, edgeB, db.Graph().Edge(owner, b))
	assert.Same(t, edgeC, db.Graph().Edge(owner, c))
}

func TestDatabase_NextSequenceNumber(t *testing.T) {
	owner := topology.NewNode("owner")
	origin := topology.NewNode("origin")
	db := NewDatabase(owner, 1, 12, nil, nil, nil)

	assert.Equal(t, uint64(1), db.NextSequenceNumber())
	assert.Equal(t, uint64(2), db.NextSequenceNumber())

	// Accepting a high sequence from another origin raises our own floor.
	require.True(t, db.ProcessLSA(NewLSA(origin, nil, record(origin), 10)))
	assert.Equal(t, uint64(11), db.NextSequenceNumber())
}

func TestDatabase_Update_DeclaresDeadNeighbor(t *testing.T) {
	live := topology.NewGraph()
	owner := topology.NewNode("owner")
	nb := topology.NewNode("nb")
	far := topology.NewNode("far")
	require.NoError(t, live.AddEdge(owner, nb, topology.NewLink(1000, true)))

	db := NewDatabase(owner, 1, 5, &staticOracle{graph: live}, nil, nil)
	require.True(t, db.ProcessLSA(NewLSA(nb, nil, record(nb, owner, far), 1)))
	require.True(t, db.IsDirectNeighbor(nb))

	dead := db.Update(5)
	require.Len(t, dead, 1)
	assert.Same(t, nb, dead[0])

	assert.False(t, db.IsDirectNeighbor(nb))
	assert.Nil(t, db.Graph().Edge(owner, nb))
	_, ok := db.NodeRecord(nb)
	assert.False(t, ok)

	// The dead node's other links are someone else's to retract.
	assert.NotNil(t, db.Graph().Edge(nb, far))
}

func TestDatabase_DeadNeighborRevivesOnNextLSA(t *testing.T) {
	live := topology.NewGraph()
	owner := topology.NewNode("owner")
	nb := topology.NewNode("nb")
	require.NoError(t, live.AddEdge(owner, nb, topology.NewLink(1000, true)))

	db := NewDatabase(owner, 1, 5, &staticOracle{graph: live}, nil, nil)
	require.True(t, db.ProcessLSA(NewLSA(nb, nil, record(nb, owner), 1)))
	db.Update(5)
	require.False(t, db.IsDirectNeighbor(nb))

	require.True(t, db.ProcessLSA(NewLSA(nb, nil, record(nb, owner), 2)))
	assert.True(t, db.IsDirectNeighbor(nb))
	assert.NotNil(t, db.Graph().Edge(owner, nb))
}

func TestDatabase_SetTopK_InvalidatesRoutes(t *testing.T) {
	owner := topology.NewNode("owner")
	dst := topology.NewNode("dst")
	db := NewDatabase(owner, 1, 12, nil, nil, nil)
	require.NoError(t, db.Graph().AddEdge(owner, dst, topology.NewLink(1000, true)))

	first := db.Routes(dst)
	require.Len(t, first, 1)
	assert.Equal(t, first, db.Routes(dst), "second lookup hits the cache")

	db.SetTopK(2)
	second := db.Routes(dst)
	require.Len(t, second, 1)
	assert.NotSame(t, first[0], second[0], "top-k change must rebuild routes")
}
