package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/okdaichi/warp/internal/topology"
)

// fileNode is the JSON representation of a node: its layout coordinate.
type fileNode struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// fileLink is the JSON representation of a link.
type fileLink struct {
	Vertices   []string `json:"vertices"`
	Bandwidth  float64  `json:"bandwidth"`
	FullDuplex bool     `json:"fullDuplex"`
}

// topologyFile is the top-level JSON structure of a topology input file.
type topologyFile struct {
	Nodes map[string]fileNode `json:"nodes"`
	Links []fileLink          `json:"links"`
}

// LoadTopologyFile reads a topology description and constructs the real
// network graph. Nodes are inserted in name order so the graph is
// deterministic regardless of map iteration.
func LoadTopologyFile(path string) (*topology.Graph, map[*topology.Node]Position, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read topology file: %w", err)
	}
	return parseTopology(data)
}

func parseTopology(data []byte) (*topology.Graph, map[*topology.Node]Position, error) {
	var tf topologyFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, nil, fmt.Errorf("unmarshal topology: %w", err)
	}
	if len(tf.Nodes) == 0 {
		return nil, nil, fmt.Errorf("topology has no nodes")
	}

	names := make([]string, 0, len(tf.Nodes))
	for name := range tf.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	g := topology.NewGraph()
	positions := make(map[*topology.Node]Position, len(names))
	byName := make(map[string]*topology.Node, len(names))
	for _, name := range names {
		n := topology.NewNode(name)
		if err := g.AddVertex(n); err != nil {
			return nil, nil, err
		}
		byName[name] = n
		positions[n] = Position{X: tf.Nodes[name].X, Y: tf.Nodes[name].Y}
	}

	for i, fl := range tf.Links {
		if len(fl.Vertices) != 2 {
			return nil, nil, fmt.Errorf("link %d: expected 2 vertices, got %d", i, len(fl.Vertices))
		}
		u, ok := byName[fl.Vertices[0]]
		if !ok {
			return nil, nil, fmt.Errorf("link %d: unknown node %q", i, fl.Vertices[0])
		}
		v, ok := byName[fl.Vertices[1]]
		if !ok {
			return nil, nil, fmt.Errorf("link %d: unknown node %q", i, fl.Vertices[1])
		}
		if fl.Bandwidth <= 0 {
			return nil, nil, fmt.Errorf("link %d: bandwidth must be positive", i)
		}
		if err := g.AddEdge(u, v, topology.NewLink(fl.Bandwidth, fl.FullDuplex)); err != nil {
			return nil, nil, err
		}
	}

	return g, positions, nil
}
