package warp

import (
	"math"
	"math/rand"

	"github.com/okdaichi/warp/internal/topology"
)

// RouteInformation is one cached candidate route to a destination, with the
// byte accounting that drives the deficit feedback loop. Positive deficit
// means the route has received less traffic than its weight share implies.
type RouteInformation struct {
	Path           topology.Path
	TotalBytesSent float64
	DeficitBytes   float64
	AdjustedWeight float64
}

// PathPicker chooses among a destination's cached routes with a weighted
// random policy. Selection probability follows each route's adjusted
// weight; after every pick the deficits are rebalanced so that long-run
// byte shares converge to the weight distribution.
//
// The random source is injected so simulations and tests are reproducible.
type PathPicker struct {
	db  *Database
	rng *rand.Rand
}

// NewPathPicker creates a picker over db drawing from rng.
func NewPathPicker(db *Database, rng *rand.Rand) *PathPicker {
	return &PathPicker{db: db, rng: rng}
}

// Pick selects a route to dst for a packet of the given size, charges the
// packet against it, and updates every route's deficit. Returns nil when no
// route exists.
func (p *PathPicker) Pick(dst *topology.Node, packetSize int) *RouteInformation {
	routes := p.db.Routes(dst)
	if len(routes) == 0 {
		return nil
	}

	// alpha grows from 1 toward 2 with packet size; it sharpens the weight
	// term and damps the deficit term for large packets.
	alpha := 1 + float64(packetSize)/float64(packetSize+512)

	total := 0.0
	for _, rt := range routes {
		rt.AdjustedWeight = math.Max(0, math.Pow(rt.Path.Weight, alpha)+rt.DeficitBytes/alpha)
		total += rt.AdjustedWeight
	}

	selected := routes[len(routes)-1]
	draw := p.rng.Float64() * total
	sum := 0.0
	for _, rt := range routes {
		sum += rt.AdjustedWeight
		if sum >= draw {
			selected = rt
			break
		}
	}

	selected.TotalBytesSent += float64(packetSize)

	var totalBytes, totalWeight float64
	for _, rt := range routes {
		totalBytes += rt.TotalBytesSent
		totalWeight += rt.Path.Weight
	}
	for _, rt := range routes {
		rt.DeficitBytes = totalBytes*rt.Path.Weight/totalWeight - rt.TotalBytesSent
	}

	return selected
}
