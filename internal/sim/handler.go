package sim

import (
	"encoding/json"
	"net/http"
)

// GraphResponse is the JSON shape served by the /graph endpoint.
type GraphResponse struct {
	Nodes     []NodeResponse                `json:"nodes"`
	Adjacency map[string]map[string]float64 `json:"adjacency"`
}

// NodeResponse is one node in a graph response.
type NodeResponse struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// GraphHandlerFunc serves GET /graph: the real topology by default, or a
// node's local view with ?node=<name>. Adjacency values are effective
// bandwidths.
func GraphHandlerFunc(s *Simulation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		net := s.Network()

		graph := net.graph
		if name := r.URL.Query().Get("node"); name != "" {
			host, ok := net.Host(name)
			if !ok {
				jsonError(w, http.StatusNotFound, "unknown node "+name)
				return
			}
			graph = host.Router().DB().Graph()
		}

		net.mu.Lock()
		resp := GraphResponse{Adjacency: make(map[string]map[string]float64)}
		for _, v := range graph.Vertices() {
			pos := net.positions[v]
			resp.Nodes = append(resp.Nodes, NodeResponse{Name: v.Name, X: pos.X, Y: pos.Y})
			adj := graph.Neighbors(v)
			if len(adj) == 0 {
				continue
			}
			resp.Adjacency[v.Name] = make(map[string]float64, len(adj))
			for _, a := range adj {
				resp.Adjacency[v.Name][a.Peer.Name] = a.Link.EffectiveBandwidth()
			}
		}
		net.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// HealthHandlerFunc serves GET /health with the run counters.
func HealthHandlerFunc(s *Simulation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		net := s.Network()
		stats := net.Snapshot()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":              "ok",
			"sim_time_seconds":    net.Now(),
			"ticks":               stats.Ticks,
			"datagrams_delivered": stats.DatagramsDelivered,
			"datagrams_dropped":   stats.DatagramsDropped,
			"lsas_sent":           stats.LsasSent,
			"lsas_received":       stats.LsasReceived,
			"lsas_stale":          stats.LsasStale,
		})
	}
}

func jsonError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
