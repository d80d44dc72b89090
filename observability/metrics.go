package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors are registered once at package load; Recorder
// methods become no-ops while metrics are disabled.
var (
	lsasSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warp_lsas_sent_total",
		Help: "Link-state advertisements emitted, per node.",
	}, []string{"node"})

	lsasReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warp_lsas_received_total",
		Help: "Link-state advertisements ingested, per node.",
	}, []string{"node"})

	lsasStale = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warp_lsas_stale_total",
		Help: "Advertisements rejected for stale sequence numbers, per node.",
	}, []string{"node"})

	pathsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warp_paths_accepted_total",
		Help: "Candidate paths accepted by the k-path selector, per node.",
	}, []string{"node"})

	pathsPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warp_paths_pruned_total",
		Help: "Candidate paths pruned by the k-path selector, per node.",
	}, []string{"node"})

	datagramsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warp_datagrams_delivered_total",
		Help: "Datagrams delivered locally, per node.",
	}, []string{"node"})

	datagramsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warp_datagrams_dropped_total",
		Help: "Datagrams dropped on a full outbound queue, per node. Drops counted inside a router (unroutable, or received while down) are not included.",
	}, []string{"node"})

	queueFillRatio = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "warp_queue_fill_ratio",
		Help: "Worst outbound queue fill ratio, per node.",
	}, []string{"node"})
)

// Recorder records routing metrics for one node.
type Recorder struct {
	node string
}

// NewRecorder creates a recorder labeled with the node name.
func NewRecorder(node string) *Recorder {
	return &Recorder{node: node}
}

func (r *Recorder) LsaSent() {
	if MetricsEnabled() {
		lsasSent.WithLabelValues(r.node).Inc()
	}
}

func (r *Recorder) LsaReceived() {
	if MetricsEnabled() {
		lsasReceived.WithLabelValues(r.node).Inc()
	}
}

func (r *Recorder) LsaStale() {
	if MetricsEnabled() {
		lsasStale.WithLabelValues(r.node).Inc()
	}
}

func (r *Recorder) PathAccepted() {
	if MetricsEnabled() {
		pathsAccepted.WithLabelValues(r.node).Inc()
	}
}

func (r *Recorder) PathPruned() {
	if MetricsEnabled() {
		pathsPruned.WithLabelValues(r.node).Inc()
	}
}

func (r *Recorder) DatagramDelivered() {
	if MetricsEnabled() {
		datagramsDelivered.WithLabelValues(r.node).Inc()
	}
}

func (r *Recorder) DatagramDropped() {
	if MetricsEnabled() {
		datagramsDropped.WithLabelValues(r.node).Inc()
	}
}

func (r *Recorder) SetQueueFillRatio(ratio float64) {
	if MetricsEnabled() {
		queueFillRatio.WithLabelValues(r.node).Set(ratio)
	}
}
