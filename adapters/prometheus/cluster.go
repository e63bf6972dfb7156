package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/lava-go/core/cluster"
)

// clusterMetrics implements cluster.ClusterMetrics using Prometheus.
type clusterMetrics struct {
	routed         *prometheus.CounterVec
	nodesConnected prometheus.Gauge
	nodeEvents     *prometheus.CounterVec
}

// NewClusterMetrics creates a new Prometheus implementation of ClusterMetrics.
func NewClusterMetrics(reg prometheus.Registerer) cluster.ClusterMetrics {
	m := &clusterMetrics{
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lava_cluster_routed_total",
			Help: "Total number of guild placements by outcome",
		}, []string{"result"}),

		nodesConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lava_cluster_nodes_connected",
			Help: "Number of connected nodes",
		}),

		nodeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lava_cluster_node_events_total",
			Help: "Total number of node events",
		}, []string{"node", "event"}),
	}

	reg.MustRegister(
		m.routed,
		m.nodesConnected,
		m.nodeEvents,
	)

	return m
}

func (m *clusterMetrics) Routed(result string) {
	m.routed.WithLabelValues(result).Inc()
}

func (m *clusterMetrics) NodesConnected(count int) {
	m.nodesConnected.Set(float64(count))
}

func (m *clusterMetrics) NodeEvent(nodeID string, event string) {
	m.nodeEvents.WithLabelValues(nodeID, event).Inc()
}

var _ cluster.ClusterMetrics = (*clusterMetrics)(nil)
