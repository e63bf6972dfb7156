package cluster

// ClusterMetrics instruments guild routing and the node pool.
// All methods are thread-safe.
type ClusterMetrics interface {
	// Routing outcome: affinity, selected, no_node
	Routed(result string)
	NodesConnected(count int)
	NodeEvent(nodeID string, event string)
}

type nopClusterMetrics struct{}

func (nopClusterMetrics) Routed(string)            {}
func (nopClusterMetrics) NodesConnected(int)       {}
func (nopClusterMetrics) NodeEvent(string, string) {}

// NopClusterMetrics returns a no-op ClusterMetrics implementation.
func NopClusterMetrics() ClusterMetrics { return nopClusterMetrics{} }
