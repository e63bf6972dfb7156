// Package prometheus provides Prometheus implementations of the conn, node
// and cluster metrics interfaces.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/lava-go/core/metrics"
)

// timer wraps a Prometheus histogram to implement the Timer interface.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for connect latency (in seconds).
var defaultBuckets = []float64{
	.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30,
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// AllMetrics holds the Prometheus implementations for every layer.
type AllMetrics struct {
	Conn    *connMetrics
	Node    *nodeMetrics
	Cluster *clusterMetrics
}

// NewAllMetrics registers the metrics of all layers with reg.
func NewAllMetrics(reg prometheus.Registerer) *AllMetrics {
	return &AllMetrics{
		Conn:    NewConnMetrics(reg).(*connMetrics),
		Node:    NewNodeMetrics(reg).(*nodeMetrics),
		Cluster: NewClusterMetrics(reg).(*clusterMetrics),
	}
}
