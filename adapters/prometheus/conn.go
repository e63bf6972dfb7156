package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/lava-go/core/conn"
	"github.com/codewandler/lava-go/core/metrics"
)

// connMetrics implements conn.ConnMetrics using Prometheus.
type connMetrics struct {
	connectDuration *prometheus.HistogramVec
	connectsTotal   *prometheus.CounterVec
	disconnects     *prometheus.CounterVec
	reconnectDelay  *prometheus.GaugeVec
	framesSent      *prometheus.CounterVec
	framesReceived  *prometheus.CounterVec
	protocolErrors  *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
}

// NewConnMetrics creates a new Prometheus implementation of ConnMetrics.
func NewConnMetrics(reg prometheus.Registerer) conn.ConnMetrics {
	m := &connMetrics{
		connectDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lava_conn_connect_duration_seconds",
			Help:    "Websocket handshake latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"conn"}),

		connectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lava_conn_connects_total",
			Help: "Total number of connection attempts",
		}, []string{"conn", "success"}),

		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lava_conn_disconnects_total",
			Help: "Total number of closed sockets by close code",
		}, []string{"conn", "code"}),

		reconnectDelay: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lava_conn_reconnect_delay_seconds",
			Help: "Delay of the most recently scheduled reconnect",
		}, []string{"conn"}),

		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lava_conn_frames_sent_total",
			Help: "Total number of frames written",
		}, []string{"conn", "op"}),

		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lava_conn_frames_received_total",
			Help: "Total number of frames decoded",
		}, []string{"conn", "op"}),

		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lava_conn_protocol_errors_total",
			Help: "Total number of frames that could not be decoded",
		}, []string{"conn"}),

		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lava_conn_queue_depth",
			Help: "Number of frames waiting for the socket",
		}, []string{"conn"}),
	}

	reg.MustRegister(
		m.connectDuration,
		m.connectsTotal,
		m.disconnects,
		m.reconnectDelay,
		m.framesSent,
		m.framesReceived,
		m.protocolErrors,
		m.queueDepth,
	)

	return m
}

func (m *connMetrics) ConnectDuration(name string) metrics.Timer {
	return newTimer(m.connectDuration.WithLabelValues(name))
}

func (m *connMetrics) ConnectCompleted(name string, success bool) {
	m.connectsTotal.WithLabelValues(name, boolToStr(success)).Inc()
}

func (m *connMetrics) Disconnected(name string, code int) {
	m.disconnects.WithLabelValues(name, strconv.Itoa(code)).Inc()
}

func (m *connMetrics) ReconnectScheduled(name string, delay time.Duration) {
	m.reconnectDelay.WithLabelValues(name).Set(delay.Seconds())
}

func (m *connMetrics) FrameSent(name string, op string) {
	m.framesSent.WithLabelValues(name, op).Inc()
}

func (m *connMetrics) FrameReceived(name string, op string) {
	m.framesReceived.WithLabelValues(name, op).Inc()
}

func (m *connMetrics) ProtocolError(name string) {
	m.protocolErrors.WithLabelValues(name).Inc()
}

func (m *connMetrics) QueueDepth(name string, depth int) {
	m.queueDepth.WithLabelValues(name).Set(float64(depth))
}

var _ conn.ConnMetrics = (*connMetrics)(nil)
