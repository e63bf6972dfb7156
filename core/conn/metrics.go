package conn

import (
	"time"

	"github.com/codewandler/lava-go/core/metrics"
)

// ConnMetrics instruments a Connection. name is the connection name
// (usually the node id). All methods are thread-safe.
type ConnMetrics interface {
	ConnectDuration(name string) metrics.Timer
	ConnectCompleted(name string, success bool)
	Disconnected(name string, code int)
	ReconnectScheduled(name string, delay time.Duration)

	FrameSent(name string, op string)
	FrameReceived(name string, op string)
	ProtocolError(name string)
	QueueDepth(name string, depth int)
}

type nopConnMetrics struct{}

func (nopConnMetrics) ConnectDuration(string) metrics.Timer     { return metrics.NopTimer() }
func (nopConnMetrics) ConnectCompleted(string, bool)            {}
func (nopConnMetrics) Disconnected(string, int)                 {}
func (nopConnMetrics) ReconnectScheduled(string, time.Duration) {}
func (nopConnMetrics) FrameSent(string, string)                 {}
func (nopConnMetrics) FrameReceived(string, string)             {}
func (nopConnMetrics) ProtocolError(string)                     {}
func (nopConnMetrics) QueueDepth(string, int)                   {}

func NopConnMetrics() ConnMetrics { return nopConnMetrics{} }
