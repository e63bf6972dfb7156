package conn

import (
	"github.com/sethvargo/go-retry"
)

// newBackoff returns a fresh reconnect schedule: exponential from
// ReconnectDelay, capped at MaxReconnectDelay, optionally jittered and
// limited to MaxReconnectAttempts.
func newBackoff(opts Options) retry.Backoff {
	b := retry.NewExponential(opts.ReconnectDelay)
	if opts.JitterPercent > 0 {
		b = retry.WithJitterPercent(opts.JitterPercent, b)
	}
	b = retry.WithCappedDuration(opts.MaxReconnectDelay, b)
	if opts.MaxReconnectAttempts > 0 {
		b = retry.WithMaxRetries(opts.MaxReconnectAttempts, b)
	}
	return b
}
