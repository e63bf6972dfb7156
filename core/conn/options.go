package conn

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codewandler/lava-go/ports/kv"
)

const (
	DefaultClientName        = "lava-go"
	DefaultResumeTimeout     = 60 * time.Second
	DefaultReconnectDelay    = 100 * time.Millisecond
	DefaultMaxReconnectDelay = 10 * time.Second
	DefaultCloseTimeout      = 5 * time.Second
	DefaultHandshakeTimeout  = 45 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
)

type Options struct {
	Log *slog.Logger
	// Name identifies the connection in logs and metrics.
	Name string
	// URL is the websocket endpoint, e.g. ws://localhost:2333.
	URL string

	Password   string
	UserID     string
	NumShards  int
	ClientName string
	// Header is merged into the handshake headers.
	Header http.Header

	// ResumeKey enables resuming from the first open on.
	ResumeKey     string
	ResumeTimeout time.Duration
	// ResumeStore persists the resume key under ResumeStoreKey so a new
	// process replays it in its first handshake.
	ResumeStore    kv.Store
	ResumeStoreKey string

	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	// MaxReconnectAttempts stops reconnecting after that many consecutive
	// failures. Zero retries forever.
	MaxReconnectAttempts uint64
	// JitterPercent randomizes each reconnect delay by +/- that percentage.
	JitterPercent uint64

	// CloseTimeout bounds the wait for the peer to confirm a close.
	CloseTimeout     time.Duration
	HandshakeTimeout time.Duration
	// WriteTimeout fails a frame write the peer does not accept in time.
	WriteTimeout time.Duration
	Dialer       *websocket.Dialer

	Handler Handler
	Metrics ConnMetrics
}

func (o Options) withDefaults() Options {
	if o.Log == nil {
		o.Log = slog.Default()
	}
	if o.Name == "" {
		o.Name = o.URL
	}
	if o.NumShards <= 0 {
		o.NumShards = 1
	}
	if o.ClientName == "" {
		o.ClientName = DefaultClientName
	}
	if o.ResumeTimeout <= 0 {
		o.ResumeTimeout = DefaultResumeTimeout
	}
	if o.ResumeStoreKey == "" {
		o.ResumeStoreKey = "resume/" + o.Name
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.MaxReconnectDelay <= 0 {
		o.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	if o.MaxReconnectDelay < o.ReconnectDelay {
		o.MaxReconnectDelay = o.ReconnectDelay
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = DefaultCloseTimeout
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: o.HandshakeTimeout,
		}
	}
	if o.Handler == nil {
		o.Handler = HandlerFuncs{}
	}
	if o.Metrics == nil {
		o.Metrics = NopConnMetrics()
	}
	return o
}
