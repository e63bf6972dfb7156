package conn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/codewandler/lava-go/core/protocol"
	"github.com/codewandler/lava-go/ports/kv"
)

type socket struct {
	ws   *websocket.Conn
	done chan struct{} // closed when the read loop exits
	// turn is closed when the last writer that claimed a turn is done.
	// Guarded by Connection.mu.
	turn chan struct{}
	// dispatching is set while a handler runs on the read loop.
	dispatching atomic.Bool
}

func newSocket(ws *websocket.Conn) *socket {
	turn := make(chan struct{})
	close(turn)
	return &socket{ws: ws, done: make(chan struct{}), turn: turn}
}

// claimTurnLocked reserves the next write slot on s. The caller waits on
// wait, writes, then calls release.
func (s *socket) claimTurnLocked() (wait <-chan struct{}, release func()) {
	prev := s.turn
	next := make(chan struct{})
	s.turn = next
	return prev, func() { close(next) }
}

type resumeRecord struct {
	Key     string `json:"key"`
	Timeout int    `json:"timeout"`
}

type Connection struct {
	log     *slog.Logger
	opts    Options
	handler Handler
	metrics ConnMetrics

	sf singleflight.Group

	mu            sync.Mutex
	state         State
	initialized   bool
	closing       bool
	sock          *socket
	flushing      bool
	queue         *outQueue
	backoff       retry.Backoff
	timer         *time.Timer
	gen           uint64
	resumeKey     string
	resumeTimeout time.Duration
	resumeLoaded  bool
}

func New(opts Options) (*Connection, error) {
	if opts.URL == "" {
		return nil, ErrURLRequired
	}
	opts = opts.withDefaults()

	return &Connection{
		log:           opts.Log.With(slog.String("conn", opts.Name)),
		opts:          opts,
		handler:       opts.Handler,
		metrics:       opts.Metrics,
		queue:         newOutQueue(),
		backoff:       newBackoff(opts),
		resumeKey:     opts.ResumeKey,
		resumeTimeout: opts.ResumeTimeout,
	}, nil
}

func (c *Connection) Name() string { return c.opts.Name }

func (c *Connection) URL() string { return c.opts.URL }

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether a socket is open.
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock != nil
}

func (c *Connection) ResumeKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumeKey
}

// QueueLen is the number of frames waiting for an open socket.
func (c *Connection) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

// Connect opens the socket and returns once it is open. An open socket is
// closed first. Concurrent calls share one attempt.
//
// A failed dial returns a *ConnectionError and schedules a reconnect.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.initialized = true
	c.closing = false
	c.mu.Unlock()

	return c.connectShared(ctx)
}

func (c *Connection) connectShared(ctx context.Context) error {
	ch := c.sf.DoChan("connect", func() (any, error) {
		return nil, c.connect(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection) connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return ErrClosed
	}
	c.stopTimerLocked()
	old := c.sock
	c.sock = nil
	c.flushing = false
	c.state = StateConnecting
	c.mu.Unlock()

	if old != nil {
		c.log.Debug("closing open socket before reconnect")
		_ = c.closeSocket(ctx, old, websocket.CloseNormalClosure, "reconnect")
		c.metrics.Disconnected(c.opts.Name, websocket.CloseNormalClosure)
		c.handler.OnClose(websocket.CloseNormalClosure, "reconnect")
	}

	header := c.handshakeHeader(ctx)

	timer := c.metrics.ConnectDuration(c.opts.Name)
	ws, resp, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, header)
	timer.ObserveDuration()
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		cerr := &ConnectionError{Op: "dial", URL: c.opts.URL, Err: err}
		if resp != nil {
			cerr.StatusCode = resp.StatusCode
		}
		c.metrics.ConnectCompleted(c.opts.Name, false)
		c.log.Warn("connect failed", slog.Any("error", cerr))
		c.handler.OnError(cerr)

		c.mu.Lock()
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return cerr
	}

	c.mu.Lock()
	if c.closing {
		c.state = StateDisconnected
		c.mu.Unlock()
		_ = ws.Close()
		return ErrClosed
	}
	s := newSocket(ws)
	c.sock = s
	c.state = StateOpen
	c.flushing = true
	c.backoff = newBackoff(c.opts)
	c.mu.Unlock()

	c.metrics.ConnectCompleted(c.opts.Name, true)
	c.log.Info("connected", slog.String("url", c.opts.URL))

	go c.readLoop(s)

	c.handler.OnOpen()
	c.afterOpen(ctx, s)
	return nil
}

func (c *Connection) handshakeHeader(ctx context.Context) http.Header {
	h := http.Header{}
	for k, v := range c.opts.Header {
		h[k] = append([]string(nil), v...)
	}
	h.Set("Authorization", c.opts.Password)
	h.Set("Num-Shards", strconv.Itoa(c.opts.NumShards))
	h.Set("User-Id", c.opts.UserID)
	h.Set("Client-Name", c.opts.ClientName)

	if key := c.loadResumeKey(ctx); key != "" {
		h.Set("Resume-Key", key)
	}
	return h
}

// loadResumeKey returns the configured key, falling back to the store once.
func (c *Connection) loadResumeKey(ctx context.Context) string {
	c.mu.Lock()
	key, loaded := c.resumeKey, c.resumeLoaded
	c.resumeLoaded = true
	c.mu.Unlock()

	if key != "" || loaded || c.opts.ResumeStore == nil {
		return key
	}

	rec, err := kv.GetJSON[resumeRecord](ctx, c.opts.ResumeStore, c.opts.ResumeStoreKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			c.log.Warn("failed to load resume key", slog.Any("error", err))
		}
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resumeKey == "" {
		c.resumeKey = rec.Key
		if rec.Timeout > 0 {
			c.resumeTimeout = time.Duration(rec.Timeout) * time.Second
		}
	}
	return c.resumeKey
}

func (c *Connection) afterOpen(ctx context.Context, s *socket) {
	c.flush(s)

	c.mu.Lock()
	key, timeout := c.resumeKey, c.resumeTimeout
	c.mu.Unlock()
	if key == "" {
		return
	}

	err := c.Send(ctx, &protocol.ConfigureResuming{Key: key, Timeout: int(timeout / time.Second)})
	if err != nil {
		c.log.Warn("failed to configure resuming", slog.Any("error", err))
		c.handler.OnError(err)
		return
	}
	c.persistResumeKey(ctx, key, timeout)
}

func (c *Connection) persistResumeKey(ctx context.Context, key string, timeout time.Duration) {
	if c.opts.ResumeStore == nil {
		return
	}
	rec := resumeRecord{Key: key, Timeout: int(timeout / time.Second)}
	if err := kv.PutJSON(ctx, c.opts.ResumeStore, c.opts.ResumeStoreKey, rec, kv.PutOptions{}); err != nil {
		c.log.Warn("failed to persist resume key", slog.Any("error", err))
	}
}

// ConfigureResuming enables resuming with key. An empty key is generated,
// a non-positive timeout uses Options.ResumeTimeout. While open the node is
// told right away, otherwise on the next open.
func (c *Connection) ConfigureResuming(ctx context.Context, key string, timeout time.Duration) (string, error) {
	if key == "" {
		var err error
		if key, err = gonanoid.New(); err != nil {
			return "", fmt.Errorf("generate resume key: %w", err)
		}
	}
	if timeout <= 0 {
		timeout = c.opts.ResumeTimeout
	}

	c.mu.Lock()
	c.resumeKey = key
	c.resumeTimeout = timeout
	c.resumeLoaded = true
	open := c.sock != nil
	c.mu.Unlock()

	if !open {
		return key, nil
	}
	if err := c.Send(ctx, &protocol.ConfigureResuming{Key: key, Timeout: int(timeout / time.Second)}); err != nil {
		return key, err
	}
	c.persistResumeKey(ctx, key, timeout)
	return key, nil
}

// Send writes p while the socket is open and idle, and queues it otherwise.
// Queued frames go out in order on the next open.
func (c *Connection) Send(_ context.Context, p protocol.Outbound) error {
	data, err := protocol.Encode(p)
	if err != nil {
		return err
	}
	f := frame{op: string(p.OpCode()), data: data}

	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return ErrNotInitialized
	}

	s := c.sock
	if s == nil || c.flushing || c.queue.len() > 0 {
		c.queue.push(f)
		depth := c.queue.len()
		startFlush := s != nil && !c.flushing
		if startFlush {
			c.flushing = true
		}
		c.mu.Unlock()

		c.metrics.QueueDepth(c.opts.Name, depth)
		if startFlush {
			go c.flush(s)
		}
		return nil
	}

	// claimed under mu so direct writes keep the order of Send calls
	wait, release := s.claimTurnLocked()
	c.mu.Unlock()

	defer release()
	<-wait
	return c.write(s, f)
}

// write must only be called while holding a turn of s. A peer that stops
// reading fails the write after Options.WriteTimeout.
func (c *Connection) write(s *socket, f frame) error {
	_ = s.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := s.ws.WriteMessage(websocket.TextMessage, f.data); err != nil {
		// the read loop notices the closed socket and reconnects
		_ = s.ws.Close()
		return &ConnectionError{Op: "write", URL: c.opts.URL, Err: err}
	}
	c.metrics.FrameSent(c.opts.Name, f.op)
	return nil
}

// flush drains the queue onto s in batches until it is empty. Frames
// sent meanwhile are queued behind the batch because flushing is set.
func (c *Connection) flush(s *socket) {
	for {
		c.mu.Lock()
		if c.sock != s {
			c.mu.Unlock()
			return
		}
		batch := c.queue.drain()
		if len(batch) == 0 {
			c.flushing = false
			c.mu.Unlock()
			c.metrics.QueueDepth(c.opts.Name, 0)
			return
		}
		wait, release := s.claimTurnLocked()
		c.mu.Unlock()

		<-wait
		for i, f := range batch {
			if err := c.write(s, f); err != nil {
				release()
				c.mu.Lock()
				c.queue.prepend(batch[i:])
				c.mu.Unlock()
				c.log.Warn("flush failed", slog.Int("pending", len(batch)-i), slog.Any("error", err))
				c.handler.OnError(err)
				return
			}
		}
		release()
	}
}

// Close closes the socket with code and reason and waits for the peer to
// confirm, bounded by ctx and Options.CloseTimeout. Reconnecting stops
// until the next Connect.
func (c *Connection) Close(ctx context.Context, code int, reason string) error {
	if code == 0 {
		code = websocket.CloseNormalClosure
	}

	c.mu.Lock()
	c.closing = true
	c.stopTimerLocked()
	s := c.sock
	c.sock = nil
	c.flushing = false
	if s == nil {
		c.state = StateDisconnected
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	c.mu.Unlock()

	err := c.closeSocket(ctx, s, code, reason)

	c.mu.Lock()
	if c.sock == nil {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	c.log.Info("closed", slog.Int("code", code), slog.String("reason", reason))
	c.metrics.Disconnected(c.opts.Name, code)
	c.handler.OnClose(code, reason)
	return err
}

// closeSocket sends a close frame on a socket that is already detached from
// c and waits for the read loop to see the peer's answer.
func (c *Connection) closeSocket(ctx context.Context, s *socket, code int, reason string) error {
	defer func() { _ = s.ws.Close() }()

	deadline := time.Now().Add(c.opts.CloseTimeout)
	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return &ConnectionError{Op: "close", URL: c.opts.URL, Code: code, Reason: reason, Err: err}
	}

	if s.dispatching.Load() {
		// called from a handler on the read loop, which cannot see the answer
		// while it waits here
		c.log.Debug("close from handler, not waiting for confirmation")
		return nil
	}

	t := time.NewTimer(c.opts.CloseTimeout)
	defer t.Stop()
	select {
	case <-s.done:
		return nil
	case <-t.C:
		c.log.Warn("close not confirmed", slog.Duration("timeout", c.opts.CloseTimeout))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection) readLoop(s *socket) {
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			close(s.done)
			c.handleDrop(s, err)
			return
		}
		s.dispatching.Store(true)
		c.dispatch(data)
		s.dispatching.Store(false)
	}
}

func (c *Connection) dispatch(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		c.metrics.ProtocolError(c.opts.Name)
		c.log.Warn("dropping undecodable frame", slog.Any("error", err))
		c.handler.OnError(err)
		return
	}
	c.metrics.FrameReceived(c.opts.Name, string(msg.OpCode()))
	c.handler.OnMessage(msg)
}

// handleDrop runs when the read loop of s ends. Sockets detached by Close
// or Connect are ignored, their owner reports the close.
func (c *Connection) handleDrop(s *socket, err error) {
	c.mu.Lock()
	if c.sock != s {
		c.mu.Unlock()
		return
	}
	c.sock = nil
	c.flushing = false
	c.mu.Unlock()
	_ = s.ws.Close()

	code, reason := websocket.CloseAbnormalClosure, ""
	var ce *websocket.CloseError
	isClose := errors.As(err, &ce)
	if isClose {
		code, reason = ce.Code, ce.Text
	}

	c.log.Warn("socket closed", slog.Int("code", code), slog.String("reason", reason))
	c.metrics.Disconnected(c.opts.Name, code)
	c.handler.OnClose(code, reason)
	if !isClose {
		c.handler.OnError(&ConnectionError{Op: "read", URL: c.opts.URL, Code: code, Err: err})
	}

	c.mu.Lock()
	c.scheduleReconnectLocked()
	c.mu.Unlock()
}

func (c *Connection) scheduleReconnectLocked() {
	if c.closing {
		c.state = StateDisconnected
		return
	}

	delay, stop := c.backoff.Next()
	if stop {
		c.state = StateDisconnected
		c.log.Error("giving up reconnecting", slog.Uint64("attempts", c.opts.MaxReconnectAttempts))
		return
	}

	c.stopTimerLocked()
	c.state = StateBackoff
	gen := c.gen
	c.timer = time.AfterFunc(delay, func() { c.reconnect(gen) })

	c.log.Debug("reconnect scheduled", slog.Duration("delay", delay))
	c.metrics.ReconnectScheduled(c.opts.Name, delay)
}

func (c *Connection) reconnect(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.closing {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.HandshakeTimeout+c.opts.CloseTimeout)
	defer cancel()
	// failures are reported through the handler and reschedule themselves
	_ = c.connectShared(ctx)
}

// stopTimerLocked cancels a pending reconnect, including one whose timer
// already fired.
func (c *Connection) stopTimerLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
