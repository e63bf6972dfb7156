// Package lavatest provides an in-process fake audio node for tests: a
// websocket endpoint that records handshakes and inbound frames and lets the
// test push frames, drop connections and reject handshakes.
package lavatest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type Server struct {
	t        testing.TB
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu         sync.Mutex
	conns      map[*websocket.Conn]struct{}
	handshakes []http.Header
	reject     int
	closed     bool
	log        []string

	frames chan []byte
}

// NewServer starts a fake node that is shut down with the test.
func NewServer(t testing.TB) *Server {
	s := &Server{
		t:      t,
		conns:  make(map[*websocket.Conn]struct{}),
		frames: make(chan []byte, 1024),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// URL is the websocket URL of the fake node.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.reject > 0 {
		s.reject--
		s.mu.Unlock()
		http.Error(w, "rejected", http.StatusUnauthorized)
		return
	}
	s.mu.Unlock()

	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = c.Close()
		return
	}
	s.handshakes = append(s.handshakes, r.Header.Clone())
	s.conns[c] = struct{}{}
	s.log = append(s.log, "open")
	s.mu.Unlock()

	c.SetCloseHandler(func(code int, _ string) error {
		s.mu.Lock()
		s.log = append(s.log, "close "+strconv.Itoa(code))
		s.mu.Unlock()
		_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), time.Now().Add(time.Second))
		return nil
	})

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		_ = c.Close()
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		select {
		case s.frames <- data:
		default:
			s.t.Logf("lavatest: frame buffer full, dropping %s", data)
		}
	}
}

// Reject makes the next n handshakes fail with 401.
func (s *Server) Reject(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = n
}

// Handshakes returns the request headers of every accepted handshake.
func (s *Server) Handshakes() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.handshakes...)
}

// Log returns the connection events seen by the node in order: "open" for
// every accepted handshake and "close <code>" for every close frame.
func (s *Server) Log() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

// Conns returns the number of live client connections.
func (s *Server) Conns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// RequireConns waits until exactly n clients are connected.
func (s *Server) RequireConns(n int) {
	s.t.Helper()
	require.Eventually(s.t, func() bool { return s.Conns() == n }, 2*time.Second, 5*time.Millisecond,
		"expected %d live connections", n)
}

// Push writes v as a JSON text frame to every live connection.
func (s *Server) Push(v any) {
	data, err := json.Marshal(v)
	require.NoError(s.t, err)
	s.PushRaw(data)
}

// PushRaw writes data as a text frame to every live connection.
func (s *Server) PushRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			s.t.Logf("lavatest: push failed: %v", err)
		}
	}
}

// Drop closes every live connection without a close handshake, as a
// crashed node or a broken network would.
func (s *Server) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

// CloseConns sends a close frame with code and reason to every live connection.
func (s *Server) CloseConns(code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	for c := range s.conns {
		_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
}

// NextFrame waits for the next frame received from a client.
func (s *Server) NextFrame(timeout time.Duration) ([]byte, bool) {
	select {
	case f := <-s.frames:
		return f, true
	case <-time.After(timeout):
		return nil, false
	}
}

// RequireFrame waits for the next frame and decodes it into a map.
func (s *Server) RequireFrame(timeout time.Duration) map[string]any {
	s.t.Helper()
	data, ok := s.NextFrame(timeout)
	require.True(s.t, ok, "no frame received within %s", timeout)
	var m map[string]any
	require.NoError(s.t, json.Unmarshal(data, &m))
	return m
}

// RequireNoFrame asserts that no frame arrives within d.
func (s *Server) RequireNoFrame(d time.Duration) {
	s.t.Helper()
	if data, ok := s.NextFrame(d); ok {
		require.Failf(s.t, "unexpected frame", "%s", data)
	}
}

func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.srv.Close()
}
