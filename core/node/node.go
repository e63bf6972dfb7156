// Package node is the client side of one audio node: its connection, the
// voice session bookkeeping per guild, and the guild players.
//
// The platform delivers a voice state and a voice server update for every
// voice connection, in any order. A Node stores both and sends exactly one
// voiceUpdate to the node once the pair is complete.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/lava-go/core/conn"
	"github.com/codewandler/lava-go/core/protocol"
	"github.com/codewandler/lava-go/core/rest"
	"github.com/codewandler/lava-go/internal/observe"
	"github.com/codewandler/lava-go/internal/perkey"
)

// SendFunc hands a gateway packet to the platform connection (shard) that
// serves guildID. Callers own serialization.
type SendFunc func(ctx context.Context, guildID string, packet protocol.GatewayPacket) error

type Options struct {
	Log *slog.Logger
	// ID names the node in logs, metrics and cluster events.
	ID string

	Password  string
	UserID    string
	NumShards int

	// Host is a host:port shorthand for URL ws://Host and RESTURL http://Host.
	Host    string
	URL     string
	RESTURL string
	// REST overrides the client built from RESTURL.
	REST *rest.Client

	// Conn carries the remaining connection settings (reconnect, resume,
	// dialer, metrics). Identity and handler fields are set by the node.
	Conn conn.Options

	Send    SendFunc
	Tags    []string
	Metrics NodeMetrics
}

type Node struct {
	log     *slog.Logger
	id      string
	userID  string
	conn    *conn.Connection
	rest    *rest.Client
	send    SendFunc
	tags    map[string]struct{}
	metrics NodeMetrics
	now     func() time.Time

	players    *Registry
	voiceLocks perkey.Mutex[string]
	events     observe.Hub[Event]

	mu        sync.Mutex
	states    map[string]protocol.VoiceState
	servers   map[string]protocol.VoiceServer
	expecting map[string]uint64
	serverSeq uint64
	stats     *protocol.Stats
}

func New(opts Options) (*Node, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	id := opts.ID
	if id == "" {
		id = fmt.Sprintf("node-%s", gonanoid.Must(6))
	}

	wsURL, restURL := opts.URL, opts.RESTURL
	if opts.Host != "" {
		if wsURL == "" {
			wsURL = "ws://" + opts.Host
		}
		if restURL == "" {
			restURL = "http://" + opts.Host
		}
	}
	if wsURL == "" {
		return nil, ErrURLRequired
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NopNodeMetrics()
	}

	n := &Node{
		log:       log.With(slog.String("node", id)),
		id:        id,
		userID:    opts.UserID,
		send:      opts.Send,
		tags:      make(map[string]struct{}, len(opts.Tags)),
		metrics:   metrics,
		now:       time.Now,
		states:    map[string]protocol.VoiceState{},
		servers:   map[string]protocol.VoiceServer{},
		expecting: map[string]uint64{},
	}
	for _, t := range opts.Tags {
		n.tags[t] = struct{}{}
	}
	n.players = newRegistry(n)

	n.rest = opts.REST
	if n.rest == nil && restURL != "" {
		rc, err := rest.New(rest.Options{Log: log, URL: restURL, Password: opts.Password})
		if err != nil {
			return nil, err
		}
		n.rest = rc
	}

	co := opts.Conn
	co.Log = log
	co.Name = id
	co.URL = wsURL
	co.Password = opts.Password
	co.UserID = opts.UserID
	co.NumShards = opts.NumShards
	co.Handler = conn.HandlerFuncs{
		Open:    n.onOpen,
		Close:   n.onClose,
		Error:   n.onError,
		Message: n.onMessage,
	}
	c, err := conn.New(co)
	if err != nil {
		return nil, err
	}
	n.conn = c

	return n, nil
}

func (n *Node) ID() string { return n.id }

func (n *Node) UserID() string { return n.userID }

func (n *Node) Conn() *conn.Connection { return n.conn }

func (n *Node) Players() *Registry { return n.players }

// Tags returns the node tags in no particular order.
func (n *Node) Tags() []string {
	out := make([]string, 0, len(n.tags))
	for t := range n.tags {
		out = append(out, t)
	}
	return out
}

func (n *Node) HasTag(tag string) bool {
	_, ok := n.tags[tag]
	return ok
}

// Stats returns the last stats frame, or nil before the first one.
func (n *Node) Stats() *protocol.Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stats
}

func (n *Node) Connected() bool { return n.conn.Connected() }

func (n *Node) Connect(ctx context.Context) error {
	return n.conn.Connect(ctx)
}

// Disconnect closes the connection without touching players.
func (n *Node) Disconnect(ctx context.Context, code int, reason string) error {
	return n.conn.Close(ctx, code, reason)
}

// Destroy destroys every player, then closes the connection.
func (n *Node) Destroy(ctx context.Context, code int, reason string) error {
	for _, p := range n.players.All() {
		p.Destroy(ctx)
	}
	return n.Disconnect(ctx, code, reason)
}

// Subscribe registers fn for node events. fn runs on the connection's
// goroutines.
func (n *Node) Subscribe(fn func(Event)) Subscription {
	return n.events.Subscribe(fn)
}

func (n *Node) Load(ctx context.Context, identifier string) (*rest.LoadResult, error) {
	if n.rest == nil {
		return nil, ErrNoREST
	}
	return n.rest.Load(ctx, identifier)
}

func (n *Node) DecodeTrack(ctx context.Context, track string) (*rest.TrackInfo, error) {
	if n.rest == nil {
		return nil, ErrNoREST
	}
	return n.rest.DecodeTrack(ctx, track)
}

func (n *Node) DecodeTracks(ctx context.Context, tracks []string) ([]rest.Track, error) {
	if n.rest == nil {
		return nil, ErrNoREST
	}
	return n.rest.DecodeTracks(ctx, tracks)
}

// sendGateway hands a packet to the caller's gateway transport.
func (n *Node) sendGateway(ctx context.Context, guildID string, packet protocol.GatewayPacket) error {
	if n.send == nil {
		return ErrNoSend
	}
	return n.send(ctx, guildID, packet)
}

// === connection callbacks ===

func (n *Node) onOpen() {
	n.events.Publish(Event{Node: n, Type: EventOpen})
}

func (n *Node) onClose(code int, reason string) {
	n.events.Publish(Event{Node: n, Type: EventClose, Code: code, Reason: reason})
}

func (n *Node) onError(err error) {
	n.events.Publish(Event{Node: n, Type: EventError, Err: err})
}

func (n *Node) onMessage(msg protocol.Inbound) {
	switch m := msg.(type) {
	case *protocol.Stats:
		n.mu.Lock()
		n.stats = m
		n.mu.Unlock()
		n.metrics.Stats(n.id, m.Players, m.PlayingPlayers, m.Load())
	case *protocol.Event:
		n.metrics.PlayerEvent(n.id, strings.TrimSuffix(string(m.Type), "Event"))
	}

	// guild frames only reach players that already exist
	if s, ok := msg.(protocol.Scoped); ok && s.Guild() != "" {
		if p, ok := n.players.Lookup(s.Guild()); ok {
			p.handle(msg)
		}
	}

	n.events.Publish(Event{Node: n, Type: EventPayload, Payload: msg})
}
