package nats

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/codewandler/lava-go/core/node"
	"github.com/codewandler/lava-go/core/protocol"
)

const defaultSubjectPrefix = "lava.events"

var ErrPublisherClosed = errors.New("publisher closed")

// EventSource is implemented by node.Node and cluster.Cluster.
type EventSource interface {
	Subscribe(fn func(node.Event)) node.Subscription
}

type PublisherConfig struct {
	Connect       Connector    // Connect is used to create the underlying NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	SubjectPrefix string       // SubjectPrefix for event subjects, e.g. "lava.events" -> lava.events.<node>.<kind>
}

// EventMessage is the JSON body published for every node event. Kind is the
// event type, or the op of the frame for payload events.
type EventMessage struct {
	Node    string          `json:"node"`
	Type    string          `json:"type"`
	Kind    string          `json:"kind"`
	Code    int             `json:"code,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Error   string          `json:"error,omitempty"`
	GuildID string          `json:"guildId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Time    time.Time       `json:"time"`
}

// Publisher forwards node events to NATS.
type Publisher struct {
	nc      *natsgo.Conn
	closeNc closeFunc
	log     *slog.Logger
	prefix  string

	mu     sync.Mutex
	subs   []node.Subscription
	closed bool
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	connFn := cfg.Connect
	if connFn == nil {
		connFn = ConnectDefault()
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	nc, closeNc, err := connFn()
	if err != nil {
		return nil, err
	}

	return &Publisher{
		nc:      nc,
		closeNc: closeNc,
		log:     log.With(slog.String("publisher", "nats"), slog.String("prefix", prefix)),
		prefix:  prefix,
	}, nil
}

// Subject returns the subject events of kind on nodeID are published to.
func (p *Publisher) Subject(nodeID, kind string) string {
	return p.prefix + "." + subjectToken(nodeID) + "." + subjectToken(kind)
}

// Attach publishes every event of src until the publisher is closed.
func (p *Publisher) Attach(src EventSource) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	p.subs = append(p.subs, src.Subscribe(p.publish))
	return nil
}

func (p *Publisher) publish(e node.Event) {
	msg := EventMessage{
		Node:   e.Node.ID(),
		Type:   e.Type.String(),
		Kind:   e.Type.String(),
		Code:   e.Code,
		Reason: e.Reason,
		Time:   time.Now().UTC(),
	}
	if e.Err != nil {
		msg.Error = e.Err.Error()
	}
	if e.Payload != nil {
		msg.Kind = string(e.Payload.OpCode())
		if s, ok := e.Payload.(protocol.Scoped); ok {
			msg.GuildID = s.Guild()
		}
		data, err := json.Marshal(e.Payload)
		if err != nil {
			p.log.Error("failed to encode payload", slog.String("node", msg.Node), slog.Any("error", err))
			return
		}
		msg.Payload = data
	}

	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("failed to encode event", slog.String("node", msg.Node), slog.Any("error", err))
		return
	}

	subject := p.Subject(msg.Node, msg.Kind)
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn("publish failed", slog.String("subject", subject), slog.Any("error", err))
	}
}

// Close detaches all sources, flushes pending messages and releases the
// connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()

	for _, s := range subs {
		_ = s.Unsubscribe()
	}
	err := p.nc.Flush()
	p.closeNc()
	return err
}

// subjectToken replaces the characters with a meaning in subjects.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
