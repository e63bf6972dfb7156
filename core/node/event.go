package node

import (
	"github.com/codewandler/lava-go/core/protocol"
	"github.com/codewandler/lava-go/internal/observe"
)

// Subscription detaches an event handler.
type Subscription = observe.Subscription

type EventType int

const (
	EventOpen EventType = iota
	EventClose
	EventError
	EventPayload
)

func (t EventType) String() string {
	switch t {
	case EventOpen:
		return "open"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	case EventPayload:
		return "payload"
	default:
		return "unknown"
	}
}

// Event is published by a Node for its connection lifecycle and for every
// decoded inbound frame.
type Event struct {
	Node *Node
	Type EventType

	// EventClose
	Code   int
	Reason string
	// EventError
	Err error
	// EventPayload
	Payload protocol.Inbound
}
