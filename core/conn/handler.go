package conn

import "github.com/codewandler/lava-go/core/protocol"

// Handler observes a Connection. Callbacks run on the connection's
// goroutines and must not block for long.
//
// OnMessage and decode errors run on the read loop. Close called from
// there does not wait for the peer to confirm the close frame.
type Handler interface {
	OnOpen()
	OnClose(code int, reason string)
	OnError(err error)
	OnMessage(msg protocol.Inbound)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Open    func()
	Close   func(code int, reason string)
	Error   func(err error)
	Message func(msg protocol.Inbound)
}

func (h HandlerFuncs) OnOpen() {
	if h.Open != nil {
		h.Open()
	}
}

func (h HandlerFuncs) OnClose(code int, reason string) {
	if h.Close != nil {
		h.Close(code, reason)
	}
}

func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

func (h HandlerFuncs) OnMessage(msg protocol.Inbound) {
	if h.Message != nil {
		h.Message(msg)
	}
}

var _ Handler = HandlerFuncs{}
