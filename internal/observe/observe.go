// Package observe is a small synchronous publish/subscribe hub. Handlers run
// on the publishing goroutine, in subscription order.
package observe

import (
	"sync"
)

// Subscription detaches a handler. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe() error
}

type entry[T any] struct {
	id uint64
	fn func(T)
}

// Hub fans a value out to its subscribers. The zero value is ready to use.
type Hub[T any] struct {
	mu   sync.RWMutex
	seq  uint64
	subs []entry[T]
}

func (h *Hub[T]) Subscribe(fn func(T)) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	id := h.seq
	h.subs = append(h.subs, entry[T]{id: id, fn: fn})
	return &subscription[T]{hub: h, id: id}
}

// Publish delivers v to every handler registered at the time of the call.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	handlers := make([]func(T), len(h.subs))
	for i, e := range h.subs {
		handlers[i] = e.fn
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(v)
	}
}

func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Clear drops every subscription.
func (h *Hub[T]) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = nil
}

func (h *Hub[T]) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, e := range h.subs {
		if e.id == id {
			h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
			return
		}
	}
}

type subscription[T any] struct {
	hub  *Hub[T]
	id   uint64
	once sync.Once
}

func (s *subscription[T]) Unsubscribe() error {
	s.once.Do(func() { s.hub.remove(s.id) })
	return nil
}
