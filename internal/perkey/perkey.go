// Package perkey serializes work per key while letting work for different
// keys run concurrently.
//
// The node uses it to make voice reconciliation atomic per guild: a voice
// state and a voice server update for the same guild never interleave, while
// updates for different guilds proceed in parallel.
package perkey

import (
	"context"
	"sync"
)

// Mutex locks by key. Entries exist only while someone holds or waits for
// the key, so the map does not grow with the number of keys ever seen.
// The zero value is ready to use.
type Mutex[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyLock
}

type keyLock struct {
	ch   chan struct{} // 1-buffered; holding the token means holding the key
	refs int
}

func (m *Mutex[K]) acquire(key K) *keyLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.locks == nil {
		m.locks = make(map[K]*keyLock)
	}
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *Mutex[K]) release(key K, l *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// Do runs fn while holding key and returns its error. If ctx is done before
// the key could be taken, fn is not run and the context error is returned.
func (m *Mutex[K]) Do(ctx context.Context, key K, fn func() error) error {
	l := m.acquire(key)
	defer m.release(key, l)

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.ch }()

	return fn()
}

// Len returns the number of keys currently held or waited for.
func (m *Mutex[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
