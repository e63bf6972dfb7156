package conn

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by Send before Connect was ever called.
	ErrNotInitialized = errors.New("connection not initialized")
	// ErrClosed is returned by Connect when Close won the race against the dial.
	ErrClosed = errors.New("connection closed")

	ErrURLRequired = errors.New("url is required")
)

// ConnectionError describes a socket level failure: a failed dial, a failed
// write, or a socket that closed without the caller asking for it.
type ConnectionError struct {
	Op         string // dial, write, read
	URL        string
	StatusCode int    // HTTP status of a rejected handshake
	Code       int    // websocket close code
	Reason     string // websocket close reason
	Err        error
}

func (e *ConnectionError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("connection %s %s: handshake status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("connection %s %s: closed %d %q: %v", e.Op, e.URL, e.Code, e.Reason, e.Err)
	default:
		return fmt.Sprintf("connection %s %s: %v", e.Op, e.URL, e.Err)
	}
}

func (e *ConnectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
