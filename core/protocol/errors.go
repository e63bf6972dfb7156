package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMissingOp = errors.New("frame has no op")
)

// ProtocolError reports an inbound frame that could not be parsed.
// The frame is dropped; the connection it arrived on stays open.
type ProtocolError struct {
	Data []byte
	Err  error
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("protocol error: %v (%d bytes)", e.Err, len(e.Data))
}

func (e *ProtocolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
