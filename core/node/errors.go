package node

import "errors"

var (
	// ErrNotConnected is returned by player commands while the node has no
	// open socket. Commands are not queued.
	ErrNotConnected = errors.New("node not connected")
	// ErrNoVoiceData is returned by MoveTo when the voice state or server of
	// the guild is unknown.
	ErrNoVoiceData = errors.New("no voice state/server data to move")
	ErrNoREST      = errors.New("node has no rest client")
	ErrNoSend      = errors.New("node has no gateway send func")

	ErrGuildRequired = errors.New("guild id is required")
	ErrURLRequired   = errors.New("node url or host is required")
)
