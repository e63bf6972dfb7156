package node

type Status int

const (
	StatusInstantiated Status = iota
	StatusPlaying
	StatusPaused
	StatusEnded
	StatusErrored
	StatusStuck
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusInstantiated:
		return "instantiated"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusEnded:
		return "ended"
	case StatusErrored:
		return "errored"
	case StatusStuck:
		return "stuck"
	default:
		return "unknown"
	}
}
