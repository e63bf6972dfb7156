package protocol

import (
	"encoding/json"
)

// Inbound is a frame received from a node.
type Inbound interface {
	OpCode() Op
}

// Scoped is implemented by frames that belong to a single guild.
type Scoped interface {
	Guild() string
}

type (
	// Stats is pushed by the node roughly once a minute.
	Stats struct {
		Players        int         `json:"players"`
		PlayingPlayers int         `json:"playingPlayers"`
		Uptime         int64       `json:"uptime"`
		Memory         *Memory     `json:"memory,omitempty"`
		CPU            *CPU        `json:"cpu,omitempty"`
		Frames         *FrameStats `json:"frameStats,omitempty"`
	}

	Memory struct {
		Free       int64 `json:"free"`
		Used       int64 `json:"used"`
		Allocated  int64 `json:"allocated"`
		Reservable int64 `json:"reservable"`
	}

	CPU struct {
		Cores       int     `json:"cores"`
		SystemLoad  float64 `json:"systemLoad"`
		BackendLoad float64 `json:"lavalinkLoad"`
	}

	FrameStats struct {
		Sent    int `json:"sent"`
		Nulled  int `json:"nulled"`
		Deficit int `json:"deficit"`
	}
)

func (*Stats) OpCode() Op { return OpStats }

// Load is the system load normalized by core count. Missing data counts as 0.
func (s *Stats) Load() float64 {
	if s == nil || s.CPU == nil || s.CPU.Cores <= 0 {
		return 0
	}
	return s.CPU.SystemLoad / float64(s.CPU.Cores)
}

// UnmarshalJSON accepts frame statistics under both "frameStats" and "frames".
func (s *Stats) UnmarshalJSON(data []byte) error {
	type plain Stats
	var aux struct {
		plain
		Frames *FrameStats `json:"frames,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = Stats(aux.plain)
	if s.Frames == nil {
		s.Frames = aux.Frames
	}
	return nil
}

// PlayerUpdate carries the playback position of a guild's player.
type PlayerUpdate struct {
	GuildID string      `json:"guildId"`
	State   PlayerState `json:"state"`
}

// PlayerState: Time is the node's unix time in ms, Position the track
// position in ms.
type PlayerState struct {
	Time     int64 `json:"time"`
	Position int64 `json:"position"`
}

func (*PlayerUpdate) OpCode() Op       { return OpPlayerUpdate }
func (p *PlayerUpdate) Guild() string { return p.GuildID }

type EventType string

const (
	EventTrackStart      EventType = "TrackStartEvent"
	EventTrackEnd        EventType = "TrackEndEvent"
	EventTrackException  EventType = "TrackExceptionEvent"
	EventTrackStuck      EventType = "TrackStuckEvent"
	EventWebSocketClosed EventType = "WebSocketClosedEvent"
)

// EndReasonReplaced is the track end reason sent when a play op replaced the
// current track.
const EndReasonReplaced = "REPLACED"

type Severity string

const (
	SeverityCommon     Severity = "COMMON"
	SeveritySuspicious Severity = "SUSPICIOUS"
	SeverityFault      Severity = "FAULT"
)

// Event is a player event. Which fields are set depends on Type.
type Event struct {
	GuildID string    `json:"guildId"`
	Type    EventType `json:"type"`
	Track   string    `json:"track,omitempty"`

	// TrackEndEvent and WebSocketClosedEvent
	Reason string `json:"reason,omitempty"`

	// TrackExceptionEvent: newer nodes send Exception, older ones Error.
	Exception *Exception `json:"exception,omitempty"`
	Error     string     `json:"error,omitempty"`

	// TrackStuckEvent
	ThresholdMs int64 `json:"thresholdMs,omitempty"`

	// WebSocketClosedEvent
	Code     int  `json:"code,omitempty"`
	ByRemote bool `json:"byRemote,omitempty"`
}

type Exception struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Cause    string   `json:"cause"`
}

func (*Event) OpCode() Op       { return OpEvent }
func (e *Event) Guild() string { return e.GuildID }

// Unknown is a well-formed frame with an op this package does not model.
type Unknown struct {
	Op      Op              `json:"op"`
	GuildID string          `json:"guildId,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

func (u *Unknown) OpCode() Op { return u.Op }

// Guild returns the guild id if the frame carried one.
func (u *Unknown) Guild() string { return u.GuildID }

// Decode parses one inbound frame.
func Decode(data []byte) (Inbound, error) {
	var head struct {
		Op Op `json:"op"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &ProtocolError{Data: data, Err: err}
	}
	if head.Op == "" {
		return nil, &ProtocolError{Data: data, Err: ErrMissingOp}
	}

	var in Inbound
	switch head.Op {
	case OpStats:
		in = new(Stats)
	case OpPlayerUpdate:
		in = new(PlayerUpdate)
	case OpEvent:
		in = new(Event)
	default:
		u := &Unknown{Raw: append(json.RawMessage(nil), data...)}
		in = u
	}

	if err := json.Unmarshal(data, in); err != nil {
		return nil, &ProtocolError{Data: data, Err: err}
	}
	return in, nil
}

var (
	_ Scoped = (*PlayerUpdate)(nil)
	_ Scoped = (*Event)(nil)
	_ Scoped = (*Unknown)(nil)
)
