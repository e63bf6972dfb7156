package protocol

import (
	"encoding/json"
	"fmt"
)

// Op is the value of the "op" field of a frame.
type Op string

const (
	OpPlay              Op = "play"
	OpStop              Op = "stop"
	OpPause             Op = "pause"
	OpSeek              Op = "seek"
	OpVolume            Op = "volume"
	OpEqualizer         Op = "equalizer"
	OpFilters           Op = "filters"
	OpVoiceUpdate       Op = "voiceUpdate"
	OpDestroy           Op = "destroy"
	OpConfigureResuming Op = "configureResuming"

	OpStats        Op = "stats"
	OpPlayerUpdate Op = "playerUpdate"
	OpEvent        Op = "event"
)

// Outbound is a frame sent to a node.
type Outbound interface {
	OpCode() Op
}

type (
	// Play starts playing a track. Times are in milliseconds.
	Play struct {
		GuildID   string `json:"guildId"`
		Track     string `json:"track"`
		StartTime int64  `json:"startTime,omitempty"`
		EndTime   int64  `json:"endTime,omitempty"`
		NoReplace bool   `json:"noReplace,omitempty"`
		Pause     bool   `json:"pause,omitempty"`
	}

	Stop struct {
		GuildID string `json:"guildId"`
	}

	Pause struct {
		GuildID string `json:"guildId"`
		Pause   bool   `json:"pause"`
	}

	// Seek moves the playback position, in milliseconds.
	Seek struct {
		GuildID  string `json:"guildId"`
		Position int64  `json:"position"`
	}

	Volume struct {
		GuildID string `json:"guildId"`
		Volume  int    `json:"volume"`
	}

	Equalizer struct {
		GuildID string `json:"guildId"`
		Bands   []Band `json:"bands"`
	}

	// Filters replaces every audio filter of the player. Nil fields are
	// omitted and reset on the node.
	Filters struct {
		GuildID   string          `json:"guildId"`
		Volume    *float64        `json:"volume,omitempty"`
		Bands     []Band          `json:"bands,omitempty"`
		Karaoke   *Karaoke        `json:"karaoke,omitempty"`
		Timescale *Timescale      `json:"timescale,omitempty"`
		Tremolo   *FrequencyDepth `json:"tremolo,omitempty"`
		Vibrato   *FrequencyDepth `json:"vibrato,omitempty"`
	}

	// VoiceUpdate hands the platform voice session to the node.
	VoiceUpdate struct {
		GuildID   string      `json:"guildId"`
		SessionID string      `json:"sessionId"`
		Event     VoiceServer `json:"event"`
	}

	Destroy struct {
		GuildID string `json:"guildId"`
	}

	// ConfigureResuming is connection scoped. Timeout is in seconds.
	ConfigureResuming struct {
		Key     string `json:"key,omitempty"`
		Timeout int    `json:"timeout,omitempty"`
	}
)

type (
	// Band is one of the 15 equalizer bands (0-14), gain in [-0.25, 1.0].
	Band struct {
		Band int     `json:"band"`
		Gain float64 `json:"gain"`
	}

	Karaoke struct {
		Level       *float64 `json:"level,omitempty"`
		MonoLevel   *float64 `json:"monoLevel,omitempty"`
		FilterBand  *float64 `json:"filterBand,omitempty"`
		FilterWidth *float64 `json:"filterWidth,omitempty"`
	}

	Timescale struct {
		Speed *float64 `json:"speed,omitempty"`
		Pitch *float64 `json:"pitch,omitempty"`
		Rate  *float64 `json:"rate,omitempty"`
	}

	FrequencyDepth struct {
		Frequency *float64 `json:"frequency,omitempty"`
		Depth     *float64 `json:"depth,omitempty"`
	}
)

func (Play) OpCode() Op              { return OpPlay }
func (Stop) OpCode() Op              { return OpStop }
func (Pause) OpCode() Op             { return OpPause }
func (Seek) OpCode() Op              { return OpSeek }
func (Volume) OpCode() Op            { return OpVolume }
func (Equalizer) OpCode() Op         { return OpEqualizer }
func (Filters) OpCode() Op           { return OpFilters }
func (VoiceUpdate) OpCode() Op       { return OpVoiceUpdate }
func (Destroy) OpCode() Op           { return OpDestroy }
func (ConfigureResuming) OpCode() Op { return OpConfigureResuming }

// Encode serializes p and prepends its op.
func Encode(p Outbound) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("protocol: nil payload")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", p.OpCode(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("protocol: encode %s: payload is not an object", p.OpCode())
	}

	head, _ := json.Marshal(p.OpCode())
	out := make([]byte, 0, len(body)+len(head)+8)
	out = append(out, `{"op":`...)
	out = append(out, head...)
	if len(body) > 2 {
		out = append(out, ',')
	}
	return append(out, body[1:]...), nil
}
