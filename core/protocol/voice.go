package protocol

// VoiceState is the platform's voice state for one user in one guild.
// Fields are kept as delivered; only the ones the client needs are modelled.
type VoiceState struct {
	GuildID    string `json:"guild_id,omitempty"`
	ChannelID  string `json:"channel_id,omitempty"`
	UserID     string `json:"user_id"`
	SessionID  string `json:"session_id"`
	Deaf       bool   `json:"deaf"`
	Mute       bool   `json:"mute"`
	SelfDeaf   bool   `json:"self_deaf"`
	SelfMute   bool   `json:"self_mute"`
	SelfStream bool   `json:"self_stream,omitempty"`
	SelfVideo  bool   `json:"self_video"`
	Suppress   bool   `json:"suppress"`
}

// InChannel reports whether the state targets a voice channel. A state
// without a channel means the user left.
func (s VoiceState) InChannel() bool { return s.ChannelID != "" }

// VoiceServer is the platform's voice server update; it is forwarded to the
// node verbatim inside [VoiceUpdate].
type VoiceServer struct {
	Token    string `json:"token"`
	GuildID  string `json:"guild_id"`
	Endpoint string `json:"endpoint"`
}

// GatewayOpVoiceStateUpdate is the platform gateway opcode for joining,
// moving between and leaving voice channels.
const GatewayOpVoiceStateUpdate = 4

// GatewayPacket is the intent handed to the caller's gateway transport.
type GatewayPacket struct {
	Op int                     `json:"op"`
	D  GatewayVoiceStateUpdate `json:"d"`
}

// GatewayVoiceStateUpdate: a nil ChannelID leaves the current channel.
type GatewayVoiceStateUpdate struct {
	GuildID   string  `json:"guild_id"`
	ChannelID *string `json:"channel_id"`
	SelfMute  bool    `json:"self_mute"`
	SelfDeaf  bool    `json:"self_deaf"`
}

// NewVoiceStateIntent builds the gateway packet for joining channelID, or
// leaving when channelID is empty.
func NewVoiceStateIntent(guildID, channelID string, selfMute, selfDeaf bool) GatewayPacket {
	var ch *string
	if channelID != "" {
		ch = &channelID
	}
	return GatewayPacket{
		Op: GatewayOpVoiceStateUpdate,
		D: GatewayVoiceStateUpdate{
			GuildID:   guildID,
			ChannelID: ch,
			SelfMute:  selfMute,
			SelfDeaf:  selfDeaf,
		},
	}
}
