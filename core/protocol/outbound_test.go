package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		in   Outbound
		want string
	}{
		{"stop", Stop{GuildID: "1"}, `{"op":"stop","guildId":"1"}`},
		{"pause", Pause{GuildID: "1", Pause: false}, `{"op":"pause","guildId":"1","pause":false}`},
		{"play minimal", Play{GuildID: "1", Track: "abc"}, `{"op":"play","guildId":"1","track":"abc"}`},
		{"play full", Play{GuildID: "1", Track: "abc", StartTime: 10, EndTime: 20, NoReplace: true, Pause: true},
			`{"op":"play","guildId":"1","track":"abc","startTime":10,"endTime":20,"noReplace":true,"pause":true}`},
		{"configure resuming empty", ConfigureResuming{}, `{"op":"configureResuming"}`},
		{"configure resuming", ConfigureResuming{Key: "k", Timeout: 60}, `{"op":"configureResuming","key":"k","timeout":60}`},
		{"equalizer", Equalizer{GuildID: "1", Bands: []Band{{Band: 0, Gain: 0.25}}},
			`{"op":"equalizer","guildId":"1","bands":[{"band":0,"gain":0.25}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.in)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestEncode_VoiceUpdate(t *testing.T) {
	data, err := Encode(VoiceUpdate{
		GuildID:   "g1",
		SessionID: "s1",
		Event:     VoiceServer{Token: "tok", GuildID: "g1", Endpoint: "eu.example:443"},
	})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	require.Equal(t, "voiceUpdate", m["op"])
	require.Equal(t, "s1", m["sessionId"])
	require.Equal(t, map[string]any{"token": "tok", "guild_id": "g1", "endpoint": "eu.example:443"}, m["event"])
}

func TestEncode_Nil(t *testing.T) {
	_, err := Encode(nil)
	require.Error(t, err)
}

func TestNewVoiceStateIntent(t *testing.T) {
	join, err := json.Marshal(NewVoiceStateIntent("g1", "c1", false, true))
	require.NoError(t, err)
	require.JSONEq(t, `{"op":4,"d":{"guild_id":"g1","channel_id":"c1","self_mute":false,"self_deaf":true}}`, string(join))

	leave, err := json.Marshal(NewVoiceStateIntent("g1", "", false, false))
	require.NoError(t, err)
	require.JSONEq(t, `{"op":4,"d":{"guild_id":"g1","channel_id":null,"self_mute":false,"self_deaf":false}}`, string(leave))
}
