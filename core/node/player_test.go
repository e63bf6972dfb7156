package node

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/lava-go/core/protocol"
	"github.com/codewandler/lava-go/internal/lavatest"
)

func TestPlayer_EventTransitions(t *testing.T) {
	srv := lavatest.NewServer(t)
	n := newTestNode(t, srv, nil)

	tests := []struct {
		name  string
		start Status
		event protocol.Event
		want  Status
	}{
		{"start", StatusInstantiated, protocol.Event{Type: protocol.EventTrackStart}, StatusPlaying},
		{"end finished", StatusPlaying, protocol.Event{Type: protocol.EventTrackEnd, Reason: "FINISHED"}, StatusEnded},
		{"end replaced", StatusPlaying, protocol.Event{Type: protocol.EventTrackEnd, Reason: "REPLACED"}, StatusPlaying},
		{"end replaced lowercase", StatusPaused, protocol.Event{Type: protocol.EventTrackEnd, Reason: "replaced"}, StatusPaused},
		{"exception", StatusPlaying, protocol.Event{Type: protocol.EventTrackException}, StatusErrored},
		{"stuck", StatusPlaying, protocol.Event{Type: protocol.EventTrackStuck, ThresholdMs: 1000}, StatusStuck},
		{"socket closed", StatusPlaying, protocol.Event{Type: protocol.EventWebSocketClosed, Code: 4006}, StatusEnded},
		{"unknown", StatusPlaying, protocol.Event{Type: "SegmentsLoaded"}, StatusUnknown},
		{"start after error", StatusErrored, protocol.Event{Type: protocol.EventTrackStart}, StatusPlaying},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPlayer(n, "g1")
			p.setStatus(tt.start)
			e := tt.event
			e.GuildID = "g1"
			p.handle(&e)
			require.Equal(t, tt.want, p.Status())
		})
	}
}

func TestPlayer_Position(t *testing.T) {
	srv := lavatest.NewServer(t)
	n := newTestNode(t, srv, nil)
	now := time.Unix(1000, 0)
	n.now = func() time.Time { return now }

	p := n.Players().Get("g1")
	require.Zero(t, p.Position())

	p.handle(&protocol.PlayerUpdate{GuildID: "g1", State: protocol.PlayerState{Time: 1, Position: 5000}})
	require.Equal(t, 5*time.Second, p.Position())

	now = now.Add(1500 * time.Millisecond)
	require.Equal(t, 6500*time.Millisecond, p.Position())
}

func TestPlayer_CommandsRequireConnection(t *testing.T) {
	srv := lavatest.NewServer(t)
	n := newTestNode(t, srv, nil)
	ctx := t.Context()
	p := n.Players().Get("g1")

	require.ErrorIs(t, p.Play(ctx, "track", PlayOptions{}), ErrNotConnected)
	require.ErrorIs(t, p.Pause(ctx, true), ErrNotConnected)
	require.ErrorIs(t, p.Stop(ctx), ErrNotConnected)
	require.ErrorIs(t, p.Seek(ctx, time.Second), ErrNotConnected)
	require.ErrorIs(t, p.SetVolume(ctx, 50), ErrNotConnected)
	require.ErrorIs(t, p.SetEqualizer(ctx, protocol.Band{Band: 0, Gain: 0.2}), ErrNotConnected)
	require.ErrorIs(t, p.SetFilters(ctx, protocol.Filters{}), ErrNotConnected)
	require.Equal(t, StatusInstantiated, p.Status())
}

func TestPlayer_Commands(t *testing.T) {
	n, srv := connectedNode(t, nil)
	ctx := t.Context()
	p := n.Players().Get("g1")

	require.NoError(t, p.Play(ctx, "enc", PlayOptions{Start: 2 * time.Second, End: time.Minute, NoReplace: true}))
	require.True(t, p.Playing())
	f := srv.RequireFrame(waitFor)
	require.Equal(t, map[string]any{
		"op": "play", "guildId": "g1", "track": "enc",
		"startTime": float64(2000), "endTime": float64(60000), "noReplace": true,
	}, f)

	require.NoError(t, p.Pause(ctx, true))
	require.True(t, p.Paused())
	require.Equal(t, true, srv.RequireFrame(waitFor)["pause"])

	require.NoError(t, p.Pause(ctx, false))
	require.True(t, p.Playing())
	require.Equal(t, false, srv.RequireFrame(waitFor)["pause"])

	require.NoError(t, p.Seek(ctx, 90*time.Second))
	f = srv.RequireFrame(waitFor)
	require.Equal(t, "seek", f["op"])
	require.Equal(t, float64(90000), f["position"])
	require.True(t, p.Playing())

	require.NoError(t, p.SetVolume(ctx, 80))
	require.Equal(t, float64(80), srv.RequireFrame(waitFor)["volume"])

	require.NoError(t, p.SetEqualizer(ctx, protocol.Band{Band: 1, Gain: 0.25}))
	f = srv.RequireFrame(waitFor)
	require.Equal(t, "equalizer", f["op"])
	require.Equal(t, []any{map[string]any{"band": float64(1), "gain": 0.25}}, f["bands"])

	vol := 0.5
	require.NoError(t, p.SetFilters(ctx, protocol.Filters{Volume: &vol}))
	f = srv.RequireFrame(waitFor)
	require.Equal(t, "filters", f["op"])
	require.Equal(t, "g1", f["guildId"])
	require.Equal(t, 0.5, f["volume"])

	require.NoError(t, p.Play(ctx, "enc2", PlayOptions{Pause: true}))
	require.True(t, p.Paused())
	require.Equal(t, true, srv.RequireFrame(waitFor)["pause"])

	require.NoError(t, p.Stop(ctx))
	require.Equal(t, StatusEnded, p.Status())
	require.Equal(t, "stop", srv.RequireFrame(waitFor)["op"])
}

func TestPlayer_DestroyDisconnected(t *testing.T) {
	srv := lavatest.NewServer(t)
	n := newTestNode(t, srv, nil)
	p := n.Players().Get("g1")

	p.Destroy(t.Context())
	require.Equal(t, StatusEnded, p.Status())
	require.False(t, n.Players().Has("g1"))
	srv.RequireNoFrame(quiet)

	// a second destroy is harmless
	p.Destroy(t.Context())
}

func TestPlayer_DestroyConnected(t *testing.T) {
	n, srv := connectedNode(t, nil)
	p := n.Players().Get("g1")

	p.Destroy(t.Context())
	require.False(t, n.Players().Has("g1"))
	f := srv.RequireFrame(waitFor)
	require.Equal(t, map[string]any{"op": "destroy", "guildId": "g1"}, f)

	// a new player for the guild is not removed by the stale one
	p2 := n.Players().Get("g1")
	p.Destroy(t.Context())
	require.True(t, n.Players().Has("g1"))
	require.NotSame(t, p, p2)
}

type sentPacket struct {
	guild  string
	packet protocol.GatewayPacket
}

func TestPlayer_JoinLeave(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []sentPacket
	)
	n, srv := connectedNode(t, func(o *Options) {
		o.Send = func(_ context.Context, guildID string, packet protocol.GatewayPacket) error {
			mu.Lock()
			defer mu.Unlock()
			sent = append(sent, sentPacket{guildID, packet})
			return nil
		}
	})
	ctx := t.Context()

	_, err := n.VoiceStateUpdate(ctx, voiceState("g1", "c1"))
	require.NoError(t, err)
	_, err = n.VoiceServerUpdate(ctx, voiceServer("g1"))
	require.NoError(t, err)
	srv.RequireFrame(waitFor)

	p := n.Players().Get("g1")
	require.NoError(t, p.Join(ctx, "c2", JoinOptions{SelfDeaf: true}))
	_, ok := p.VoiceState()
	require.False(t, ok)
	_, ok = p.VoiceServer()
	require.False(t, ok)

	require.NoError(t, p.Leave(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 2)
	require.Equal(t, "g1", sent[0].guild)
	require.Equal(t, protocol.GatewayOpVoiceStateUpdate, sent[0].packet.Op)
	require.Equal(t, "c2", *sent[0].packet.D.ChannelID)
	require.True(t, sent[0].packet.D.SelfDeaf)
	require.False(t, sent[0].packet.D.SelfMute)
	require.Nil(t, sent[1].packet.D.ChannelID)
}

func TestPlayer_JoinWithoutSend(t *testing.T) {
	srv := lavatest.NewServer(t)
	n := newTestNode(t, srv, nil)
	require.ErrorIs(t, n.Players().Get("g1").Join(t.Context(), "c1", JoinOptions{}), ErrNoSend)
}

func TestPlayer_VoiceStateFillsIDs(t *testing.T) {
	n, _ := connectedNode(t, nil)

	st := voiceState("g1", "c1")
	_, err := n.VoiceStateUpdate(t.Context(), st)
	require.NoError(t, err)

	// stored verbatim
	got, ok := n.Players().Get("g1").VoiceState()
	require.True(t, ok)
	require.Equal(t, st, got)

	// ids are filled only when missing
	n.mu.Lock()
	stripped := st
	stripped.GuildID = ""
	n.states["g1"] = stripped
	n.mu.Unlock()
	got, ok = n.Players().Get("g1").VoiceState()
	require.True(t, ok)
	require.Equal(t, "g1", got.GuildID)
	require.Equal(t, botID, got.UserID)
}

func TestPlayer_MoveTo(t *testing.T) {
	a, srvA := connectedNode(t, nil)
	b, srvB := connectedNode(t, func(o *Options) { o.ID = "n2" })
	ctx := t.Context()

	p := a.Players().Get("g1")
	require.ErrorIs(t, p.MoveTo(ctx, b), ErrNoVoiceData)
	require.NoError(t, p.MoveTo(ctx, a))

	_, err := a.VoiceStateUpdate(ctx, voiceState("g1", "c1"))
	require.NoError(t, err)
	_, err = a.VoiceServerUpdate(ctx, voiceServer("g1"))
	require.NoError(t, err)
	require.Equal(t, "voiceUpdate", srvA.RequireFrame(waitFor)["op"])

	require.NoError(t, p.MoveTo(ctx, b))

	require.Equal(t, "destroy", srvA.RequireFrame(waitFor)["op"])
	require.False(t, a.Players().Has("g1"))
	require.False(t, a.HasVoice("g1"))
	require.True(t, b.Players().Has("g1"))
	require.True(t, b.HasVoice("g1"))

	f := srvB.RequireFrame(waitFor)
	require.Equal(t, "voiceUpdate", f["op"])
	require.Equal(t, "sess-g1", f["sessionId"])
	srvB.RequireNoFrame(quiet)
}

func TestRegistry(t *testing.T) {
	srv := lavatest.NewServer(t)
	n := newTestNode(t, srv, nil)
	r := n.Players()

	_, ok := r.Lookup("b")
	require.False(t, ok)
	require.Zero(t, r.Len())

	pb := r.Get("b")
	require.Same(t, pb, r.Get("b"))
	pa := r.Get("a")
	require.Equal(t, 2, r.Len())
	require.Equal(t, []*Player{pa, pb}, r.All())

	got, ok := r.Lookup("a")
	require.True(t, ok)
	require.Same(t, pa, got)

	require.True(t, r.Remove("a"))
	require.False(t, r.Remove("a"))
	require.False(t, r.Has("a"))
	require.Equal(t, 1, r.Len())
}
