package node

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/lava-go/core/conn"
	"github.com/codewandler/lava-go/core/protocol"
	"github.com/codewandler/lava-go/internal/lavatest"
)

const (
	waitFor = 2 * time.Second
	quiet   = 50 * time.Millisecond
	botID   = "bot"
)

func newTestNode(t *testing.T, srv *lavatest.Server, mod func(*Options)) *Node {
	t.Helper()
	opts := Options{
		ID:       "n1",
		Password: "pw",
		UserID:   botID,
		URL:      srv.URL(),
		Conn: conn.Options{
			ReconnectDelay: 10 * time.Millisecond,
			CloseTimeout:   time.Second,
		},
	}
	if mod != nil {
		mod(&opts)
	}
	n, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Disconnect(context.Background(), 1000, "cleanup") })
	return n
}

func connectedNode(t *testing.T, mod func(*Options)) (*Node, *lavatest.Server) {
	t.Helper()
	srv := lavatest.NewServer(t)
	n := newTestNode(t, srv, mod)
	require.NoError(t, n.Connect(t.Context()))
	srv.RequireConns(1)
	return n, srv
}

func voiceState(guild, channel string) protocol.VoiceState {
	return protocol.VoiceState{GuildID: guild, ChannelID: channel, UserID: botID, SessionID: "sess-" + guild}
}

func voiceServer(guild string) protocol.VoiceServer {
	return protocol.VoiceServer{GuildID: guild, Token: "tok-" + guild, Endpoint: "eu.example.com"}
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(Options{})
	require.ErrorIs(t, err, ErrURLRequired)
}

func TestNew_Defaults(t *testing.T) {
	n, err := New(Options{Host: "localhost:2333", Tags: []string{"eu"}})
	require.NoError(t, err)
	require.Regexp(t, `^node-.{6}$`, n.ID())
	require.Equal(t, "ws://localhost:2333", n.Conn().URL())
	require.NotNil(t, n.rest)
	require.True(t, n.HasTag("eu"))
	require.False(t, n.HasTag("us"))
	require.False(t, n.Connected())
}

func TestNode_Reconcile(t *testing.T) {
	n, srv := connectedNode(t, nil)
	ctx := t.Context()

	sent, err := n.VoiceStateUpdate(ctx, voiceState("g1", "c1"))
	require.NoError(t, err)
	require.False(t, sent)
	srv.RequireNoFrame(quiet)

	sent, err = n.VoiceServerUpdate(ctx, voiceServer("g1"))
	require.NoError(t, err)
	require.True(t, sent)
	require.False(t, n.Expecting("g1"))

	f := srv.RequireFrame(waitFor)
	require.Equal(t, "voiceUpdate", f["op"])
	require.Equal(t, "g1", f["guildId"])
	require.Equal(t, "sess-g1", f["sessionId"])
	require.Equal(t, map[string]any{"token": "tok-g1", "guild_id": "g1", "endpoint": "eu.example.com"}, f["event"])

	// the same state again is not a new pairing
	sent, err = n.VoiceStateUpdate(ctx, voiceState("g1", "c1"))
	require.NoError(t, err)
	require.False(t, sent)
	srv.RequireNoFrame(quiet)
}

func TestNode_ReconcileServerFirst(t *testing.T) {
	n, srv := connectedNode(t, nil)
	ctx := t.Context()

	for i := 0; i < 2; i++ {
		sent, err := n.VoiceServerUpdate(ctx, voiceServer("g1"))
		require.NoError(t, err)
		require.False(t, sent)
	}
	require.True(t, n.Expecting("g1"))

	sent, err := n.VoiceStateUpdate(ctx, voiceState("g1", "c1"))
	require.NoError(t, err)
	require.True(t, sent)

	require.Equal(t, "voiceUpdate", srv.RequireFrame(waitFor)["op"])
	srv.RequireNoFrame(quiet)
}

func TestNode_ReconcileConcurrentGuilds(t *testing.T) {
	n, srv := connectedNode(t, nil)

	const guilds = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*guilds)
	for i := 0; i < guilds; i++ {
		g := fmt.Sprintf("g%d", i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := n.VoiceStateUpdate(context.Background(), voiceState(g, "c"))
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := n.VoiceServerUpdate(context.Background(), voiceServer(g))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	seen := map[string]int{}
	for i := 0; i < guilds; i++ {
		f := srv.RequireFrame(waitFor)
		require.Equal(t, "voiceUpdate", f["op"])
		seen[f["guildId"].(string)]++
	}
	srv.RequireNoFrame(quiet)
	require.Len(t, seen, guilds)
	for g, c := range seen {
		require.Equal(t, 1, c, g)
	}
}

func TestNode_VoiceStateFiltering(t *testing.T) {
	n, srv := connectedNode(t, nil)
	ctx := t.Context()

	other := voiceState("g1", "c1")
	other.UserID = "someone-else"
	sent, err := n.VoiceStateUpdate(ctx, other)
	require.NoError(t, err)
	require.False(t, sent)
	_, ok := n.voiceState("g1")
	require.False(t, ok)

	_, err = n.VoiceStateUpdate(ctx, voiceState("", "c1"))
	require.ErrorIs(t, err, ErrGuildRequired)
	_, err = n.VoiceServerUpdate(ctx, voiceServer(""))
	require.ErrorIs(t, err, ErrGuildRequired)

	_, err = n.VoiceStateUpdate(ctx, voiceState("g1", "c1"))
	require.NoError(t, err)
	_, err = n.VoiceServerUpdate(ctx, voiceServer("g1"))
	require.NoError(t, err)
	srv.RequireFrame(waitFor)

	// leaving drops both halves
	sent, err = n.VoiceStateUpdate(ctx, voiceState("g1", ""))
	require.NoError(t, err)
	require.False(t, sent)
	_, ok = n.voiceState("g1")
	require.False(t, ok)
	_, ok = n.voiceServer("g1")
	require.False(t, ok)
	srv.RequireNoFrame(quiet)
}

func TestNode_ReconcileBeforeConnect(t *testing.T) {
	srv := lavatest.NewServer(t)
	n := newTestNode(t, srv, nil)
	ctx := t.Context()

	_, err := n.VoiceStateUpdate(ctx, voiceState("g1", "c1"))
	require.NoError(t, err)
	sent, err := n.VoiceServerUpdate(ctx, voiceServer("g1"))
	require.ErrorIs(t, err, conn.ErrNotInitialized)
	require.False(t, sent)
	require.True(t, n.Expecting("g1"))
}

func TestNode_InboundRouting(t *testing.T) {
	n, srv := connectedNode(t, nil)

	var (
		mu       sync.Mutex
		payloads []protocol.Inbound
		sources  []*Node
	)
	sub := n.Subscribe(func(e Event) {
		if e.Type != EventPayload {
			return
		}
		mu.Lock()
		payloads = append(payloads, e.Payload)
		sources = append(sources, e.Node)
		mu.Unlock()
	})
	defer func() { _ = sub.Unsubscribe() }()

	p := n.Players().Get("g1")
	var playerFrames []protocol.Inbound
	p.Subscribe(func(msg protocol.Inbound) {
		mu.Lock()
		playerFrames = append(playerFrames, msg)
		mu.Unlock()
	})

	srv.Push(map[string]any{"op": "playerUpdate", "guildId": "g1", "state": map[string]any{"time": 1, "position": 5000}})
	srv.Push(map[string]any{"op": "playerUpdate", "guildId": "g2", "state": map[string]any{"time": 1, "position": 10}})
	srv.Push(map[string]any{
		"op": "stats", "players": 1, "playingPlayers": 1, "uptime": 1000,
		"cpu": map[string]any{"cores": 4, "systemLoad": 0.2, "lavalinkLoad": 0.1},
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(payloads) == 3
	}, waitFor, 5*time.Millisecond)

	mu.Lock()
	require.Len(t, playerFrames, 1)
	for _, src := range sources {
		require.Same(t, n, src)
	}
	mu.Unlock()

	state, at := p.State()
	require.EqualValues(t, 5000, state.Position)
	require.False(t, at.IsZero())

	// frames never create players
	require.False(t, n.Players().Has("g2"))

	require.NotNil(t, n.Stats())
	require.InDelta(t, 0.05, n.Stats().Load(), 1e-9)
}

func TestNode_LifecycleEvents(t *testing.T) {
	srv := lavatest.NewServer(t)
	n := newTestNode(t, srv, nil)

	var (
		mu    sync.Mutex
		types []EventType
	)
	n.Subscribe(func(e Event) {
		mu.Lock()
		types = append(types, e.Type)
		mu.Unlock()
	})

	require.NoError(t, n.Connect(t.Context()))
	srv.RequireConns(1)
	srv.PushRaw([]byte("garbage"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(types) == 2
	}, waitFor, 5*time.Millisecond)
	require.NoError(t, n.Disconnect(t.Context(), 1000, "bye"))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []EventType{EventOpen, EventError, EventClose}, types)
}

func TestNode_NoREST(t *testing.T) {
	srv := lavatest.NewServer(t)
	n := newTestNode(t, srv, nil)

	_, err := n.Load(t.Context(), "ytsearch:x")
	require.ErrorIs(t, err, ErrNoREST)
	_, err = n.DecodeTrack(t.Context(), "x")
	require.ErrorIs(t, err, ErrNoREST)
	_, err = n.DecodeTracks(t.Context(), []string{"x"})
	require.ErrorIs(t, err, ErrNoREST)
}

func TestNode_Destroy(t *testing.T) {
	n, srv := connectedNode(t, nil)
	n.Players().Get("a")
	n.Players().Get("b")

	require.NoError(t, n.Destroy(t.Context(), 1000, "shutdown"))
	require.Zero(t, n.Players().Len())
	require.False(t, n.Connected())

	var guilds []string
	for i := 0; i < 2; i++ {
		var f map[string]any
		data, ok := srv.NextFrame(waitFor)
		require.True(t, ok)
		require.NoError(t, json.Unmarshal(data, &f))
		require.Equal(t, "destroy", f["op"])
		guilds = append(guilds, f["guildId"].(string))
	}
	require.Equal(t, []string{"a", "b"}, guilds)
}
