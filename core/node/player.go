package node

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codewandler/lava-go/core/protocol"
	"github.com/codewandler/lava-go/internal/observe"
)

// Player controls playback of one guild on its node. Commands are sent
// right away and fail with ErrNotConnected while the node is offline; the
// status changes optimistically once the command is written.
type Player struct {
	node    *Node
	guildID string
	log     *slog.Logger

	mu         sync.Mutex
	status     Status
	state      protocol.PlayerState
	observedAt time.Time

	events observe.Hub[protocol.Inbound]
}

type JoinOptions struct {
	SelfMute bool
	SelfDeaf bool
}

// PlayOptions: zero Start and End play the whole track.
type PlayOptions struct {
	Start     time.Duration
	End       time.Duration
	NoReplace bool
	Pause     bool
}

func newPlayer(n *Node, guildID string) *Player {
	return &Player{
		node:    n,
		guildID: guildID,
		log:     n.log.With(slog.String("guild", guildID)),
	}
}

func (p *Player) GuildID() string { return p.guildID }

func (p *Player) Node() *Node { return p.node }

func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Player) Playing() bool { return p.Status() == StatusPlaying }

func (p *Player) Paused() bool { return p.Status() == StatusPaused }

func (p *Player) setStatus(s Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// Position extrapolates the last reported position by the time passed since
// it was received. It is zero before the first playerUpdate.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.observedAt.IsZero() {
		return 0
	}
	return time.Duration(p.state.Position)*time.Millisecond + p.node.now().Sub(p.observedAt)
}

// State returns the last reported player state and when it was received.
func (p *Player) State() (protocol.PlayerState, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.observedAt
}

// VoiceState returns the stored voice state of the guild. Guild and user id
// are filled in when the platform omitted them.
func (p *Player) VoiceState() (protocol.VoiceState, bool) {
	s, ok := p.node.voiceState(p.guildID)
	if !ok {
		return s, false
	}
	if s.GuildID == "" {
		s.GuildID = p.guildID
	}
	if s.UserID == "" {
		s.UserID = p.node.userID
	}
	return s, true
}

func (p *Player) VoiceServer() (protocol.VoiceServer, bool) {
	return p.node.voiceServer(p.guildID)
}

// Subscribe registers fn for every frame addressed to this guild.
func (p *Player) Subscribe(fn func(protocol.Inbound)) Subscription {
	return p.events.Subscribe(fn)
}

func (p *Player) handle(msg protocol.Inbound) {
	switch m := msg.(type) {
	case *protocol.PlayerUpdate:
		p.mu.Lock()
		p.state = m.State
		p.observedAt = p.node.now()
		p.mu.Unlock()
	case *protocol.Event:
		p.applyEvent(m)
	}
	p.events.Publish(msg)
}

func (p *Player) applyEvent(e *protocol.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Type {
	case protocol.EventTrackStart:
		p.status = StatusPlaying
	case protocol.EventTrackEnd:
		if !strings.EqualFold(e.Reason, protocol.EndReasonReplaced) {
			p.status = StatusEnded
		}
	case protocol.EventTrackException:
		p.status = StatusErrored
	case protocol.EventTrackStuck:
		p.status = StatusStuck
	case protocol.EventWebSocketClosed:
		p.status = StatusEnded
	default:
		p.status = StatusUnknown
	}
}

func (p *Player) send(ctx context.Context, out protocol.Outbound) error {
	if !p.node.Connected() {
		return ErrNotConnected
	}
	return p.node.conn.Send(ctx, out)
}

// Join asks the platform to connect the bot to channelID. Stored voice data
// of the guild is dropped; the resulting state and server updates have to
// be fed back through the node or cluster.
func (p *Player) Join(ctx context.Context, channelID string, opts JoinOptions) error {
	p.node.forgetVoice(p.guildID)
	packet := protocol.NewVoiceStateIntent(p.guildID, channelID, opts.SelfMute, opts.SelfDeaf)
	return p.node.sendGateway(ctx, p.guildID, packet)
}

// Leave asks the platform to disconnect the bot from the guild's channel.
func (p *Player) Leave(ctx context.Context) error {
	return p.Join(ctx, "", JoinOptions{})
}

func (p *Player) Play(ctx context.Context, track string, opts PlayOptions) error {
	err := p.send(ctx, &protocol.Play{
		GuildID:   p.guildID,
		Track:     track,
		StartTime: opts.Start.Milliseconds(),
		EndTime:   opts.End.Milliseconds(),
		NoReplace: opts.NoReplace,
		Pause:     opts.Pause,
	})
	if err != nil {
		return err
	}
	if opts.Pause {
		p.setStatus(StatusPaused)
	} else {
		p.setStatus(StatusPlaying)
	}
	return nil
}

func (p *Player) Pause(ctx context.Context, pause bool) error {
	if err := p.send(ctx, &protocol.Pause{GuildID: p.guildID, Pause: pause}); err != nil {
		return err
	}
	if pause {
		p.setStatus(StatusPaused)
	} else {
		p.setStatus(StatusPlaying)
	}
	return nil
}

func (p *Player) Stop(ctx context.Context) error {
	if err := p.send(ctx, &protocol.Stop{GuildID: p.guildID}); err != nil {
		return err
	}
	p.setStatus(StatusEnded)
	return nil
}

func (p *Player) Seek(ctx context.Context, position time.Duration) error {
	return p.send(ctx, &protocol.Seek{GuildID: p.guildID, Position: position.Milliseconds()})
}

// SetVolume sets the volume in percent, 100 being unchanged.
func (p *Player) SetVolume(ctx context.Context, volume int) error {
	return p.send(ctx, &protocol.Volume{GuildID: p.guildID, Volume: volume})
}

func (p *Player) SetEqualizer(ctx context.Context, bands ...protocol.Band) error {
	return p.send(ctx, &protocol.Equalizer{GuildID: p.guildID, Bands: bands})
}

func (p *Player) SetFilters(ctx context.Context, filters protocol.Filters) error {
	filters.GuildID = p.guildID
	return p.send(ctx, &filters)
}

// VoiceUpdate hands the voice session to the node. Unlike the other
// commands it is queued while the connection is down.
func (p *Player) VoiceUpdate(ctx context.Context, sessionID string, server protocol.VoiceServer) error {
	return p.node.conn.Send(ctx, &protocol.VoiceUpdate{
		GuildID:   p.guildID,
		SessionID: sessionID,
		Event:     server,
	})
}

// Destroy ends the player and removes it from its node. The destroy command
// is best effort; Destroy itself cannot fail.
func (p *Player) Destroy(ctx context.Context) {
	if p.node.Connected() {
		if err := p.send(ctx, &protocol.Destroy{GuildID: p.guildID}); err != nil {
			p.log.Warn("destroy not sent", slog.Any("error", err))
		}
	}
	p.setStatus(StatusEnded)
	if p.node.players.remove(p) {
		p.node.metrics.PlayerDestroyed(p.node.id)
	}
}

// MoveTo transfers the guild's session to other without a round trip
// through the platform: the player is destroyed here and the stored voice
// state and server are replayed on other.
func (p *Player) MoveTo(ctx context.Context, other *Node) error {
	if other == p.node {
		return nil
	}

	state, hasState := p.VoiceState()
	server, hasServer := p.VoiceServer()
	if !hasState || !hasServer {
		return ErrNoVoiceData
	}

	p.Destroy(ctx)
	p.node.forgetVoice(p.guildID)
	p.log.Info("moving player", slog.String("to", other.ID()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := other.VoiceStateUpdate(gctx, state)
		return err
	})
	g.Go(func() error {
		_, err := other.VoiceServerUpdate(gctx, server)
		return err
	})
	return g.Wait()
}
