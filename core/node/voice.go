package node

import (
	"context"
	"log/slog"

	"github.com/codewandler/lava-go/core/protocol"
)

// VoiceStateUpdate records the platform voice state of the bot user. States
// of other users are ignored. A state without a channel means the bot left:
// state and server of the guild are dropped. It reports whether a
// voiceUpdate was sent.
func (n *Node) VoiceStateUpdate(ctx context.Context, state protocol.VoiceState) (bool, error) {
	if state.UserID != n.userID {
		return false, nil
	}
	if state.GuildID == "" {
		return false, ErrGuildRequired
	}

	if !state.InChannel() {
		n.forgetVoice(state.GuildID)
		return false, nil
	}

	n.mu.Lock()
	n.states[state.GuildID] = state
	n.mu.Unlock()

	return n.reconcile(ctx, state.GuildID)
}

// VoiceServerUpdate records the voice server of a guild and expects a
// voiceUpdate for it. It reports whether a voiceUpdate was sent.
func (n *Node) VoiceServerUpdate(ctx context.Context, server protocol.VoiceServer) (bool, error) {
	if server.GuildID == "" {
		return false, ErrGuildRequired
	}

	n.mu.Lock()
	n.servers[server.GuildID] = server
	n.serverSeq++
	n.expecting[server.GuildID] = n.serverSeq
	n.mu.Unlock()

	return n.reconcile(ctx, server.GuildID)
}

// reconcile sends one voiceUpdate once state, server and the expecting mark
// are present. The mark is only cleared if no newer server arrived while
// sending.
func (n *Node) reconcile(ctx context.Context, guildID string) (sent bool, err error) {
	err = n.voiceLocks.Do(ctx, guildID, func() error {
		n.mu.Lock()
		state, hasState := n.states[guildID]
		server, hasServer := n.servers[guildID]
		seq, expecting := n.expecting[guildID]
		n.mu.Unlock()

		if !hasState || !hasServer || !expecting {
			return nil
		}

		if err := n.players.Get(guildID).VoiceUpdate(ctx, state.SessionID, server); err != nil {
			n.metrics.VoiceUpdate(n.id, false)
			n.log.Warn("voice update failed", slog.String("guild", guildID), slog.Any("error", err))
			return err
		}
		n.metrics.VoiceUpdate(n.id, true)

		n.mu.Lock()
		if n.expecting[guildID] == seq {
			delete(n.expecting, guildID)
		}
		n.mu.Unlock()

		n.log.Debug("voice update sent", slog.String("guild", guildID), slog.String("session", state.SessionID))
		sent = true
		return nil
	})
	return sent, err
}

func (n *Node) forgetVoice(guildID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.states, guildID)
	delete(n.servers, guildID)
}

func (n *Node) voiceState(guildID string) (protocol.VoiceState, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.states[guildID]
	return s, ok
}

func (n *Node) voiceServer(guildID string) (protocol.VoiceServer, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.servers[guildID]
	return s, ok
}

// Expecting reports whether a voiceUpdate for guildID is still pending.
func (n *Node) Expecting(guildID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.expecting[guildID]
	return ok
}

// HasVoice reports whether a voice state or server is stored for guildID.
func (n *Node) HasVoice(guildID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, hasState := n.states[guildID]
	_, hasServer := n.servers[guildID]
	return hasState || hasServer
}
