package node

import (
	"sort"
	"sync"
)

// Registry holds the players of a node, keyed by guild id.
type Registry struct {
	node *Node

	mu      sync.Mutex
	players map[string]*Player
}

func newRegistry(n *Node) *Registry {
	return &Registry{node: n, players: map[string]*Player{}}
}

// Get returns the guild's player, creating it on first use.
func (r *Registry) Get(guildID string) *Player {
	r.mu.Lock()
	p, ok := r.players[guildID]
	if !ok {
		p = newPlayer(r.node, guildID)
		r.players[guildID] = p
	}
	r.mu.Unlock()

	if !ok {
		r.node.metrics.PlayerCreated(r.node.id)
	}
	return p
}

// Lookup returns the guild's player without creating one.
func (r *Registry) Lookup(guildID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	return p, ok
}

func (r *Registry) Has(guildID string) bool {
	_, ok := r.Lookup(guildID)
	return ok
}

// Remove drops the guild's player without sending anything to the node.
func (r *Registry) Remove(guildID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[guildID]
	delete(r.players, guildID)
	return ok
}

// remove drops p if it is still the guild's player.
func (r *Registry) remove(p *Player) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.players[p.guildID] != p {
		return false
	}
	delete(r.players, p.guildID)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// All returns the players ordered by guild id.
func (r *Registry) All() []*Player {
	r.mu.Lock()
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].guildID < out[j].guildID })
	return out
}
