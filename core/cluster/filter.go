package cluster

import (
	"slices"

	"github.com/codewandler/lava-go/core/node"
	"github.com/codewandler/lava-go/internal/hrw"
)

// Filter decides whether n may serve a new guild.
type Filter func(n *node.Node, guildID string) bool

func AcceptAll(*node.Node, string) bool { return true }

// TagFilter accepts nodes carrying every one of tags.
func TagFilter(tags ...string) Filter {
	return func(n *node.Node, _ string) bool {
		for _, t := range tags {
			if !n.HasTag(t) {
				return false
			}
		}
		return true
	}
}

// RendezvousFilter accepts the k nodes ranked highest for the guild by
// rendezvous hashing over ids().
func RendezvousFilter(k int, seed string, ids func() []string) Filter {
	return func(n *node.Node, guildID string) bool {
		return slices.Contains(hrw.TopK(guildID, ids(), k, seed), n.ID())
	}
}

// All accepts nodes accepted by every filter.
func All(filters ...Filter) Filter {
	return func(n *node.Node, guildID string) bool {
		for _, f := range filters {
			if !f(n, guildID) {
				return false
			}
		}
		return true
	}
}
