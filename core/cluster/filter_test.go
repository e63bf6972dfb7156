package cluster

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/lava-go/core/node"
	"github.com/codewandler/lava-go/internal/hrw"
)

func offlineNode(t *testing.T, id string, tags ...string) *node.Node {
	t.Helper()
	n, err := node.New(node.Options{ID: id, URL: "ws://localhost:2333", Tags: tags})
	require.NoError(t, err)
	return n
}

func TestTagFilter(t *testing.T) {
	eu := offlineNode(t, "a", "eu", "gpu")
	us := offlineNode(t, "b", "us")

	f := TagFilter("eu")
	require.True(t, f(eu, "g"))
	require.False(t, f(us, "g"))

	require.True(t, TagFilter()(us, "g"))
	require.False(t, TagFilter("eu", "us")(eu, "g"))
}

func TestRendezvousFilter(t *testing.T) {
	nodes := []*node.Node{offlineNode(t, "a"), offlineNode(t, "b"), offlineNode(t, "c")}
	all := []string{"a", "b", "c"}
	f := RendezvousFilter(1, "seed", func() []string { return all })

	for i := 0; i < 50; i++ {
		guild := fmt.Sprintf("guild-%d", i)
		var accepted []string
		for _, n := range nodes {
			if f(n, guild) {
				accepted = append(accepted, n.ID())
			}
		}
		require.Equal(t, hrw.TopK(guild, all, 1, "seed"), accepted, guild)
	}

	f2 := RendezvousFilter(2, "seed", func() []string { return all })
	var accepted int
	for _, n := range nodes {
		if f2(n, "g") {
			accepted++
		}
	}
	require.Equal(t, 2, accepted)
}

func TestAll(t *testing.T) {
	n := offlineNode(t, "a", "eu")
	require.True(t, All()(n, "g"))
	require.True(t, All(AcceptAll, TagFilter("eu"))(n, "g"))
	require.False(t, All(AcceptAll, TagFilter("us"))(n, "g"))
}
