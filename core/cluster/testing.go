package cluster

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/lava-go/core/conn"
	"github.com/codewandler/lava-go/core/node"
	"github.com/codewandler/lava-go/internal/lavatest"
)

// TestUserID is the bot user id of clusters built by CreateTestCluster.
const TestUserID = "bot"

// CreateTestCluster starts numNodes fake nodes and returns a cluster whose
// nodes node-0..node-N are connected to them. Everything is torn down with
// the test.
func CreateTestCluster(t *testing.T, numNodes int, opts Options) (*Cluster, []*lavatest.Server) {
	t.Helper()

	servers := make([]*lavatest.Server, numNodes)
	for i := range servers {
		servers[i] = lavatest.NewServer(t)
		opts.Nodes = append(opts.Nodes, node.Options{
			ID:       fmt.Sprintf("node-%d", i),
			Password: "pw",
			UserID:   TestUserID,
			URL:      servers[i].URL(),
			Conn: conn.Options{
				ReconnectDelay: 10 * time.Millisecond,
				CloseTimeout:   time.Second,
			},
		})
	}

	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Destroy(context.Background(), 1000, "test done")
	})

	require.NoError(t, c.Connect(t.Context()))
	for _, s := range servers {
		s.RequireConns(1)
	}
	return c, servers
}
