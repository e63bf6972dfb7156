package nats

import (
	"context"
	"os"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testImage = "nats:2.11-alpine"

// Testing is the subset of testing.TB the helpers need.
type Testing interface {
	require.TestingT
	Context() context.Context
	Logf(format string, args ...any)
	Cleanup(func())
}

// NewTestContainer returns a shared Connector to a JetStream enabled server
// for the test. NATS_TEST_URL points it at a running server; otherwise a
// container is started and terminated with the test.
func NewTestContainer(t Testing) Connector {
	if url := os.Getenv("NATS_TEST_URL"); url != "" {
		t.Logf("nats: using %s", url)
		return ReuseConnection(ConnectURL(url))
	}

	ctx := t.Context()
	natsC, err := testcontainers.Run(
		ctx, testImage,
		testcontainers.WithCmd("-js", "-sd", "/tmp/js"),
		testcontainers.WithExposedPorts("4222/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("4222/tcp"),
			wait.ForLog("Server is ready"),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(natsC); err != nil {
			t.Errorf("nats: terminate container: %s", err.Error())
		}
	})

	endpoint, err := natsC.PortEndpoint(ctx, "4222/tcp", "nats")
	require.NoError(t, err)
	t.Logf("nats: started %s at %s", testImage, endpoint)
	return ReuseConnection(ConnectURL(endpoint))
}
