package nats

import (
	"context"
	"net"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestImage is the server image used by the test helpers. JetStream support
// with per subject expected sequences needs 2.10 or newer.
const TestImage = "nats:2.10-alpine"

const clientPort = "4222/tcp"

type Testing interface {
	require.TestingT
	Context() context.Context
	Logf(format string, args ...any)
	Cleanup(func())
}

// NewTestContainer starts a JetStream enabled server for the lifetime of t
// and returns a Connector for it.
func NewTestContainer(t Testing) Connector {
	ctx := t.Context()
	c, err := testcontainers.Run(
		ctx, TestImage,
		testcontainers.WithCmd("-js", "-sd", "/data"),
		testcontainers.WithExposedPorts(clientPort),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort(clientPort),
			wait.ForLog("Server is ready"),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			t.Errorf("terminate nats container: %s", err)
		}
	})

	ip, err := c.ContainerIP(ctx)
	require.NoError(t, err)
	natsURL := "nats://" + net.JoinHostPort(ip, "4222")
	t.Logf("nats url: %s", natsURL)
	return ConnectURL(natsURL)
}

// NewTestBackend opens a Backend on connect that is closed when t finishes.
func NewTestBackend(t Testing, connect Connector, cfg BackendConfig) *Backend {
	cfg.Connect = connect
	b, err := NewBackend(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}
