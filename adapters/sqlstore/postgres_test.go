package sqlstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codewandler/esc-go/core/es"
	"github.com/codewandler/esc-go/core/es/estests"
)

func newPostgresContainer(t *testing.T) string {
	ctx := t.Context()
	pgC, err := testcontainers.Run(
		ctx, "postgres:16-alpine",
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_USER":     "esc",
			"POSTGRES_PASSWORD": "esc",
			"POSTGRES_DB":       "esc",
		}),
		testcontainers.WithExposedPorts("5432/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgC); err != nil {
			t.Errorf("failed to terminate container: %s", err.Error())
		}
	})

	ip, err := pgC.ContainerIP(ctx)
	require.NoError(t, err)
	t.Logf("postgres ip: %s", ip)
	return "postgres://esc:esc@" + ip + ":5432/esc?sslmode=disable"
}

func TestPostgres_Backend(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}

	dsn := newPostgresContainer(t)
	backend, err := OpenPostgres(t.Context(), dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	estests.Run(t, func(*testing.T) es.Backend { return backend })

	t.Run("migrations are idempotent", func(t *testing.T) {
		require.NoError(t, Migrate(t.Context(), backend.DB(), Postgres))

		var applied int
		require.NoError(t, backend.DB().QueryRowContext(t.Context(), "SELECT COUNT(*) FROM "+migrationTable).Scan(&applied))
		require.Equal(t, 1, applied)
	})
}
