package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDialect_Rebind(t *testing.T) {
	const q = "UPDATE t SET a = ?, b = ? WHERE c = ?"
	require.Equal(t, q, SQLite.rebind(q))
	require.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE c = $3", Postgres.rebind(q))
}

func TestParseDialect(t *testing.T) {
	for name, want := range map[string]*Dialect{
		"sqlite":     SQLite,
		"SQLite3":    SQLite,
		"postgres":   Postgres,
		" pgx ":      Postgres,
		"postgresql": Postgres,
	} {
		d, err := ParseDialect(name)
		require.NoError(t, err, name)
		require.Same(t, want, d, name)
	}

	_, err := ParseDialect("oracle")
	require.Error(t, err)
}

func TestNewQueries(t *testing.T) {
	require.Equal(t, "SELECT state, version FROM esc_streams WHERE name = ?", newQueries(SQLite).lock)
	require.Equal(t, "SELECT state, version FROM esc_streams WHERE name = $1 FOR UPDATE", newQueries(Postgres).lock)
	require.Contains(t, newQueries(Postgres).readBackward, "event_number < $3")
	require.Contains(t, newQueries(Postgres).readBackward, "ORDER BY event_number DESC")
}

func TestMigrationParsing(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (x INT);\nCREATE TABLE b (y INT);\n-- +migrate Down\nDROP TABLE a;\n"

	up := extractUpMigration(content)
	require.NotContains(t, up, "DROP")
	require.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE TABLE b (y INT)"}, splitStatements(up))

	require.Equal(t, "SELECT 1", extractUpMigration("SELECT 1"))
	require.Empty(t, splitStatements(" ;\n; "))
}

func TestMigrations_Embedded(t *testing.T) {
	for _, d := range []*Dialect{SQLite, Postgres} {
		content, err := migrationsFS.ReadFile("migrations/" + d.name + "/0001_streams.sql")
		require.NoError(t, err, d.name)
		stmts := splitStatements(extractUpMigration(string(content)))
		require.Len(t, stmts, 2, d.name)
	}
}
