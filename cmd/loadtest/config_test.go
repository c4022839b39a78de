package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/esc-go/core/es"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := parseConfig()
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Backend)
	require.Equal(t, 50_000, cfg.N)
	require.Equal(t, 1_000, cfg.BatchSize)
	require.Equal(t, 120*time.Second, cfg.Timeout)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestParseConfig_Env(t *testing.T) {
	t.Setenv("BACKEND", "sqlite")
	t.Setenv("N", "10")
	t.Setenv("STREAMS", "3")
	t.Setenv("ASYNC", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := parseConfig()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Backend)
	require.Equal(t, 10, cfg.N)
	require.Equal(t, 3, cfg.Streams)
	require.True(t, cfg.Async)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestParseConfig_Invalid(t *testing.T) {
	t.Setenv("STREAMS", "0")
	_, err := parseConfig()
	require.Error(t, err)

	t.Setenv("STREAMS", "x")
	_, err = parseConfig()
	require.Error(t, err)
}

func testRun(t *testing.T, async bool) {
	cfg := config{N: 20, BatchSize: 5, Streams: 3, Workers: 4, Async: async}
	store := es.NewInMemoryStore(registry())
	r := &run{cfg: cfg, id: "test", store: store, streams: make([]es.StreamID, cfg.Streams)}
	for i := range r.streams {
		r.streams[i] = es.MustSimpleStreamID("user-test-" + string(rune('a'+i)))
	}

	ctx := t.Context()
	if async {
		a := es.NewAsyncStore(store, es.WithWorkers(cfg.Workers), es.WithStreamOrdering())
		require.NoError(t, r.appendAsync(ctx, a))
		require.NoError(t, a.Close())
	} else {
		require.NoError(t, r.appendSync(ctx))
	}
	require.NoError(t, r.readBack(ctx))
}

func TestRun_Sync(t *testing.T)  { testRun(t, false) }
func TestRun_Async(t *testing.T) { testRun(t, true) }
