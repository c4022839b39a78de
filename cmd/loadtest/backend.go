package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codewandler/esc-go/adapters/nats"
	"github.com/codewandler/esc-go/adapters/sqlstore"
	"github.com/codewandler/esc-go/core/es"
)

func openBackend(ctx context.Context, cfg config, log *slog.Logger) (es.Backend, error) {
	switch cfg.Backend {
	case "memory":
		return es.NewInMemoryBackend(es.WithMemoryLog(log)), nil
	case "nats":
		return nats.NewBackend(nats.BackendConfig{
			Connect:       nats.ConnectURL(cfg.NatsURL),
			Log:           log,
			StreamName:    "ESC_LOADTEST",
			SubjectPrefix: "esc.loadtest",
		})
	case "sqlite":
		return sqlstore.OpenSQLite(ctx, cfg.SQLitePath, log)
	case "postgres":
		return sqlstore.OpenPostgres(ctx, cfg.PostgresDSN, log)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
