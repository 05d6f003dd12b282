package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// OpenStore builds the document store selected by STORE_DRIVER. Postgres
// stores get their schema created on open.
func OpenStore(ctx context.Context, cfg *Config, logger *slog.Logger, onConflict func(int, error)) (docstore.Store, error) {
	opts := cfg.StoreOptions(onConflict)
	switch cfg.StoreDriver {
	case DriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		store := docstore.NewPostgres(pool, opts)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case DriverBolt:
		return docstore.OpenBolt(cfg.BoltPath)
	case DriverMemory:
		logger.Warn("using in-memory document store; data is lost on exit")
		return docstore.NewMemory(opts), nil
	}
	return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
}
