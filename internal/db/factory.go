package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"agendabot/internal/config"
)

// NewStore builds the Store selected by StateConfig.Backend. For the postgres
// backend it constructs a pgxpool from DatabaseConfig and ensures the schema;
// for the file backend it roots the store at StateConfig.Dir. The returned
// cleanup func closes the pool (a no-op for the file backend).
func NewStore(ctx context.Context, cfg *config.Config) (Store, func(), error) {
	sealer, err := NewSealer(cfg.State.SealKey)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.State.Backend {
	case "postgres":
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
		if err != nil {
			return nil, nil, fmt.Errorf("parsing database URL: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.Database.MaxConns)
		poolCfg.MinConns = int32(cfg.Database.MinConns)
		poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
		poolCfg.HealthCheckPeriod = cfg.Database.HealthCheckPeriod
		poolCfg.ConnConfig.ConnectTimeout = cfg.Database.AcquireTimeout

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("creating connection pool: %w", err)
		}

		store := NewPostgresStore(pool, sealer)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	case "file":
		store, err := NewFileStore(cfg.State.Dir, sealer)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}
