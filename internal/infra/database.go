package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pgHealthCheckPeriod = 30 * time.Second

// NewPostgresPool opens a pool sized for the ledger workload and verifies
// connectivity. Commits hold one connection for the length of a transaction,
// so maxConns bounds concurrent ledger writes. maxConns <= 0 keeps the pgx
// default.
func NewPostgresPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.HealthCheckPeriod = pgHealthCheckPeriod
	cfg.ConnConfig.RuntimeParams["application_name"] = "cryptolab-exchange"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}
