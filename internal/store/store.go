package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"gitea.jw6.us/james/dashboard/internal/secrets"
)

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool PgxPool

	Sessions SessionRepository
}

// New wires concrete repository implementations with a shared connection pool.
func New(pool PgxPool, sealer *secrets.Sealer) *Store {
	return &Store{
		pool:     pool,
		Sessions: &sessionRepo{pool: pool, sealer: sealer},
	}
}

// Open connects to dsn and applies pending migrations.
func Open(ctx context.Context, dsn string, sealer *secrets.Sealer) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	if err := ApplyMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}
	return New(pool, sealer), pool, nil
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}
