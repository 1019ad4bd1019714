// Package store is the persistence layer: an append-only event log plus
// mutable projection tables, mutated only through single SQL statements
// that combine an idempotent event insert with a conditional projection
// update. Every exported method here is meant to be callable
// at-least-once without changing the result of calling it exactly once.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the minimal surface the store needs from a connection or
// pool, so tests can substitute a fake without spinning up Postgres.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the projection store and event log. All operations are
// idempotent SQL statements; concurrency safety comes from Postgres, not
// from any in-process lock — the database is the shared state.
type Store struct {
	db querier
	// pool is non-nil when Open created the Store; Close tears it down.
	// Tests construct a Store directly with a fake querier and pool==nil.
	pool *pgxpool.Pool
}

// Open creates a connection pool to Postgres and wraps it as a Store.
func Open(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{db: pool, pool: pool}, nil
}

// Close releases the connection pool. It is a no-op for fake-backed stores.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// newForTest constructs a Store around an arbitrary querier, used by
// _test.go files in this package.
func newForTest(q querier) *Store {
	return &Store{db: q}
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
