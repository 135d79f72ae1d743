// Package redmine reads and writes the Redmine PostgreSQL schema.
package redmine

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/danielolaszy/bzmigrate/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const openMaxElapsed = 30 * time.Second

// Config holds the connection settings for a Redmine database.
type Config struct {
	DSN string

	// MaxConns caps the pool. A migration run is sequential, so a few suffice.
	MaxConns int32
}

// querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the Redmine side of a migration.
type Store struct {
	db    querier
	close func()
}

// Open connects to Redmine and waits for the server to answer.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redmine DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 4
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create redmine connection pool: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = openMaxElapsed
	if err := backoff.Retry(func() error { return pool.Ping(ctx) }, backoff.WithContext(bo, ctx)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to redmine at %s: %w", poolCfg.ConnConfig.Host, err)
	}

	logging.Info("connected to redmine",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"user", poolCfg.ConnConfig.User)
	return &Store{db: pool, close: pool.Close}, nil
}

func newStore(db querier) *Store {
	return &Store{db: db, close: func() {}}
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.close()
}

// withTx runs fn in a transaction, rolling back if fn fails.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			logging.Warn("failed to roll back transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
