// Package store is the transactional read/write adapter over the four
// tables (accounts, transactions, idempotency_records, outbox_events).
// It owns the pgxpool connection pool and the pessimistic/optimistic
// locking primitives the processor composes into the atomic critical
// section; it never decides business outcomes itself.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ledgerops/txnengine/internal/domain"
)

// Store wraps a pgxpool.Pool and exposes typed operations for every table.
type Store struct {
	Pool *pgxpool.Pool
}

// New parses connString and opens a connection pool with MaxConns and
// MinConns set to maxConns and minConns; a value of zero or less keeps
// pgxpool's default for that setting.
func New(ctx context.Context, connString string, maxConns, minConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("store.New: parse config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store.New: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store.New: ping: %w", err)
	}

	return &Store{Pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.Pool.Close()
}

// WithTx runs fn inside a transaction opened at isoLevel. It commits if fn
// returns nil and rolls back (surfacing fn's error) otherwise. The
// processor uses this for its write-locking critical section; callers
// that only need a read should query the pool directly instead.
func (s *Store) WithTx(ctx context.Context, isoLevel pgx.TxIsoLevel, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: isoLevel})
	if err != nil {
		return fmt.Errorf("WithTx: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("WithTx: commit: %w", translatePgError(err))
	}
	return nil
}

// pgErrorCode extracts the Postgres SQLSTATE from err, if any.
func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == "23505"
}

// isSerializationConflict reports whether err is one of the two
// transient store-level conflict classes the processor retries:
// serialization failure (40001) or deadlock detected (40P01).
func isSerializationConflict(err error) bool {
	switch pgErrorCode(err) {
	case "40001", "40P01":
		return true
	}
	return false
}

// translatePgError maps a raw pgx/pgconn error onto the store's domain
// error vocabulary where one applies, otherwise returns err unchanged.
func translatePgError(err error) error {
	if err == nil {
		return nil
	}
	if isSerializationConflict(err) {
		return fmt.Errorf("%w: %v", domain.ErrSerializationConflict, err)
	}
	return err
}
