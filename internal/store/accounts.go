package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/ledgerops/txnengine/internal/domain"
)

const accountColumns = `id, name, balance, currency, status, created_at, updated_at, version`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	var balance int64
	if err := row.Scan(&a.ID, &a.Name, &balance, &a.Currency, &a.Status, &a.CreatedAt, &a.UpdatedAt, &a.Version); err != nil {
		return nil, err
	}
	a.Balance = domain.MoneyFromMinorUnits(balance)
	return &a, nil
}

// GetAccount reads an account without locking it. Used outside the
// processor's critical section (e.g. the GET /accounts/{id} endpoint).
func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("GetAccount: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return a, nil
}

// LockAccountForUpdate acquires a row-level write lock on the account.
// Callers must acquire locks on multiple accounts in ascending id order
// to avoid deadlocks; this method itself locks exactly one row.
func (s *Store) LockAccountForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Account, error) {
	row := tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	a, err := scanAccount(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("LockAccountForUpdate: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("LockAccountForUpdate: %w", translatePgError(err))
	}
	return a, nil
}

// UpdateAccountBalance writes a new balance under an optimistic version
// check, in addition to the pessimistic lock already held via
// LockAccountForUpdate. A row count of zero means the version the caller
// read no longer matches — surfaced as ErrVersionConflict so the
// processor can retry.
func (s *Store) UpdateAccountBalance(ctx context.Context, tx pgx.Tx, id string, newBalance domain.Money, expectedVersion int64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $1, version = version + 1, updated_at = now()
		 WHERE id = $2 AND version = $3`,
		newBalance.MinorUnits(), id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("UpdateAccountBalance: %w", translatePgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("UpdateAccountBalance: %w", domain.ErrVersionConflict)
	}
	return nil
}

// CreateAccount provisions a new account. Account provisioning is out of
// scope for the core design, but the processor's integration tests and
// the seeder need a concrete seam to create the fixtures they exercise.
func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO accounts (id, name, balance, currency, status, created_at, updated_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Name, a.Balance.MinorUnits(), a.Currency, a.Status, a.CreatedAt, a.UpdatedAt, a.Version,
	)
	if err != nil {
		return fmt.Errorf("CreateAccount: %w", err)
	}
	return nil
}
