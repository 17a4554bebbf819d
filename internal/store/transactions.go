package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/ledgerops/txnengine/internal/domain"
)

const transactionColumns = `id, idempotency_key, from_account_id, to_account_id, amount, currency,
	type, status, failure_reason, created_at, completed_at, version`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var amount int64
	var failureReason *string
	if err := row.Scan(
		&t.ID, &t.IdempotencyKey, &t.FromAccountID, &t.ToAccountID, &amount, &t.Currency,
		&t.Type, &t.Status, &failureReason, &t.CreatedAt, &t.CompletedAt, &t.Version,
	); err != nil {
		return nil, err
	}
	t.Amount = domain.MoneyFromMinorUnits(amount)
	if failureReason != nil {
		t.FailureReason = *failureReason
	}
	return &t, nil
}

// GetTransaction reads a transaction by id outside any processor
// critical section, e.g. for the read-only transaction lookup endpoint.
func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("GetTransaction: %w", domain.ErrTransactionNotFound)
		}
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return t, nil
}

// GetTransactionTx is GetTransaction run inside the processor's own write
// transaction, used to resolve a resubmitted transactionId against a row
// the first attempt already committed (FAILED or COMPLETED) without a
// second round trip to re-derive the idempotency key separately.
func (s *Store) GetTransactionTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Transaction, error) {
	row := tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("GetTransactionTx: %w", domain.ErrTransactionNotFound)
		}
		return nil, fmt.Errorf("GetTransactionTx: %w", translatePgError(err))
	}
	return t, nil
}

// InsertTransaction writes the terminal (COMPLETED or FAILED) row for an
// admitted request. It is an upsert on the primary key: a resubmission of
// a transactionId whose prior attempt landed FAILED overwrites that row
// in place (every column except id, idempotency_key and created_at,
// version bumped) rather than conflicting, since
// the processor gives a FAILED resubmission a fresh attempt; a row that
// has already reached COMPLETED is left
// untouched by the WHERE guard, and the processor never reaches this call
// for one since resolveExisting short-circuits COMPLETED rows before the
// locking section. A unique_violation on idempotency_key (not id) means a
// concurrent attempt for a different transactionId won the same key's
// race and committed first; the processor treats this as a transient
// retry back into the cached path (see spec §5's ordering guarantee for
// same-key requests).
func (s *Store) InsertTransaction(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	tag, err := tx.Exec(ctx,
		`INSERT INTO transactions (id, idempotency_key, from_account_id, to_account_id, amount, currency,
			type, status, failure_reason, created_at, completed_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
			from_account_id = EXCLUDED.from_account_id,
			to_account_id = EXCLUDED.to_account_id,
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			failure_reason = EXCLUDED.failure_reason,
			completed_at = EXCLUDED.completed_at,
			version = transactions.version + 1
		 WHERE transactions.status = 'FAILED'`,
		t.ID, t.IdempotencyKey, t.FromAccountID, t.ToAccountID, t.Amount.MinorUnits(), t.Currency,
		t.Type, t.Status, nullableString(t.FailureReason), t.CreatedAt, t.CompletedAt, t.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("InsertTransaction: %w", domain.ErrIdempotencyReservation)
		}
		return fmt.Errorf("InsertTransaction: %w", translatePgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("InsertTransaction: %w", domain.ErrSerializationConflict)
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
