package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/ledgerops/txnengine/internal/domain"
)

const idempotencyColumns = `id, idempotency_key, transaction_id, request_hash, response_body, created_at, expires_at`

func scanIdempotencyRecord(row pgx.Row) (*domain.IdempotencyRecord, error) {
	var r domain.IdempotencyRecord
	var body []byte
	if err := row.Scan(&r.ID, &r.IdempotencyKey, &r.TransactionID, &r.RequestHash, &body, &r.CreatedAt, &r.ExpiresAt); err != nil {
		return nil, err
	}
	r.ResponseBody = json.RawMessage(body)
	return &r, nil
}

// GetIdempotencyRecord returns the record for key regardless of whether
// it has expired — expiry is a policy decision the idempotency layer
// makes, not something the store adapter decides.
func (s *Store) GetIdempotencyRecord(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+idempotencyColumns+` FROM idempotency_records WHERE idempotency_key = $1`, key)
	r, err := scanIdempotencyRecord(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("GetIdempotencyRecord: %w", err)
	}
	return r, nil
}

// InsertIdempotencyRecord writes the key -> response binding inside the
// same transaction that produced the Transaction row. A unique_violation
// here means a concurrent admission beat this one to the commit.
func (s *Store) InsertIdempotencyRecord(ctx context.Context, tx pgx.Tx, r *domain.IdempotencyRecord) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO idempotency_records (id, idempotency_key, transaction_id, request_hash, response_body, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.IdempotencyKey, r.TransactionID, r.RequestHash, []byte(r.ResponseBody), r.CreatedAt, r.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("InsertIdempotencyRecord: %w", domain.ErrIdempotencyReservation)
		}
		return fmt.Errorf("InsertIdempotencyRecord: %w", translatePgError(err))
	}
	return nil
}
