// Package idempotency wraps the idempotency_records table with the
// two operations the processor composes into its critical section: a
// read-only peek for the short-circuit path, and a bind that commits
// the key -> response association alongside the transaction it guards.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ledgerops/txnengine/internal/domain"
	"github.com/ledgerops/txnengine/internal/store"
)

// Store mediates idempotency_records through the underlying store.Store,
// applying the expiry window the processor and ingress layers share.
type Store struct {
	db     *store.Store
	window time.Duration
}

// New returns a Store that treats records older than window as expired.
func New(db *store.Store, window time.Duration) *Store {
	return &Store{db: db, window: window}
}

// Peek looks up req's idempotency key outside any write transaction. A
// nil, nil result means no record exists or the existing one has
// expired; callers proceed to the write path in either case. A non-nil
// result is the cached response to replay verbatim. If a live record
// exists but was bound for a request whose fingerprint does not match
// req's, the key has been reused with a different body: this is a hard
// contract violation, returned as domain.ErrIdempotencyKeyMismatch
// rather than silently replaying a response that does not answer req.
func (s *Store) Peek(ctx context.Context, req domain.TransferRequest) (*domain.CachedResponse, error) {
	rec, err := s.db.GetIdempotencyRecord(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("idempotency.Peek: %w", err)
	}
	if rec == nil || rec.Expired(time.Now()) {
		return nil, nil
	}
	if rec.RequestHash != domain.RequestFingerprint(req) {
		return nil, domain.ErrIdempotencyKeyMismatch
	}
	var resp domain.CachedResponse
	if err := json.Unmarshal(rec.ResponseBody, &resp); err != nil {
		return nil, fmt.Errorf("idempotency.Peek: decode cached response: %w", err)
	}
	return &resp, nil
}

// Bind commits the key -> transactionID -> response association inside
// tx, the same transaction that inserted the terminal Transaction row,
// alongside the fingerprint of req that Peek checks future replays
// against. A unique_violation surfaces as domain.ErrIdempotencyReservation:
// a concurrent request for the same key already won and committed, and
// the caller should retry back into Peek to pick up its cached result.
func (s *Store) Bind(ctx context.Context, tx pgx.Tx, req domain.TransferRequest, resp *domain.TransferResponse) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("idempotency.Bind: encode response: %w", err)
	}
	now := time.Now()
	rec := &domain.IdempotencyRecord{
		ID:             uuid.NewString(),
		IdempotencyKey: req.IdempotencyKey,
		TransactionID:  req.TransactionID,
		RequestHash:    domain.RequestFingerprint(req),
		ResponseBody:   body,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.window),
	}
	if err := s.db.InsertIdempotencyRecord(ctx, tx, rec); err != nil {
		return fmt.Errorf("idempotency.Bind: %w", err)
	}
	return nil
}
