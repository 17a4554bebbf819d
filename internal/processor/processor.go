// Package processor implements the Transaction Processor: the single
// atomic critical section that admits a transfer request exactly once,
// moves money between two accounts under deterministic lock ordering,
// and leaves behind the Transaction, OutboxEvent, and IdempotencyRecord
// rows a successful attempt commits together.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ledgerops/txnengine/internal/domain"
	"github.com/ledgerops/txnengine/internal/idempotency"
	"github.com/ledgerops/txnengine/internal/logging"
	"github.com/ledgerops/txnengine/internal/metrics"
	"github.com/ledgerops/txnengine/internal/store"
)

// RetryPolicy configures the backoff applied to transient conflicts.
type RetryPolicy struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	MaxAttempts     uint64
}

// DefaultRetryPolicy matches the fixed shape named for the processor:
// 100ms initial, x5 multiplier, capped at 2s, at most 3 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 100 * time.Millisecond,
		Multiplier:      5,
		MaxInterval:     2 * time.Second,
		MaxAttempts:     3,
	}
}

// Processor is the transaction engine's single write path. It is safe
// for concurrent use; all serialization happens inside Postgres.
type Processor struct {
	db    *store.Store
	idem  *idempotency.Store
	retry RetryPolicy
}

// New wires a Processor over db and the idempotency layer built on it.
func New(db *store.Store, idem *idempotency.Store, retry RetryPolicy) *Processor {
	return &Processor{db: db, idem: idem, retry: retry}
}

// Process admits req exactly once. On the first attempt for a given
// idempotency key it runs the full locking transaction below; on a
// replay it short-circuits to the cached response. The returned
// *domain.TransferResponse always reflects a terminal (COMPLETED or
// FAILED) row, never a transient error masking one.
func (p *Processor) Process(ctx context.Context, req domain.TransferRequest) (*domain.TransferResponse, error) {
	log := logging.FromContext(ctx)
	timer := prometheus.NewTimer(metrics.ProcessorDuration)
	defer timer.ObserveDuration()

	if cached, err := p.idem.Peek(ctx, req); err != nil {
		if errors.Is(err, domain.ErrIdempotencyKeyMismatch) {
			metrics.ProcessorAttemptsTotal.WithLabelValues("rejected").Inc()
		}
		return nil, fmt.Errorf("processor.Process: peek: %w", err)
	} else if cached != nil {
		metrics.ProcessorAttemptsTotal.WithLabelValues("replayed").Inc()
		return cached, nil
	}

	bo := p.newBackoff()
	var resp *domain.TransferResponse
	op := func() error {
		r, err := p.attempt(ctx, req)
		if err != nil {
			if domain.IsRetryable(err) {
				metrics.ProcessorAttemptsTotal.WithLabelValues("retried").Inc()
				metrics.ProcessorRetriesTotal.Inc()
				log.WarnContext(ctx, "processor: retrying transient conflict", "idempotency_key", req.IdempotencyKey, "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			metrics.ProcessorAttemptsTotal.WithLabelValues("rejected").Inc()
			return nil, perm.Unwrap()
		}
		// Retries exhausted on a transient conflict: the losing side of an
		// idempotency race resolves by re-peeking the now-committed record.
		if domain.IsRetryable(err) {
			if cached, peekErr := p.idem.Peek(ctx, req); peekErr == nil && cached != nil {
				metrics.ProcessorAttemptsTotal.WithLabelValues("replayed").Inc()
				return cached, nil
			} else if errors.Is(peekErr, domain.ErrIdempotencyKeyMismatch) {
				metrics.ProcessorAttemptsTotal.WithLabelValues("rejected").Inc()
				return nil, peekErr
			}
		}
		metrics.ProcessorAttemptsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("processor.Process: %w", err)
	}
	if resp.Status == domain.TransactionStatusFailed {
		metrics.ProcessorAttemptsTotal.WithLabelValues("failed").Inc()
	} else {
		metrics.ProcessorAttemptsTotal.WithLabelValues("completed").Inc()
	}
	return resp, nil
}

func (p *Processor) newBackoff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.retry.InitialInterval
	eb.Multiplier = p.retry.Multiplier
	eb.MaxInterval = p.retry.MaxInterval
	if p.retry.MaxAttempts <= 1 {
		return &backoff.StopBackOff{}
	}
	// WithMaxRetries counts retries after the first call, not attempts.
	return backoff.WithMaxRetries(eb, p.retry.MaxAttempts-1)
}

// attempt runs one full pass of the write-locking critical section. A
// returned error is either a terminal business/contract rejection or one
// of the transient classes domain.IsRetryable reports, which the caller
// retries.
func (p *Processor) attempt(ctx context.Context, req domain.TransferRequest) (*domain.TransferResponse, error) {
	var resp *domain.TransferResponse

	err := p.db.WithTx(ctx, pgx.Serializable, func(ctx context.Context, tx pgx.Tx) error {
		if existing, err := p.resolveExisting(ctx, tx, req); err != nil {
			return err
		} else if existing != nil {
			r := existing.ToResponse()
			resp = &r
			return nil
		}

		if req.FromAccountID == req.ToAccountID {
			txn := newTransaction(req)
			txn.Status = domain.TransactionStatusFailed
			txn.FailureReason = domain.ErrSelfTransfer.Error()
			now := time.Now()
			txn.CompletedAt = &now
			if err := p.db.InsertTransaction(ctx, tx, txn); err != nil {
				return err
			}
			r := txn.ToResponse()
			resp = &r
			return nil
		}

		fromID, toID := req.FromAccountID, req.ToAccountID
		lockLo, lockHi := fromID, toID
		if lockLo > lockHi {
			lockLo, lockHi = lockHi, lockLo
		}

		acctLo, err := p.db.LockAccountForUpdate(ctx, tx, lockLo)
		if err != nil {
			return err
		}
		acctHi, err := p.db.LockAccountForUpdate(ctx, tx, lockHi)
		if err != nil {
			return err
		}

		from, to := acctLo, acctHi
		if fromID != lockLo {
			from, to = acctHi, acctLo
		}

		txn := newTransaction(req)

		if failure := validateBusinessRules(req, from, to); failure != "" {
			txn.Status = domain.TransactionStatusFailed
			txn.FailureReason = failure
			now := time.Now()
			txn.CompletedAt = &now
			if err := p.db.InsertTransaction(ctx, tx, txn); err != nil {
				return err
			}
			r := txn.ToResponse()
			resp = &r
			return nil
		}

		newFromBalance := from.Balance.Sub(req.Amount)
		newToBalance := to.Balance.Add(req.Amount)

		if err := p.db.UpdateAccountBalance(ctx, tx, from.ID, newFromBalance, from.Version); err != nil {
			return err
		}
		if err := p.db.UpdateAccountBalance(ctx, tx, to.ID, newToBalance, to.Version); err != nil {
			return err
		}

		txn.Status = domain.TransactionStatusCompleted
		now := time.Now()
		txn.CompletedAt = &now
		if err := p.db.InsertTransaction(ctx, tx, txn); err != nil {
			return err
		}

		r := txn.ToResponse()

		event, err := newOutboxEvent(txn, &r)
		if err != nil {
			return err
		}
		if err := p.db.InsertOutboxEvent(ctx, tx, event); err != nil {
			return err
		}

		if err := p.idem.Bind(ctx, tx, req, &r); err != nil {
			return err
		}

		resp = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// resolveExisting looks up req.TransactionID inside the write
// transaction. A row under a different idempotency key is a caller
// contract violation (ErrTransactionIDConflict, never retried). A
// COMPLETED row under the same key is returned so attempt can
// short-circuit to it without redoing any locking or validation work —
// money already moved and must never move twice. A FAILED row under the
// same key is deliberately NOT returned here: the spec's resubmission
// contract gives a business-rejected attempt a fresh try (the caller may
// have topped up a balance or reactivated an account since), so nil, nil
// sends the caller through the normal locking/validation path, and
// InsertTransaction's upsert overwrites the stale FAILED row in place.
func (p *Processor) resolveExisting(ctx context.Context, tx pgx.Tx, req domain.TransferRequest) (*domain.Transaction, error) {
	existing, err := p.db.GetTransactionTx(ctx, tx, req.TransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if existing.IdempotencyKey != req.IdempotencyKey {
		return nil, domain.ErrTransactionIDConflict
	}
	if existing.Status == domain.TransactionStatusCompleted {
		return existing, nil
	}
	return nil, nil
}

func newTransaction(req domain.TransferRequest) *domain.Transaction {
	return &domain.Transaction{
		ID:             req.TransactionID,
		IdempotencyKey: req.IdempotencyKey,
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Type:           req.Type,
		Status:         domain.TransactionStatusProcessing,
		CreatedAt:      time.Now(),
		Version:        0,
	}
}

// validateBusinessRules returns a non-empty failure reason if req cannot
// be executed against the locked account snapshots, or "" if it can.
// Self-transfer is rejected earlier, before any lock is acquired, so it
// is never one of the cases checked here.
func validateBusinessRules(req domain.TransferRequest, from, to *domain.Account) string {
	switch {
	case !from.IsActive():
		return domain.ErrAccountNotActive.Error()
	case !to.IsActive():
		return domain.ErrAccountNotActive.Error()
	case from.Currency != req.Currency || to.Currency != req.Currency:
		return domain.ErrCurrencyMismatch.Error()
	case !req.Amount.IsPositive():
		return domain.ErrInvalidAmount.Error()
	case from.Balance.LessThan(req.Amount):
		return domain.ErrInsufficientFunds.Error()
	default:
		return ""
	}
}

func newOutboxEvent(txn *domain.Transaction, resp *domain.TransferResponse) (*domain.OutboxEvent, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("newOutboxEvent: %w", err)
	}
	return &domain.OutboxEvent{
		ID:          uuid.NewString(),
		EventType:   domain.TransactionCompletedEventType,
		AggregateID: txn.ID,
		Payload:     payload,
		Status:      domain.OutboxEventStatusPending,
		CreatedAt:   time.Now(),
		RetryCount:  0,
	}, nil
}
