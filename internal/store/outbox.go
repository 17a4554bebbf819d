package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ledgerops/txnengine/internal/domain"
)

const outboxColumns = `id, event_type, aggregate_id, payload, status, created_at, published_at, retry_count, error_message`

func scanOutboxEvent(row pgx.Row) (*domain.OutboxEvent, error) {
	var e domain.OutboxEvent
	var errMsg *string
	if err := row.Scan(&e.ID, &e.EventType, &e.AggregateID, &e.Payload, &e.Status, &e.CreatedAt, &e.PublishedAt, &e.RetryCount, &errMsg); err != nil {
		return nil, err
	}
	if errMsg != nil {
		e.ErrorMessage = *errMsg
	}
	return &e, nil
}

// InsertOutboxEvent writes a PENDING event in the same commit as the
// Transaction and IdempotencyRecord it accompanies.
func (s *Store) InsertOutboxEvent(ctx context.Context, tx pgx.Tx, e *domain.OutboxEvent) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO outbox_events (id, event_type, aggregate_id, payload, status, created_at, published_at, retry_count, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.EventType, e.AggregateID, e.Payload, e.Status, e.CreatedAt, e.PublishedAt, e.RetryCount, nullableString(e.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("InsertOutboxEvent: %w", translatePgError(err))
	}
	return nil
}

// FetchPendingOutboxEvents returns up to limit PENDING rows ordered
// (status, created_at) — the FIFO drain order the relay publishes in.
func (s *Store) FetchPendingOutboxEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+outboxColumns+` FROM outbox_events
		 WHERE status = $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		domain.OutboxEventStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("FetchPendingOutboxEvents: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		e, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("FetchPendingOutboxEvents: scan: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FetchPendingOutboxEvents: rows: %w", err)
	}
	return events, nil
}

// MarkOutboxPublished records a successful publish.
func (s *Store) MarkOutboxPublished(ctx context.Context, id string, publishedAt time.Time) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE outbox_events SET status = $1, published_at = $2 WHERE id = $3`,
		domain.OutboxEventStatusPublished, publishedAt, id,
	)
	if err != nil {
		return fmt.Errorf("MarkOutboxPublished: %w", err)
	}
	return nil
}

// MarkOutboxRetry increments the retry counter and records the error
// after a transient publish failure, leaving the event PENDING so the
// next poll retries it.
func (s *Store) MarkOutboxRetry(ctx context.Context, id string, errMsg string) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE outbox_events SET retry_count = retry_count + 1, error_message = $1 WHERE id = $2`,
		errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("MarkOutboxRetry: %w", err)
	}
	return nil
}

// MarkOutboxFailed moves an event to the terminal FAILED state once its
// count of failed publishes reaches the configured retry ceiling; it
// requires operator intervention from that point on.
func (s *Store) MarkOutboxFailed(ctx context.Context, id string, errMsg string) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE outbox_events SET status = $1, retry_count = retry_count + 1, error_message = $2 WHERE id = $3`,
		domain.OutboxEventStatusFailed, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("MarkOutboxFailed: %w", err)
	}
	return nil
}
