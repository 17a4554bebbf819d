// Package relay implements the Outbox Relay: a ticker-driven background
// worker that drains PENDING outbox_events rows and publishes each
// through a bus.Publisher, giving the system its at-least-once
// downstream notification guarantee independent of the Transaction
// Processor's own commits.
package relay

import (
	"context"
	"time"

	"github.com/ledgerops/txnengine/internal/bus"
	"github.com/ledgerops/txnengine/internal/domain"
	"github.com/ledgerops/txnengine/internal/logging"
	"github.com/ledgerops/txnengine/internal/metrics"
	"github.com/ledgerops/txnengine/internal/store"
)

// Config controls the relay's poll cadence, batch size, topic, and
// terminal retry ceiling.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	Topic        string
	MaxRetries   int
	// WorkerID identifies this relay instance in log lines only. Polling
	// is not partitioned by it: every instance fetches from the same set
	// of PENDING rows.
	WorkerID string
}

// Relay polls the store for PENDING outbox events and publishes them.
type Relay struct {
	db        *store.Store
	publisher bus.Publisher
	cfg       Config
}

// New wires a Relay over db, publishing through publisher.
func New(db *store.Store, publisher bus.Publisher, cfg Config) *Relay {
	return &Relay{db: db, publisher: publisher, cfg: cfg}
}

// Start runs the poll loop until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.InfoContext(ctx, "outbox relay started", "worker_id", r.cfg.WorkerID, "poll_interval", r.cfg.PollInterval, "batch_size", r.cfg.BatchSize)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.InfoContext(ctx, "outbox relay stopped", "worker_id", r.cfg.WorkerID)
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

// poll fetches one batch and publishes it; errors on an individual event
// are logged and move that event to retry or terminal failure, never
// abort the rest of the batch.
func (r *Relay) poll(ctx context.Context) {
	log := logging.FromContext(ctx)

	events, err := r.db.FetchPendingOutboxEvents(ctx, r.cfg.BatchSize)
	if err != nil {
		log.ErrorContext(ctx, "outbox relay: fetch pending failed", "error", err)
		return
	}
	metrics.OutboxPendingGauge.Set(float64(len(events)))

	for _, event := range events {
		if err := r.publishOne(ctx, event); err != nil {
			log.ErrorContext(ctx, "outbox relay: publish failed", "outbox_event_id", event.ID, "retry_count", event.RetryCount, "error", err)
		}
	}
}

func (r *Relay) publishOne(ctx context.Context, event *domain.OutboxEvent) error {
	msg := bus.Message{Key: event.AggregateID, Value: event.Payload}

	err := r.publisher.Publish(ctx, r.cfg.Topic, msg)
	if err == nil {
		metrics.OutboxPublishedTotal.Inc()
		return r.db.MarkOutboxPublished(ctx, event.ID, time.Now())
	}

	if event.RetryCount+1 >= r.cfg.MaxRetries {
		metrics.OutboxFailedTotal.Inc()
		if markErr := r.db.MarkOutboxFailed(ctx, event.ID, err.Error()); markErr != nil {
			return markErr
		}
		return err
	}
	if markErr := r.db.MarkOutboxRetry(ctx, event.ID, err.Error()); markErr != nil {
		return markErr
	}
	return err
}
