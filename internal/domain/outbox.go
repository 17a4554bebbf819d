package domain

import "time"

// OutboxEventStatus is the delivery state of an OutboxEvent.
type OutboxEventStatus string

const (
	OutboxEventStatusPending   OutboxEventStatus = "PENDING"
	OutboxEventStatusPublished OutboxEventStatus = "PUBLISHED"
	OutboxEventStatusFailed    OutboxEventStatus = "FAILED"
)

// TransactionCompletedEventType is the event type published when a
// transfer reaches COMPLETED. A FAILED transaction never gets an outbox
// row: money never moved, so there is nothing for a downstream consumer
// to react to.
const TransactionCompletedEventType = "TRANSACTION_COMPLETED"

// OutboxEvent is a store-resident queue row committed atomically with the
// Transaction it describes. Created PENDING in the same commit as its
// Transaction; mutated only by the relay.
type OutboxEvent struct {
	ID           string            `json:"id"`
	EventType    string            `json:"event_type"`
	AggregateID  string            `json:"aggregate_id"`
	Payload      []byte            `json:"payload"`
	Status       OutboxEventStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	PublishedAt  *time.Time        `json:"published_at,omitempty"`
	RetryCount   int               `json:"retry_count"`
	ErrorMessage string            `json:"error_message,omitempty"`
}
