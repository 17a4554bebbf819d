package domain

import "time"

// TransactionType classifies the intent behind a transfer.
type TransactionType string

const (
	TransactionTypePayment    TransactionType = "PAYMENT"
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypeRefund     TransactionType = "REFUND"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

// TransactionStatus is the terminal-or-not state of a Transaction. Once a
// row reaches COMPLETED it is never mutated again; a FAILED row is
// overwritten in place when the same transactionId and idempotency key
// are resubmitted.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusCompleted  TransactionStatus = "COMPLETED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
	TransactionStatusCancelled  TransactionStatus = "CANCELLED"
)

// Transaction is the durable record of one admitted transfer request. It
// is created exactly once per idempotency key, and its terminal status is
// set in the same commit that creates it (or, for a resubmission of a
// FAILED row, in the commit that overwrites it).
type Transaction struct {
	ID             string            `json:"transaction_id"`
	IdempotencyKey string            `json:"idempotency_key"`
	FromAccountID  string            `json:"from_account_id"`
	ToAccountID    string            `json:"to_account_id"`
	Amount         Money             `json:"amount"`
	Currency       string            `json:"currency"`
	Type           TransactionType   `json:"type"`
	Status         TransactionStatus `json:"status"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	Version        int64             `json:"-"`
}

// TransferRequest is the normalized ingress shape. Both the HTTP adapter
// and the bus consumer adapter deserialize into this before calling the
// processor, so the processor never sees transport-specific framing.
type TransferRequest struct {
	EventID        string          `json:"eventId"`
	TransactionID  string          `json:"transactionId"`
	FromAccountID  string          `json:"fromAccountId"`
	ToAccountID    string          `json:"toAccountId"`
	Amount         Money           `json:"amount"`
	Currency       string          `json:"currency"`
	Type           TransactionType `json:"type"`
	Timestamp      time.Time       `json:"timestamp"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// TransferResponse is the JSON shape returned to ingress callers and
// published (unchanged) as the downstream ledger event payload.
type TransferResponse struct {
	TransactionID  string            `json:"transactionId"`
	IdempotencyKey string            `json:"idempotencyKey"`
	FromAccountID  string            `json:"fromAccountId"`
	ToAccountID    string            `json:"toAccountId"`
	Amount         Money             `json:"amount"`
	Currency       string            `json:"currency"`
	Type           TransactionType   `json:"type"`
	Status         TransactionStatus `json:"status"`
	FailureReason  string            `json:"failureReason,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
}

// ToResponse renders the canonical ingress response / ledger event
// payload for this transaction.
func (t *Transaction) ToResponse() TransferResponse {
	return TransferResponse{
		TransactionID:  t.ID,
		IdempotencyKey: t.IdempotencyKey,
		FromAccountID:  t.FromAccountID,
		ToAccountID:    t.ToAccountID,
		Amount:         t.Amount,
		Currency:       t.Currency,
		Type:           t.Type,
		Status:         t.Status,
		FailureReason:  t.FailureReason,
		CreatedAt:      t.CreatedAt,
		CompletedAt:    t.CompletedAt,
	}
}
