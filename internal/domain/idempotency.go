package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// IdempotencyRecord binds an idempotency key to the response produced for
// it, written in the same commit as the Transaction it describes. A
// record with an elapsed ExpiresAt is treated as absent by readers; it is
// never deleted synchronously (an external janitor may prune it).
type IdempotencyRecord struct {
	ID             string          `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	TransactionID  string          `json:"transaction_id"`
	RequestHash    string          `json:"request_hash"`
	ResponseBody   json.RawMessage `json:"response_body"`
	CreatedAt      time.Time       `json:"created_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

// RequestFingerprint hashes the fields of req that must stay identical
// across every resubmission under the same idempotency key. Peek compares
// this against the fingerprint stored alongside the cached response to
// detect a key reused with a different request body.
func RequestFingerprint(req TransferRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%s|%s",
		req.TransactionID, req.FromAccountID, req.ToAccountID,
		req.Amount.MinorUnits(), req.Currency, req.Type)
	return hex.EncodeToString(h.Sum(nil))
}

// Expired reports whether the record should be treated as absent at now.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// CachedResponse is what IdempotencyRecord.ResponseBody deserializes
// into: the committed Transaction from the first successful attempt.
type CachedResponse = TransferResponse
