package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerops/txnengine/internal/domain"
)

func baseRequest() domain.TransferRequest {
	return domain.TransferRequest{
		EventID:        "evt-1",
		TransactionID:  "txn-1",
		FromAccountID:  "acct-a",
		ToAccountID:    "acct-b",
		Amount:         domain.MoneyFromMinorUnits(100),
		Currency:       "USD",
		Type:           domain.TransactionTypeTransfer,
		Timestamp:      time.Now(),
		IdempotencyKey: "key-1",
	}
}

func TestValidateShape_AcceptsWellFormedRequest(t *testing.T) {
	req := baseRequest()
	require.NoError(t, req.ValidateShape())
}

func TestValidateShape_RejectsMissingAccounts(t *testing.T) {
	req := baseRequest()
	req.FromAccountID = ""
	err := req.ValidateShape()
	require.ErrorIs(t, err, domain.ErrInvalidTransferRequest)
}

func TestValidateShape_RejectsMissingIdempotencyKey(t *testing.T) {
	req := baseRequest()
	req.IdempotencyKey = ""
	require.ErrorIs(t, req.ValidateShape(), domain.ErrInvalidTransferRequest)
}

func TestValidateShape_RejectsMissingTransactionID(t *testing.T) {
	req := baseRequest()
	req.TransactionID = ""
	require.ErrorIs(t, req.ValidateShape(), domain.ErrInvalidTransferRequest)
}

func TestValidateShape_RejectsNonPositiveAmount(t *testing.T) {
	req := baseRequest()
	req.Amount = domain.MoneyFromMinorUnits(0)
	require.ErrorIs(t, req.ValidateShape(), domain.ErrInvalidAmount)

	req.Amount = domain.MoneyFromMinorUnits(-100)
	require.ErrorIs(t, req.ValidateShape(), domain.ErrInvalidAmount)
}

func TestValidateShape_RejectsBadCurrencyTag(t *testing.T) {
	req := baseRequest()
	req.Currency = "US"
	require.ErrorIs(t, req.ValidateShape(), domain.ErrInvalidTransferRequest)
}

func TestValidateShape_RejectsUnknownType(t *testing.T) {
	req := baseRequest()
	req.Type = "BOGUS"
	require.ErrorIs(t, req.ValidateShape(), domain.ErrInvalidTransferRequest)
}

func TestAccount_IsActive(t *testing.T) {
	active := &domain.Account{Status: domain.AccountStatusActive}
	suspended := &domain.Account{Status: domain.AccountStatusSuspended}
	closed := &domain.Account{Status: domain.AccountStatusClosed}

	assert.True(t, active.IsActive())
	assert.False(t, suspended.IsActive())
	assert.False(t, closed.IsActive())
}

func TestTransaction_ToResponse(t *testing.T) {
	now := time.Now()
	txn := &domain.Transaction{
		ID: "txn-1", IdempotencyKey: "key-1", FromAccountID: "a", ToAccountID: "b",
		Amount: domain.MoneyFromMinorUnits(2500), Currency: "USD", Type: domain.TransactionTypeTransfer,
		Status: domain.TransactionStatusCompleted, CreatedAt: now,
	}

	resp := txn.ToResponse()
	assert.Equal(t, txn.ID, resp.TransactionID)
	assert.Equal(t, txn.IdempotencyKey, resp.IdempotencyKey)
	assert.Equal(t, txn.Amount, resp.Amount)
	assert.Equal(t, domain.TransactionStatusCompleted, resp.Status)
	assert.Empty(t, resp.FailureReason)
}

func TestIdempotencyRecord_Expired(t *testing.T) {
	now := time.Now()
	rec := &domain.IdempotencyRecord{ExpiresAt: now.Add(-time.Second)}
	assert.True(t, rec.Expired(now))

	rec.ExpiresAt = now.Add(time.Second)
	assert.False(t, rec.Expired(now))
}
