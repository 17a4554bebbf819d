package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerops/txnengine/internal/domain"
	"github.com/ledgerops/txnengine/internal/idempotency"
	"github.com/ledgerops/txnengine/internal/testutil"
)

func TestPeek_ReturnsNilWhenAbsent(t *testing.T) {
	db := testutil.SetupTestStore(t)
	idem := idempotency.New(db, 24*time.Hour)

	req := domain.TransferRequest{
		TransactionID:  uuid.NewString(),
		IdempotencyKey: uuid.NewString(),
		FromAccountID:  uuid.NewString(),
		ToAccountID:    uuid.NewString(),
		Amount:         domain.MoneyFromMinorUnits(100),
		Currency:       "USD",
		Type:           domain.TransactionTypeTransfer,
	}
	cached, err := idem.Peek(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestBindThenPeek_RoundTrips(t *testing.T) {
	db := testutil.SetupTestStore(t)
	idem := idempotency.New(db, 24*time.Hour)
	ctx := context.Background()

	now := time.Now()
	account := &domain.Account{
		ID: uuid.NewString(), Name: "acct", Balance: domain.MoneyFromMinorUnits(1000),
		Currency: "USD", Status: domain.AccountStatusActive, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.CreateAccount(ctx, account))

	key := uuid.NewString()
	txnID := uuid.NewString()
	req := domain.TransferRequest{
		TransactionID:  txnID,
		IdempotencyKey: key,
		FromAccountID:  account.ID,
		ToAccountID:    account.ID,
		Amount:         domain.MoneyFromMinorUnits(100),
		Currency:       "USD",
		Type:           domain.TransactionTypeTransfer,
	}
	resp := &domain.TransferResponse{
		TransactionID:  txnID,
		IdempotencyKey: key,
		FromAccountID:  account.ID,
		ToAccountID:    account.ID,
		Amount:         req.Amount,
		Currency:       "USD",
		Type:           domain.TransactionTypeTransfer,
		Status:         domain.TransactionStatusCompleted,
		CreatedAt:      now,
	}

	require.NoError(t, db.WithTx(ctx, pgx.ReadCommitted, func(ctx context.Context, tx pgx.Tx) error {
		txn := &domain.Transaction{
			ID: txnID, IdempotencyKey: key, FromAccountID: account.ID, ToAccountID: account.ID,
			Amount: resp.Amount, Currency: "USD", Type: domain.TransactionTypeTransfer,
			Status: domain.TransactionStatusCompleted, CreatedAt: now,
		}
		if err := db.InsertTransaction(ctx, tx, txn); err != nil {
			return err
		}
		return idem.Bind(ctx, tx, req, resp)
	}))

	cached, err := idem.Peek(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, txnID, cached.TransactionID)
	assert.Equal(t, domain.TransactionStatusCompleted, cached.Status)
}

func TestPeek_DifferentPayloadUnderSameKeyReturnsMismatch(t *testing.T) {
	db := testutil.SetupTestStore(t)
	idem := idempotency.New(db, 24*time.Hour)
	ctx := context.Background()

	now := time.Now()
	account := &domain.Account{
		ID: uuid.NewString(), Name: "acct", Balance: domain.MoneyFromMinorUnits(1000),
		Currency: "USD", Status: domain.AccountStatusActive, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.CreateAccount(ctx, account))

	key := uuid.NewString()
	txnID := uuid.NewString()
	req := domain.TransferRequest{
		TransactionID:  txnID,
		IdempotencyKey: key,
		FromAccountID:  account.ID,
		ToAccountID:    account.ID,
		Amount:         domain.MoneyFromMinorUnits(100),
		Currency:       "USD",
		Type:           domain.TransactionTypeTransfer,
	}
	resp := &domain.TransferResponse{
		TransactionID: txnID, IdempotencyKey: key, FromAccountID: account.ID, ToAccountID: account.ID,
		Amount: req.Amount, Currency: "USD", Type: domain.TransactionTypeTransfer,
		Status: domain.TransactionStatusCompleted, CreatedAt: now,
	}

	require.NoError(t, db.WithTx(ctx, pgx.ReadCommitted, func(ctx context.Context, tx pgx.Tx) error {
		txn := &domain.Transaction{
			ID: txnID, IdempotencyKey: key, FromAccountID: account.ID, ToAccountID: account.ID,
			Amount: resp.Amount, Currency: "USD", Type: domain.TransactionTypeTransfer,
			Status: domain.TransactionStatusCompleted, CreatedAt: now,
		}
		if err := db.InsertTransaction(ctx, tx, txn); err != nil {
			return err
		}
		return idem.Bind(ctx, tx, req, resp)
	}))

	resubmission := req
	resubmission.Amount = domain.MoneyFromMinorUnits(999)

	_, err := idem.Peek(ctx, resubmission)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyMismatch)
}

func TestBind_DuplicateKeySurfacesReservationError(t *testing.T) {
	db := testutil.SetupTestStore(t)
	idem := idempotency.New(db, 24*time.Hour)
	ctx := context.Background()

	now := time.Now()
	account := &domain.Account{
		ID: uuid.NewString(), Name: "acct", Balance: domain.MoneyFromMinorUnits(1000),
		Currency: "USD", Status: domain.AccountStatusActive, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.CreateAccount(ctx, account))

	key := uuid.NewString()
	resp := &domain.TransferResponse{TransactionID: uuid.NewString(), IdempotencyKey: key, Status: domain.TransactionStatusCompleted}

	bind := func(txnID string) error {
		req := domain.TransferRequest{
			TransactionID: txnID, IdempotencyKey: key, FromAccountID: account.ID, ToAccountID: account.ID,
			Amount: domain.MoneyFromMinorUnits(1), Currency: "USD", Type: domain.TransactionTypeTransfer,
		}
		return db.WithTx(ctx, pgx.ReadCommitted, func(ctx context.Context, tx pgx.Tx) error {
			// The transactions row gets its own key so that the duplicate is
			// caught by Bind on idempotency_records, not by InsertTransaction.
			txn := &domain.Transaction{
				ID: txnID, IdempotencyKey: uuid.NewString(), FromAccountID: account.ID, ToAccountID: account.ID,
				Amount: domain.MoneyFromMinorUnits(1), Currency: "USD", Type: domain.TransactionTypeTransfer,
				Status: domain.TransactionStatusCompleted, CreatedAt: now,
			}
			if err := db.InsertTransaction(ctx, tx, txn); err != nil {
				return err
			}
			return idem.Bind(ctx, tx, req, resp)
		})
	}

	require.NoError(t, bind(resp.TransactionID))
	err := bind(uuid.NewString())
	require.ErrorIs(t, err, domain.ErrIdempotencyReservation)
}
