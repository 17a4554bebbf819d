package bus_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerops/txnengine/internal/bus"
	"github.com/ledgerops/txnengine/internal/domain"
	busingress "github.com/ledgerops/txnengine/internal/ingress/bus"
	"github.com/ledgerops/txnengine/internal/idempotency"
	"github.com/ledgerops/txnengine/internal/processor"
	"github.com/ledgerops/txnengine/internal/store"
	"github.com/ledgerops/txnengine/internal/testutil"
)

// stubConsumer delivers a fixed set of messages to handle, once each, then
// blocks until ctx is cancelled, without requiring a channel/goroutine
// setup per test. Unlike bus.ChannelConsumer, it stops at the first
// handler error and returns it.
type stubConsumer struct {
	messages []bus.Message
}

func (c *stubConsumer) Consume(ctx context.Context, topic string, handle func(context.Context, bus.Message) error) error {
	for _, m := range c.messages {
		if err := handle(ctx, m); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []bus.Message
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, msg bus.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.sent))
	for _, m := range p.sent {
		keys = append(keys, m.Key)
	}
	return keys
}

func setupAdapter(t *testing.T, consumer bus.Consumer, dlq bus.Publisher) (*busingress.Adapter, *store.Store) {
	t.Helper()
	db := testutil.SetupTestStore(t)
	idem := idempotency.New(db, 24*time.Hour)
	proc := processor.New(db, idem, processor.DefaultRetryPolicy())
	adapter := busingress.New(proc, consumer, dlq, "transactions.ingress", "transactions.dlq")
	return adapter, db
}

func seedBusAccount(t *testing.T, db *store.Store, balance domain.Money) *domain.Account {
	t.Helper()
	now := time.Now()
	a := &domain.Account{
		ID: uuid.NewString(), Name: "fixture", Balance: balance, Currency: "USD",
		Status: domain.AccountStatusActive, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.CreateAccount(context.Background(), a))
	return a
}

func TestAdapter_MalformedMessageIsDeadLettered(t *testing.T) {
	msg := bus.Message{Key: "poison", Value: []byte("not json")}
	consumer := &stubConsumer{messages: []bus.Message{msg}}
	dlq := &recordingPublisher{}
	adapter, _ := setupAdapter(t, consumer, dlq)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = adapter.Run(ctx)

	assert.Contains(t, dlq.keys(), "poison")
}

func TestAdapter_HappyPathDoesNotDeadLetter(t *testing.T) {
	db := testutil.SetupTestStore(t)
	from := seedBusAccount(t, db, domain.MoneyFromMinorUnits(100_000))
	to := seedBusAccount(t, db, domain.MoneyFromMinorUnits(0))

	req := domain.TransferRequest{
		EventID:        uuid.NewString(),
		TransactionID:  uuid.NewString(),
		FromAccountID:  from.ID,
		ToAccountID:    to.ID,
		Amount:         domain.MoneyFromMinorUnits(500),
		Currency:       "USD",
		Type:           domain.TransactionTypeTransfer,
		Timestamp:      time.Now(),
		IdempotencyKey: uuid.NewString(),
	}
	value, err := json.Marshal(req)
	require.NoError(t, err)
	msg := bus.Message{Key: req.TransactionID, Value: value}

	consumer := &stubConsumer{messages: []bus.Message{msg}}
	dlq := &recordingPublisher{}
	idem := idempotency.New(db, 24*time.Hour)
	proc := processor.New(db, idem, processor.DefaultRetryPolicy())
	adapter := busingress.New(proc, consumer, dlq, "transactions.ingress", "transactions.dlq")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = adapter.Run(ctx)

	assert.Empty(t, dlq.keys())

	fromAfter, err := db.GetAccount(context.Background(), from.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MoneyFromMinorUnits(99_500), fromAfter.Balance)
}

func TestAdapter_TerminalRejectionIsDeadLettered(t *testing.T) {
	db := testutil.SetupTestStore(t)
	from := seedBusAccount(t, db, domain.MoneyFromMinorUnits(10_000))
	to := seedBusAccount(t, db, domain.MoneyFromMinorUnits(0))

	txnID := uuid.NewString()
	first := domain.TransferRequest{
		EventID: uuid.NewString(), TransactionID: txnID, FromAccountID: from.ID, ToAccountID: to.ID,
		Amount: domain.MoneyFromMinorUnits(500), Currency: "USD", Type: domain.TransactionTypeTransfer,
		Timestamp: time.Now(), IdempotencyKey: uuid.NewString(),
	}
	firstValue, err := json.Marshal(first)
	require.NoError(t, err)

	idem := idempotency.New(db, 24*time.Hour)
	proc := processor.New(db, idem, processor.DefaultRetryPolicy())
	_, err = proc.Process(context.Background(), first)
	require.NoError(t, err)

	reused := first
	reused.IdempotencyKey = uuid.NewString()
	reusedValue, err := json.Marshal(reused)
	require.NoError(t, err)
	_ = firstValue

	msg := bus.Message{Key: txnID, Value: reusedValue}
	consumer := &stubConsumer{messages: []bus.Message{msg}}
	dlq := &recordingPublisher{}
	adapter := busingress.New(proc, consumer, dlq, "transactions.ingress", "transactions.dlq")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = adapter.Run(ctx)

	assert.Contains(t, dlq.keys(), txnID)
}
