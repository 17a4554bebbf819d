package bus_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerops/txnengine/internal/bus"
)

func TestChannelConsumer_DeliversMessagesUntilContextCancelled(t *testing.T) {
	ch := make(chan bus.Message, 2)
	ch <- bus.Message{Key: "a", Value: []byte("1")}
	ch <- bus.Message{Key: "b", Value: []byte("2")}

	consumer := bus.NewChannelConsumer(ch)

	var mu sync.Mutex
	var gotKeys []string

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := consumer.Consume(ctx, "test-topic", func(ctx context.Context, msg bus.Message) error {
		mu.Lock()
		gotKeys = append(gotKeys, msg.Key)
		mu.Unlock()
		return nil
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b"}, gotKeys)
}

func TestChannelConsumer_HandlerErrorDoesNotStopConsumption(t *testing.T) {
	ch := make(chan bus.Message, 2)
	ch <- bus.Message{Key: "a", Value: []byte("1")}
	ch <- bus.Message{Key: "b", Value: []byte("2")}

	consumer := bus.NewChannelConsumer(ch)

	var count int
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_ = consumer.Consume(ctx, "test-topic", func(ctx context.Context, msg bus.Message) error {
		count++
		if msg.Key == "a" {
			return errors.New("handler failed")
		}
		return nil
	})

	assert.Equal(t, 2, count)
}
