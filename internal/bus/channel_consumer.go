package bus

import (
	"context"
	"fmt"

	"github.com/ledgerops/txnengine/internal/logging"
)

// ChannelConsumer adapts an in-process channel of Messages to the
// Consumer interface. It can stand in for a real broker's consumer client
// under the bus ingress adapter; no command in this repository wires the
// two together. Swapping in a client for an actual message bus means
// implementing Consumer against its delivery loop instead, with no
// change to the ingress adapter above it.
type ChannelConsumer struct {
	messages <-chan Message
}

// NewChannelConsumer wraps messages as a Consumer. The producer side
// (whatever feeds messages) is out of this package's scope.
func NewChannelConsumer(messages <-chan Message) *ChannelConsumer {
	return &ChannelConsumer{messages: messages}
}

// Consume drains messages until ctx is cancelled or the channel closes,
// invoking handle for each. A handler error is logged and the message
// is dropped: this consumer has neither redelivery nor a DLQ of its own,
// so a message whose handler returns an error is not delivered again.
func (c *ChannelConsumer) Consume(ctx context.Context, topic string, handle func(context.Context, Message) error) error {
	log := logging.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.messages:
			if !ok {
				return fmt.Errorf("bus.ChannelConsumer: channel closed for topic %s", topic)
			}
			if err := handle(ctx, msg); err != nil {
				log.ErrorContext(ctx, "channel consumer: handler failed", "topic", topic, "key", msg.Key, "error", err)
			}
		}
	}
}
