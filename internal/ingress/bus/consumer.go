// Package bus is the message-bus ingress adapter: it normalizes each
// delivered bus.Message into a domain.TransferRequest and calls the
// processor identically to the HTTP adapter, acking only on a durable
// outcome and routing malformed or rejected messages to the configured
// dead-letter topic instead of retrying them forever.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ledgerops/txnengine/internal/bus"
	"github.com/ledgerops/txnengine/internal/domain"
	"github.com/ledgerops/txnengine/internal/logging"
	"github.com/ledgerops/txnengine/internal/processor"
)

// Adapter consumes ingress transfer requests off a bus.Consumer.
type Adapter struct {
	proc     *processor.Processor
	consumer bus.Consumer
	dlq      bus.Publisher
	topic    string
	dlqTopic string
}

// New wires an Adapter that reads topic via consumer and calls proc for
// each message, routing poison or rejected messages to dlq/dlqTopic.
func New(proc *processor.Processor, consumer bus.Consumer, dlq bus.Publisher, topic, dlqTopic string) *Adapter {
	return &Adapter{proc: proc, consumer: consumer, dlq: dlq, topic: topic, dlqTopic: dlqTopic}
}

// Run blocks, consuming topic until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context) error {
	return a.consumer.Consume(ctx, a.topic, a.handle)
}

// handle decodes msg, calls the processor, and decides whether the
// outcome is durable (ack, return nil) or a poison/contract-rejected
// message that belongs on the dead-letter topic (ack after routing, also
// return nil — never retried by the consumer since DLQ routing already
// recorded the terminal outcome). A non-nil return means the consumer
// should treat delivery as not-yet-durable and may redeliver.
func (a *Adapter) handle(ctx context.Context, msg bus.Message) error {
	log := logging.FromContext(ctx)

	var req domain.TransferRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return a.deadLetter(ctx, msg, fmt.Sprintf("malformed message: %v", err))
	}
	if err := req.ValidateShape(); err != nil {
		return a.deadLetter(ctx, msg, err.Error())
	}

	resp, err := a.proc.Process(ctx, req)
	if err != nil {
		if isTerminalRejection(err) {
			return a.deadLetter(ctx, msg, err.Error())
		}
		log.ErrorContext(ctx, "bus ingress: transient processor error, will redeliver", "transaction_id", req.TransactionID, "error", err)
		return err
	}

	if resp.Status == domain.TransactionStatusFailed {
		log.InfoContext(ctx, "bus ingress: transaction failed business validation", "transaction_id", resp.TransactionID, "reason", resp.FailureReason)
	}
	return nil
}

// isTerminalRejection reports whether err is a caller-contract violation
// that will never succeed on redelivery, as opposed to a transient
// conflict the processor's own retry loop already exhausted.
func isTerminalRejection(err error) bool {
	return errors.Is(err, domain.ErrTransactionIDConflict) ||
		errors.Is(err, domain.ErrIdempotencyKeyMismatch) ||
		errors.Is(err, domain.ErrInvalidTransferRequest) ||
		errors.Is(err, domain.ErrInvalidAmount)
}

func (a *Adapter) deadLetter(ctx context.Context, msg bus.Message, reason string) error {
	log := logging.FromContext(ctx)
	log.WarnContext(ctx, "bus ingress: routing message to dead letter topic", "key", msg.Key, "reason", reason)
	if err := a.dlq.Publish(ctx, a.dlqTopic, msg); err != nil {
		return fmt.Errorf("deadLetter: publish: %w", err)
	}
	return nil
}
