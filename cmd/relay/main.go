// Command relay runs the outbox relay as a standalone process, for
// operators who want to scale it independently of the HTTP tier rather
// than rely on the copy embedded in cmd/api.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerops/txnengine/internal/bus"
	"github.com/ledgerops/txnengine/internal/config"
	"github.com/ledgerops/txnengine/internal/logging"
	"github.com/ledgerops/txnengine/internal/relay"
	"github.com/ledgerops/txnengine/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error running relay: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.Init("relay", cfg.LogLevel, cfg.AppEnv)
	ctx = logging.WithLogger(ctx, log)

	workerID := os.Getenv("HOSTNAME")
	if workerID == "" {
		workerID = "relay-standalone"
	}

	db, err := store.New(ctx, cfg.DatabaseURL, cfg.DBRelayReservedConn, 1)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	publisher := bus.NewWebhookPublisher(cfg.LedgerWebhookURL)
	r := relay.New(db, publisher, relay.Config{
		PollInterval: time.Duration(cfg.OutboxPollingIntervalMS) * time.Millisecond,
		BatchSize:    cfg.OutboxBatchSize,
		Topic:        cfg.LedgerTopicName,
		MaxRetries:   cfg.OutboxMaxRetries,
		WorkerID:     workerID,
	})

	r.Start(ctx)
	return nil
}
