// Command api serves the HTTP ingress adapter and runs the outbox relay
// embedded in the same process for a single-binary deployment; cmd/relay
// exists separately for operators who want to scale the relay
// independently of the HTTP tier.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ledgerops/txnengine/internal/bus"
	"github.com/ledgerops/txnengine/internal/config"
	httpingress "github.com/ledgerops/txnengine/internal/ingress/http"
	"github.com/ledgerops/txnengine/internal/idempotency"
	"github.com/ledgerops/txnengine/internal/logging"
	"github.com/ledgerops/txnengine/internal/processor"
	"github.com/ledgerops/txnengine/internal/relay"
	"github.com/ledgerops/txnengine/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.Init("api", cfg.LogLevel, cfg.AppEnv)
	ctx = logging.WithLogger(ctx, log)

	db, err := store.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	idem := idempotency.New(db, time.Duration(cfg.IdempotencyWindowHours)*time.Hour)
	proc := processor.New(db, idem, retryPolicyFromConfig(cfg))

	handler := httpingress.NewHandler(proc, db)
	router := httpingress.NewRouter(handler)
	router.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ListenPort),
		Handler: router,
	}

	publisher := bus.NewWebhookPublisher(cfg.LedgerWebhookURL)
	outboxRelay := relay.New(db, publisher, relay.Config{
		PollInterval: time.Duration(cfg.OutboxPollingIntervalMS) * time.Millisecond,
		BatchSize:    cfg.OutboxBatchSize,
		Topic:        cfg.LedgerTopicName,
		MaxRetries:   cfg.OutboxMaxRetries,
		WorkerID:     "api-embedded",
	})

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	go outboxRelay.Start(relayCtx)

	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "api server started", "addr", srv.Addr)
		if serr := srv.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.InfoContext(ctx, "shutdown signal received")
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stopRelay()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func retryPolicyFromConfig(cfg *config.Config) processor.RetryPolicy {
	return processor.RetryPolicy{
		InitialInterval: time.Duration(cfg.ProcessorBackoffInitialMS) * time.Millisecond,
		Multiplier:      cfg.ProcessorBackoffMultiplier,
		MaxInterval:     time.Duration(cfg.ProcessorBackoffMaxMS) * time.Millisecond,
		MaxAttempts:     uint64(cfg.ProcessorRetryAttempts),
	}
}
