// Package metrics centralizes the Prometheus collectors shared across
// ingress, processor, and relay, all registered via promauto at package
// init in the default registry. cmd/api serves that registry on
// /metrics; cmd/relay records them but serves no HTTP endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by method, endpoint, and status",
	}, []string{"method", "endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "endpoint"})

	ProcessorAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_processor_attempts_total",
		Help: "Transaction processor attempts, labeled by outcome (completed, failed, retried, rejected, replayed)",
	}, []string{"outcome"})

	ProcessorRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_processor_retries_total",
		Help: "Transient conflicts (serialization abort, version conflict, lost idempotency race) that the processor retried",
	})

	ProcessorDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_processor_duration_seconds",
		Help:    "Latency of a full Process call, including any retries",
		Buckets: prometheus.DefBuckets,
	})

	OutboxPendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_outbox_pending",
		Help: "Outbox events observed PENDING on the relay's most recent poll",
	})

	OutboxPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_outbox_events_published_total",
		Help: "Outbox events successfully published",
	})

	OutboxFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_outbox_events_failed_total",
		Help: "Outbox events moved to the terminal FAILED state",
	})
)
