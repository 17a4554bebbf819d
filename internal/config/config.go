package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

// Config is loaded once at process start from the environment. Every
// field named in the spec's configuration enumeration has a default so a
// bare DATABASE_URL is enough to boot against a fresh database.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	ListenPort  int    `env:"LISTEN_PORT" envDefault:"8081"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	IdempotencyWindowHours int `env:"IDEMPOTENCY_WINDOW_HOURS" envDefault:"24"`

	OutboxPollingIntervalMS int `env:"OUTBOX_POLLING_INTERVAL_MS" envDefault:"100"`
	OutboxBatchSize         int `env:"OUTBOX_BATCH_SIZE" envDefault:"10"`
	OutboxMaxRetries        int `env:"OUTBOX_MAX_RETRIES" envDefault:"5"`

	ProcessorRetryAttempts     int     `env:"PROCESSOR_RETRY_ATTEMPTS" envDefault:"3"`
	ProcessorBackoffInitialMS  int     `env:"PROCESSOR_BACKOFF_INITIAL_MS" envDefault:"100"`
	ProcessorBackoffMultiplier float64 `env:"PROCESSOR_BACKOFF_MULTIPLIER" envDefault:"5"`
	ProcessorBackoffMaxMS      int     `env:"PROCESSOR_BACKOFF_MAX_MS" envDefault:"2000"`

	DLQTopicName     string `env:"DLQ_TOPIC_NAME" envDefault:"transactions.dlq"`
	IngressTopicName string `env:"INGRESS_TOPIC_NAME" envDefault:"transactions.ingress"`
	LedgerTopicName  string `env:"LEDGER_TOPIC_NAME" envDefault:"transactions.ledger"`

	LedgerWebhookURL string `env:"LEDGER_WEBHOOK_URL" envDefault:""`

	DBMaxConns          int32 `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns          int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBRelayReservedConn int32 `env:"DB_RELAY_RESERVED_CONNS" envDefault:"1"`
}

// Load parses Config from the environment. DatabaseURL and any other
// field tagged `required` must be set or Load fails closed.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
