// Command seeder bulk-provisions accounts for load testing using a
// CopyFrom bulk insert, adapted to this engine's text account ids and
// fixed-point balances.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ledgerops/txnengine/internal/config"
	"github.com/ledgerops/txnengine/internal/domain"
)

const (
	totalAccounts  = 1000
	initialBalance = 1_000_000 // $100.0000 at scale 4
	currency       = "USD"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("unable to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	log.Println("--- seeding accounts ---")

	var count int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count); err != nil {
		log.Fatalf("count accounts: %v", err)
	}
	if count >= totalAccounts {
		log.Printf("database already has %d accounts, skipping", count)
		return
	}

	log.Printf("generating %d accounts", totalAccounts)
	now := time.Now()
	rows := make([][]interface{}, 0, totalAccounts)
	for i := 0; i < totalAccounts; i++ {
		rows = append(rows, []interface{}{
			uuid.NewString(), "seed account", int64(initialBalance), currency,
			string(domain.AccountStatusActive), now, now, int64(0),
		})
	}

	copyCount, err := conn.CopyFrom(
		ctx,
		pgx.Identifier{"accounts"},
		[]string{"id", "name", "balance", "currency", "status", "created_at", "updated_at", "version"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		log.Fatalf("bulk insert failed: %v", err)
	}

	log.Printf("successfully seeded %d accounts", copyCount)
}
