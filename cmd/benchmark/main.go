// Command benchmark drives synthetic transfer load against a running
// api server, adapted from a reference hotspot/uniform load generator
// to this engine's JSON transaction contract and text account ids.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ledgerops/txnengine/internal/config"
)

var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
)

var (
	totalRequests uint64
	successOK     uint64 // 200: completed or cached replay
	failBusiness  uint64 // 422: committed FAILED transaction
	failConflict  uint64 // 409: contract violation or exhausted retry
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8081", "API base URL")
	flag.IntVar(&concurrency, "workers", 10, "number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "test duration")
	flag.StringVar(&workload, "workload", "uniform", "workload type: uniform | hotspot")
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	accountIDs, currency := fetchAccounts(cfg.DatabaseURL)
	if len(accountIDs) < 2 {
		log.Fatal("need at least 2 seeded accounts to benchmark; run cmd/seeder first")
	}

	log.Printf("starting benchmark: %s | workers: %d | duration: %s | accounts: %d", workload, concurrency, duration, len(accountIDs))

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, accountIDs, currency)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func fetchAccounts(dbURL string) ([]string, string) {
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("unable to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, "SELECT id, currency FROM accounts LIMIT 1000")
	if err != nil {
		log.Fatalf("fetch accounts: %v", err)
	}
	defer rows.Close()

	var ids []string
	var currency string
	for rows.Next() {
		var id, cur string
		if err := rows.Scan(&id, &cur); err != nil {
			log.Fatalf("scan account: %v", err)
		}
		ids = append(ids, id)
		currency = cur
	}
	return ids, currency
}

func worker(wg *sync.WaitGroup, start time.Time, accountIDs []string, currency string) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		from, to := pickAccounts(accountIDs)
		txnID := uuid.NewString()
		key := fmt.Sprintf("bench-%s-%s-%d", from, to, time.Now().UnixNano())

		payload := map[string]interface{}{
			"transactionId":  txnID,
			"fromAccountId":  from,
			"toAccountId":    to,
			"amount":         "1.0000",
			"currency":       currency,
			"type":           "TRANSFER",
			"idempotencyKey": key,
		}
		body, _ := json.Marshal(payload)

		req, err := http.NewRequest(http.MethodPost, targetURL+"/api/v1/transactions", bytes.NewReader(body))
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusOK:
			atomic.AddUint64(&successOK, 1)
		case http.StatusUnprocessableEntity:
			atomic.AddUint64(&failBusiness, 1)
		case http.StatusConflict:
			atomic.AddUint64(&failConflict, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func pickAccounts(accountIDs []string) (string, string) {
	n := len(accountIDs)
	if workload == "hotspot" && rand.Float32() < 0.90 {
		if rand.Float32() < 0.5 {
			return accountIDs[0], accountIDs[1]
		}
		return accountIDs[1], accountIDs[0]
	}

	a := rand.Intn(n)
	b := rand.Intn(n)
	for a == b {
		b = rand.Intn(n)
	}
	return accountIDs[a], accountIDs[b]
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	ok := atomic.LoadUint64(&successOK)
	business := atomic.LoadUint64(&failBusiness)
	conflict := atomic.LoadUint64(&failConflict)
	other := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	var conflictRate float64
	if total > 0 {
		conflictRate = float64(conflict) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":           workload,
		"duration_sec":       d.Seconds(),
		"total_requests":     total,
		"throughput_tps":     tps,
		"success_ok":         ok,
		"failed_business":    business,
		"failed_conflict":    conflict,
		"conflict_rate_pct":  conflictRate,
		"errors":             other,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results) //nolint:errcheck

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("save results: %v", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results) //nolint:errcheck
}
