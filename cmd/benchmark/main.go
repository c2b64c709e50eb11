package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	targetURL    string
	concurrency  int
	duration     time.Duration
	workload     string
	accountsFile string
	accountCount int
	token        string
	replayRate   float64
)

var (
	totalRequests uint64
	success200    uint64 // idempotent replays
	success201    uint64 // created
	fail409       uint64 // retries exhausted
	fail422       uint64 // insufficient funds
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.StringVar(&accountsFile, "accounts-file", "", "Account ids written by the seeder; accounts are created over the API when empty")
	flag.IntVar(&accountCount, "accounts", 100, "Accounts to create when no accounts file is given")
	flag.StringVar(&token, "token", "", "Bearer token sent with every request")
	flag.Float64Var(&replayRate, "replay-rate", 0.05, "Fraction of requests that reuse a previous idempotency key")
}

func main() {
	flag.Parse()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	client := &http.Client{Timeout: 5 * time.Second}

	accounts, err := loadAccounts(client)
	if err != nil {
		logger.Error("prepare accounts", "error", err)
		os.Exit(1)
	}
	if len(accounts) < 2 {
		logger.Error("need at least two accounts", "have", len(accounts))
		os.Exit(1)
	}
	logger.Info("starting benchmark", "workload", workload, "workers", concurrency, "duration", duration, "accounts", len(accounts))

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		seed := time.Now().UnixNano() + int64(i)
		g.Go(func() error {
			worker(gctx, client, accounts, rand.New(rand.NewSource(seed)))
			return nil
		})
	}
	g.Wait()
	printResults(time.Since(start))
}

func worker(ctx context.Context, client *http.Client, accounts []string, rng *rand.Rand) {
	var lastKey, lastPath string
	var lastBody []byte

	for ctx.Err() == nil {
		path, body := nextOperation(accounts, rng)
		key := fmt.Sprintf("bench-%d-%d", rng.Int63(), time.Now().UnixNano())
		if lastKey != "" && rng.Float64() < replayRate {
			path, body, key = lastPath, lastBody, lastKey
		}
		lastPath, lastBody, lastKey = path, body, key

		code, err := post(ctx, client, path, key, body)
		if err != nil {
			if ctx.Err() == nil {
				atomic.AddUint64(&failOther, 1)
			}
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch code {
		case http.StatusCreated:
			atomic.AddUint64(&success201, 1)
		case http.StatusOK:
			atomic.AddUint64(&success200, 1)
		case http.StatusConflict:
			atomic.AddUint64(&fail409, 1)
		case http.StatusUnprocessableEntity:
			atomic.AddUint64(&fail422, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
	}
}

// nextOperation picks a transfer most of the time, mixed with deposits and withdrawals.
func nextOperation(accounts []string, rng *rand.Rand) (string, []byte) {
	from, to := pickAccounts(accounts, rng)
	amount := fmt.Sprintf("%d.%02d", rng.Intn(100)+1, rng.Intn(100))

	var path string
	var payload map[string]string
	switch p := rng.Float64(); {
	case p < 0.2:
		path = "/api/v1/accounts/" + from + "/deposit"
		payload = map[string]string{"amount": amount}
	case p < 0.4:
		path = "/api/v1/accounts/" + from + "/withdraw"
		payload = map[string]string{"amount": amount}
	default:
		path = "/api/v1/transfers"
		payload = map[string]string{"from_account_id": from, "to_account_id": to, "amount": amount}
	}
	body, _ := json.Marshal(payload)
	return path, body
}

func pickAccounts(accounts []string, rng *rand.Rand) (string, string) {
	if workload == "hotspot" && rng.Float32() < 0.90 {
		// 90% of traffic between the first two accounts
		if rng.Float32() < 0.5 {
			return accounts[0], accounts[1]
		}
		return accounts[1], accounts[0]
	}
	a := rng.Intn(len(accounts))
	b := rng.Intn(len(accounts))
	for a == b {
		b = rng.Intn(len(accounts))
	}
	return accounts[a], accounts[b]
}

func post(ctx context.Context, client *http.Client, path, key string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func loadAccounts(client *http.Client) ([]string, error) {
	if accountsFile != "" {
		f, err := os.Open(accountsFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		var ids []string
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if id := strings.TrimSpace(sc.Text()); id != "" {
				ids = append(ids, id)
			}
		}
		return ids, sc.Err()
	}

	ids := make([]string, 0, accountCount)
	for i := 0; i < accountCount; i++ {
		body := []byte(`{"currency":"INR","initial_balance":"10000.00"}`)
		req, err := http.NewRequest(http.MethodPost, targetURL+"/api/v1/accounts", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		var acc struct {
			ID string `json:"id"`
		}
		err = json.NewDecoder(resp.Body).Decode(&acc)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusCreated {
			return nil, fmt.Errorf("create account: status %d", resp.StatusCode)
		}
		ids = append(ids, acc.ID)
	}
	return ids, nil
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	s200 := atomic.LoadUint64(&success200)
	f409 := atomic.LoadUint64(&fail409)
	f422 := atomic.LoadUint64(&fail422)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	var abortRate float64
	if total > 0 {
		abortRate = float64(f409) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":           workload,
		"duration_sec":       d.Seconds(),
		"total_requests":     total,
		"throughput_tps":     tps,
		"success_created":    s201,
		"success_replay":     s200,
		"aborts_conflict":    f409,
		"insufficient_funds": f422,
		"abort_rate_pct":     abortRate,
		"errors":             fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
