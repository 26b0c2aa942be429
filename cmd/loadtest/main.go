package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glucogate/backend/memory"
	"github.com/glucogate/backend/redis"
	"github.com/glucogate/core"
	"github.com/glucogate/metrics"
	"github.com/glucogate/strategy/fixedwindow"
)

type LoadTestConfig struct {
	Duration     time.Duration
	Concurrency  int
	RatePerSec   int
	KeyCount     int
	Limit        int64
	Window       time.Duration
	Store        string
	RedisURL     string
	ShowProgress bool
}

type LoadTestResult struct {
	TotalRequests   int64
	AllowedRequests int64
	DeniedRequests  int64
	AverageLatency  time.Duration
	MinLatency      time.Duration
	MaxLatency      time.Duration
	P95Latency      time.Duration
	P99Latency      time.Duration
	Errors          int64
	// allowed count per key and window, keyed by "key@resetAt"
	AllowedPerWindow map[string]int64
}

func main() {
	var config LoadTestConfig

	flag.DurationVar(&config.Duration, "duration", 30*time.Second, "Test duration")
	flag.IntVar(&config.Concurrency, "concurrency", 10, "Number of concurrent workers")
	flag.IntVar(&config.RatePerSec, "rate", 100, "Requests per second per worker")
	flag.IntVar(&config.KeyCount, "keys", 5, "Number of unique client keys")
	flag.Int64Var(&config.Limit, "limit", 10, "Requests allowed per window")
	flag.DurationVar(&config.Window, "window", 10*time.Second, "Window length")
	flag.StringVar(&config.Store, "store", "memory", "Limiter store: memory or redis")
	flag.StringVar(&config.RedisURL, "redis-url", "redis://localhost:6379/0", "Redis URL for -store=redis")
	flag.BoolVar(&config.ShowProgress, "progress", true, "Show progress during test")
	flag.Parse()

	if config.RatePerSec <= 0 || config.KeyCount <= 0 || config.Concurrency <= 0 {
		log.Fatal("rate, keys and concurrency must be positive")
	}

	fmt.Printf("Starting load test with configuration:\n")
	fmt.Printf("  Duration: %v\n", config.Duration)
	fmt.Printf("  Concurrency: %d workers\n", config.Concurrency)
	fmt.Printf("  Rate: %d req/sec per worker\n", config.RatePerSec)
	fmt.Printf("  Keys: %d unique keys\n", config.KeyCount)
	fmt.Printf("  Quota: %d requests per %v\n", config.Limit, config.Window)
	fmt.Printf("  Store: %s\n", config.Store)
	fmt.Println()

	backend, err := newBackend(config)
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}
	defer backend.Close()

	limiterConfig := core.Config{
		Limit:     config.Limit,
		Window:    config.Window,
		KeyPrefix: "loadtest",
	}
	limiter, err := core.NewLimiter(backend, fixedwindow.NewStrategy(limiterConfig), limiterConfig, metrics.NewNoOpReporter())
	if err != nil {
		log.Fatalf("Failed to create limiter: %v", err)
	}

	result := runLoadTest(limiter, config)

	if ok := printResults(result, config); !ok {
		os.Exit(1)
	}
}

func newBackend(config LoadTestConfig) (core.Backend, error) {
	switch config.Store {
	case "memory":
		return memory.NewBackend(), nil
	case "redis":
		return redis.NewBackendFromURL(config.RedisURL, "glucogate-loadtest")
	default:
		return nil, fmt.Errorf("unsupported store: %s", config.Store)
	}
}

func runLoadTest(limiter core.RateLimiter, config LoadTestConfig) LoadTestResult {
	var (
		totalRequests   int64
		allowedRequests int64
		deniedRequests  int64
		errors          int64
		latencies       []time.Duration
		perWindow       = make(map[string]int64)
		resultMutex     sync.Mutex
	)

	ctx, cancel := context.WithTimeout(context.Background(), config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	startTime := time.Now()

	if config.ShowProgress {
		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					total := atomic.LoadInt64(&totalRequests)
					allowed := atomic.LoadInt64(&allowedRequests)
					denied := atomic.LoadInt64(&deniedRequests)
					elapsed := time.Since(startTime).Seconds()
					fmt.Printf("\rProgress: %d requests (%.1f req/sec) - Allowed: %d, Denied: %d",
						total, float64(total)/elapsed, allowed, denied)
				}
			}
		}()
	}

	for i := 0; i < config.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			ticker := time.NewTicker(time.Second / time.Duration(config.RatePerSec))
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					// workers share keys so the same window is contended
					key := fmt.Sprintf("client-%d", workerID%config.KeyCount)

					requestStart := time.Now()
					decision, err := limiter.Check(ctx, key)
					latency := time.Since(requestStart)

					atomic.AddInt64(&totalRequests, 1)

					if err != nil {
						atomic.AddInt64(&errors, 1)
						continue
					}

					resultMutex.Lock()
					if decision.Limited {
						deniedRequests++
					} else {
						allowedRequests++
						perWindow[fmt.Sprintf("%s@%d", key, decision.ResetAt.UnixNano())]++
					}
					latencies = append(latencies, latency)
					resultMutex.Unlock()
				}
			}
		}(i)
	}

	wg.Wait()

	if config.ShowProgress {
		fmt.Println()
	}

	resultMutex.Lock()
	defer resultMutex.Unlock()

	result := LoadTestResult{
		TotalRequests:    atomic.LoadInt64(&totalRequests),
		AllowedRequests:  allowedRequests,
		DeniedRequests:   deniedRequests,
		Errors:           atomic.LoadInt64(&errors),
		AllowedPerWindow: perWindow,
	}

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		var total time.Duration
		for _, lat := range latencies {
			total += lat
		}
		result.MinLatency = latencies[0]
		result.MaxLatency = latencies[len(latencies)-1]
		result.AverageLatency = total / time.Duration(len(latencies))

		if len(latencies) >= 100 {
			result.P95Latency = latencies[int(float64(len(latencies))*0.95)]
			result.P99Latency = latencies[int(float64(len(latencies))*0.99)]
		}
	}

	return result
}

// printResults reports the run and returns false if any client window
// allowed more than the limit.
func printResults(result LoadTestResult, config LoadTestConfig) bool {
	fmt.Printf("\n=== Load Test Results ===\n")
	fmt.Printf("Test Duration: %v\n", config.Duration)
	fmt.Printf("Concurrency: %d workers\n", config.Concurrency)
	fmt.Printf("Target Rate: %d req/sec per worker (%d total)\n", config.RatePerSec, config.Concurrency*config.RatePerSec)
	fmt.Printf("Quota: %d requests per %v\n", config.Limit, config.Window)
	fmt.Printf("Unique Keys: %d\n", config.KeyCount)
	fmt.Printf("\n")

	if result.TotalRequests == 0 {
		fmt.Println("No requests were made.")
		return true
	}

	fmt.Printf("Total Requests: %d\n", result.TotalRequests)
	fmt.Printf("Allowed Requests: %d (%.2f%%)\n", result.AllowedRequests,
		float64(result.AllowedRequests)/float64(result.TotalRequests)*100)
	fmt.Printf("Denied Requests: %d (%.2f%%)\n", result.DeniedRequests,
		float64(result.DeniedRequests)/float64(result.TotalRequests)*100)
	fmt.Printf("Errors: %d\n", result.Errors)
	fmt.Printf("Actual Rate: %.2f req/sec\n", float64(result.TotalRequests)/config.Duration.Seconds())

	fmt.Printf("\nLatency Statistics:\n")
	fmt.Printf("  Average: %v\n", result.AverageLatency)
	fmt.Printf("  Min: %v\n", result.MinLatency)
	fmt.Printf("  Max: %v\n", result.MaxLatency)
	if result.P95Latency > 0 {
		fmt.Printf("  P95: %v\n", result.P95Latency)
	}
	if result.P99Latency > 0 {
		fmt.Printf("  P99: %v\n", result.P99Latency)
	}

	var worst int64
	var overspent []string
	for window, allowed := range result.AllowedPerWindow {
		if allowed > worst {
			worst = allowed
		}
		if allowed > config.Limit {
			overspent = append(overspent, fmt.Sprintf("%s (%d)", window, allowed))
		}
	}
	sort.Strings(overspent)

	fmt.Printf("\nQuota Analysis:\n")
	fmt.Printf("  Client windows observed: %d\n", len(result.AllowedPerWindow))
	fmt.Printf("  Most allowed in one window: %d (limit %d)\n", worst, config.Limit)
	if len(overspent) > 0 {
		fmt.Printf("  FAIL: %d windows exceeded the limit\n", len(overspent))
		for _, w := range overspent {
			fmt.Printf("    %s\n", w)
		}
		return false
	}
	fmt.Printf("  OK: no window allowed more than the limit\n")
	return true
}
