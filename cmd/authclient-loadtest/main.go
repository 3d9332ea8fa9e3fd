package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	authclient "github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/authtest"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		clients     = flag.Int("clients", 16, "number of independent logged-in clients")
		concurrency = flag.Int("concurrency", 32, "concurrent workers per client")
		ops         = flag.Int("ops", 20000, "requests per phase across all clients")
		expireEvery = flag.Duration("expire-every", 20*time.Millisecond, "access token expiry interval during the churn phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *clients <= 0 || *concurrency <= 0 || *ops <= 0 || *expireEvery <= 0 {
		fmt.Fprintln(os.Stderr, "clients, concurrency, ops and expire-every must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		rdb     redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = rdb.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	srv := authtest.NewServer()
	defer srv.Close()

	fmt.Printf("logging in %d clients...\n", *clients)
	pool := make([]*authclient.Client, *clients)
	for i := range pool {
		c, err := authclient.New().
			WithBaseURL(srv.URL).
			WithRedis(rdb, fmt.Sprintf("loadtest-%d", i)).
			WithMetricsEnabled(true).
			Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "build client: %v\n", err)
			os.Exit(1)
		}
		defer c.Close()
		if _, err := c.Login(ctx, authtest.DefaultUsername, authtest.DefaultPassword); err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		pool[i] = c
	}

	steady := runPhase(ctx, pool, *ops, *concurrency, nil)
	steadyRefreshes := srv.Calls("/auth/refresh")

	var expiries atomic.Int64
	churn := runPhase(ctx, pool, *ops, *concurrency, func(stop <-chan struct{}) {
		ticker := time.NewTicker(*expireEvery)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				srv.ExpireAccessTokens()
				expiries.Add(1)
			}
		}
	})
	churnRefreshes := srv.Calls("/auth/refresh") - steadyRefreshes

	var shared, retries, forced uint64
	for _, c := range pool {
		snap := c.MetricsSnapshot()
		shared += snap.Counters[authclient.MetricRefreshShared]
		retries += snap.Counters[authclient.MetricRetries]
		forced += snap.Counters[authclient.MetricForcedLogout]
	}

	fmt.Println("---- results ----")
	printStats("steady", steady)
	printStats("churn", churn)
	fmt.Printf("refresh: steady_calls=%d churn_calls=%d expiries=%d shared=%d retries=%d forced_logouts=%d\n",
		steadyRefreshes, churnRefreshes, expiries.Load(), shared, retries, forced)
	// Each client refreshes at most once per expiry.
	if limit := int(expiries.Load()) * len(pool); churnRefreshes > limit {
		fmt.Printf("WARNING: %d refresh calls exceed %d expiries x %d clients\n", churnRefreshes, expiries.Load(), len(pool))
	}
}

// runPhase spreads ops GET requests over every client. When background is
// non-nil it runs alongside the workers until they finish.
func runPhase(ctx context.Context, pool []*authclient.Client, ops, concurrency int, background func(stop <-chan struct{})) phaseStats {
	var (
		wg        sync.WaitGroup
		bg        sync.WaitGroup
		stop      = make(chan struct{})
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	if background != nil {
		bg.Add(1)
		go func() {
			defer bg.Done()
			background(stop)
		}()
	}

	start := time.Now()
	for ci, client := range pool {
		for w := 0; w < concurrency; w++ {
			wg.Add(1)
			go func(worker int) {
				defer wg.Done()
				path := fmt.Sprintf("/protected/items/%d", worker)
				for {
					i := int(atomic.AddInt64(&cursor, 1)) - 1
					if i >= ops {
						return
					}
					t0 := time.Now()
					_, err := client.Get(ctx, path)
					d := time.Since(t0)
					if err != nil {
						atomic.AddInt64(&failures, 1)
						if sessionLost(client, err) {
							return
						}
					}
					mu.Lock()
					latencies = append(latencies, d)
					mu.Unlock()
				}
			}(ci*concurrency + w)
		}
	}
	wg.Wait()
	total := time.Since(start)

	if background != nil {
		close(stop)
		bg.Wait()
	}
	return computeStats(total, latencies, failures)
}

// sessionLost reports whether err ended the client's session: a 401 that
// the client could not recover from by refreshing.
func sessionLost(c *authclient.Client, err error) bool {
	return errors.Is(err, authclient.ErrUnauthorized) && !c.IsAuthenticated()
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
