package authclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authclient/authtest"
	"github.com/MrEthical07/authclient/session"
)

func runConcurrentGets(c *Client, n int, path string) []error {
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, n)
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = c.Get(context.Background(), path)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func TestRefreshConcurrencySingleRefreshPerBurst(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)
	loginDefault(t, c)

	srv.ExpireAccessTokens()
	srv.SetRefreshDelay(100 * time.Millisecond)

	const n = 16
	for i, err := range runConcurrentGets(c, n, "/protected/burst") {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}

	if got := srv.Calls("/auth/refresh"); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}

	snap := c.MetricsSnapshot()
	unauthorized := snap.Counters[MetricUnauthorized]
	if unauthorized == 0 {
		t.Fatal("expected at least one 401")
	}
	if snap.Counters[MetricRefreshSuccess] != 1 {
		t.Fatalf("expected one refresh success, got %d", snap.Counters[MetricRefreshSuccess])
	}
	if snap.Counters[MetricRefreshSuccess]+snap.Counters[MetricRefreshShared] != unauthorized {
		t.Fatalf("every 401 must resolve through the single refresh: %+v", snap.Counters)
	}
	if snap.Counters[MetricRetries] != unauthorized {
		t.Fatalf("expected one retry per 401, got %d retries for %d 401s", snap.Counters[MetricRetries], unauthorized)
	}
	if snap.Counters[MetricRequestFailures] != 0 {
		t.Fatalf("expected no failures, got %d", snap.Counters[MetricRequestFailures])
	}
}

func TestRefreshConcurrencyFailedRefreshLogsOutOnce(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)
	loginDefault(t, c)

	rec := &eventRecorder{}
	defer c.Subscribe(rec.record)()

	srv.ExpireAccessTokens()
	srv.SetRefreshDelay(100 * time.Millisecond)
	srv.FailRefresh(http.StatusUnauthorized)

	const n = 16
	for i, err := range runConcurrentGets(c, n, "/protected/burst") {
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("request %d: expected original 401, got %v", i, err)
		}
	}

	if got := srv.Calls("/auth/refresh"); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
	if got := rec.count(session.EventForcedLogout); got != 1 {
		t.Fatalf("expected one forced logout, got %d", got)
	}
	if got := c.MetricsSnapshot().Counters[MetricRetries]; got != 0 {
		t.Fatalf("failed refresh must not retry, got %d retries", got)
	}
	if c.IsAuthenticated() {
		t.Fatal("expected logged out client")
	}
}

func TestRefreshNowSharesInFlightRefresh(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)
	loginDefault(t, c)

	srv.SetRefreshDelay(100 * time.Millisecond)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = c.RefreshNow(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("RefreshNow %d failed: %v", i, err)
		}
	}
	if got := srv.Calls("/auth/refresh"); got != 1 {
		t.Fatalf("expected concurrent RefreshNow calls to share one refresh, got %d", got)
	}
	if _, err := c.Get(context.Background(), "/protected/after"); err != nil {
		t.Fatalf("session unusable after concurrent refreshes: %v", err)
	}
}
