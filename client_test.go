package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authclient/authtest"
	"github.com/MrEthical07/authclient/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T, baseURL string, configure func(*Builder)) *Client {
	t.Helper()

	b := New().WithBaseURL(baseURL).WithMetricsEnabled(true)
	if configure != nil {
		configure(b)
	}
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func loginDefault(t *testing.T, c *Client) *LoginResult {
	t.Helper()
	res, err := c.Login(context.Background(), authtest.DefaultUsername, authtest.DefaultPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return res
}

type eventRecorder struct {
	mu     sync.Mutex
	events []session.Event
}

func (r *eventRecorder) record(ev session.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) count(kind session.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestBuilderRejectsInvalidConfigAndReuse(t *testing.T) {
	if _, err := New().WithBaseURL("not a url").Build(); err == nil {
		t.Fatal("expected invalid base url to fail")
	}

	b := New().WithBaseURL("http://127.0.0.1:1")
	c, err := b.Build()
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	defer c.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second build to fail")
	}
}

func TestNilClientNotReady(t *testing.T) {
	var c *Client
	if _, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"}); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
	if _, err := c.Login(context.Background(), "u", "p"); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
	if c.IsAuthenticated() {
		t.Fatal("nil client cannot be authenticated")
	}
	c.Close()
}

func TestDoRejectsInvalidRequest(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", nil)

	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "relative"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	_, err = c.Do(context.Background(), Request{Path: "/x"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestLoginStoresTokensAndProfile(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	rec := &eventRecorder{}
	defer c.Subscribe(rec.record)()

	res := loginDefault(t, c)

	sess := c.Session()
	if sess.AccessToken != res.AccessToken || sess.RefreshToken != res.RefreshToken {
		t.Fatal("stored tokens do not match login result")
	}
	if !c.IsAuthenticated() {
		t.Fatal("expected authenticated client")
	}
	user := c.User()
	if user == nil || *user != authtest.DefaultProfile {
		t.Fatalf("unexpected profile %+v", user)
	}
	if rec.count(session.EventLogin) != 1 {
		t.Fatal("expected one login event")
	}
	if got := c.MetricsSnapshot().Counters[MetricLoginSuccess]; got != 1 {
		t.Fatalf("expected MetricLoginSuccess=1, got %d", got)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	_, err := c.Login(context.Background(), authtest.DefaultUsername, "wrong")
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
	if he.Message() != "Invalid credentials" {
		t.Fatalf("unexpected message %q", he.Message())
	}
	if c.IsAuthenticated() {
		t.Fatal("failed login must not authenticate")
	}
	if srv.Calls("/auth/refresh") != 0 {
		t.Fatal("login must bypass refresh handling")
	}
	if got := c.MetricsSnapshot().Counters[MetricLoginFailure]; got != 1 {
		t.Fatalf("expected MetricLoginFailure=1, got %d", got)
	}
}

func TestDoSendsBearerAndRequestID(t *testing.T) {
	var (
		mu      sync.Mutex
		auth    []string
		reqIDs  []string
		methods []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = append(auth, r.Header.Get("Authorization"))
		reqIDs = append(reqIDs, r.Header.Get("X-Request-Id"))
		methods = append(methods, r.Method)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	if _, err := c.Get(context.Background(), "/anon"); err != nil {
		t.Fatalf("anonymous get failed: %v", err)
	}

	c.controller.LoginSucceeded(context.Background(), "tok-1", "ref-1", Profile{ID: 1})
	ctx := WithRequestID(context.Background(), "req-fixed")
	resp, err := c.Post(ctx, "/things", map[string]string{"name": "x"})
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	var body struct {
		OK bool `json:"ok"`
	}
	if err := resp.Decode(&body); err != nil || !body.OK {
		t.Fatalf("decode failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if auth[0] != "" {
		t.Fatalf("expected no Authorization without a session, got %q", auth[0])
	}
	if reqIDs[0] == "" {
		t.Fatal("expected generated request id")
	}
	if auth[1] != "Bearer tok-1" {
		t.Fatalf("unexpected Authorization %q", auth[1])
	}
	if reqIDs[1] != "req-fixed" || methods[1] != http.MethodPost {
		t.Fatalf("unexpected request id %q / method %q", reqIDs[1], methods[1])
	}
}

func TestDoRefreshesExpiredTokenAndRetries(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	rec := &eventRecorder{}
	defer c.Subscribe(rec.record)()

	before := loginDefault(t, c)
	srv.ExpireAccessTokens()

	resp, err := c.Get(context.Background(), "/protected/products")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	if srv.Calls("/auth/refresh") != 1 {
		t.Fatalf("expected one refresh call, got %d", srv.Calls("/auth/refresh"))
	}
	if srv.Calls("/protected/products") != 2 {
		t.Fatalf("expected original + retry, got %d", srv.Calls("/protected/products"))
	}
	sess := c.Session()
	if sess.AccessToken == before.AccessToken || sess.RefreshToken == before.RefreshToken {
		t.Fatal("expected rotated token pair")
	}
	if sess.Profile == nil || sess.Profile.Username != authtest.DefaultUsername {
		t.Fatal("refresh must keep the stored profile")
	}
	if rec.count(session.EventRefreshed) != 1 {
		t.Fatal("expected one refreshed event")
	}

	snap := c.MetricsSnapshot()
	if snap.Counters[MetricRefreshSuccess] != 1 || snap.Counters[MetricRetries] != 1 || snap.Counters[MetricUnauthorized] != 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

func TestDoRefreshFailureForcesLogoutAndReturnsOriginal401(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	rec := &eventRecorder{}
	defer c.Subscribe(rec.record)()

	loginDefault(t, c)
	srv.ExpireAccessTokens()
	srv.FailRefresh(http.StatusForbidden)

	_, err := c.Get(context.Background(), "/protected/products")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected original 401, got %v", err)
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", StatusCode(err))
	}
	if c.IsAuthenticated() || c.User() != nil {
		t.Fatal("expected forced logout to clear the session")
	}
	if rec.count(session.EventForcedLogout) != 1 {
		t.Fatal("expected one forced logout event")
	}
	if srv.Calls("/protected/products") != 1 {
		t.Fatal("failed refresh must not retry")
	}
	if got := c.MetricsSnapshot().Counters[MetricForcedLogout]; got != 1 {
		t.Fatalf("expected MetricForcedLogout=1, got %d", got)
	}
}

func TestDoWithoutRefreshTokenForcesLogout(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	rec := &eventRecorder{}
	defer c.Subscribe(rec.record)()

	c.controller.LoginSucceeded(context.Background(), "stale", "", Profile{ID: 1})

	_, err := c.Get(context.Background(), "/protected/x")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected 401, got %v", err)
	}
	if srv.Calls("/auth/refresh") != 0 {
		t.Fatal("refresh endpoint must not be called without a refresh token")
	}
	if rec.count(session.EventForcedLogout) != 1 {
		t.Fatal("expected one forced logout event")
	}
}

func TestDoNon401PassesThrough(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)
	loginDefault(t, c)

	_, err := c.Get(context.Background(), "/status/503")
	if StatusCode(err) != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %v", err)
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatal("503 must not match ErrUnauthorized")
	}
	if srv.Calls("/auth/refresh") != 0 || srv.Calls("/status/503") != 1 {
		t.Fatal("non-401 must not refresh or retry")
	}
	if !c.IsAuthenticated() {
		t.Fatal("non-401 must not touch the session")
	}
}

func TestDoTransportFailureWrapped(t *testing.T) {
	srv := authtest.NewServer()
	c := newTestClient(t, srv.URL, nil)
	loginDefault(t, c)
	srv.Close()

	_, err := c.Get(context.Background(), "/protected/x")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if !c.IsAuthenticated() {
		t.Fatal("transport failure must not log out")
	}
}

func TestSecond401AfterRetryIsSurfaced(t *testing.T) {
	var refreshes sync.WaitGroup
	refreshes.Add(1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/auth/refresh" {
			refreshes.Done()
			_, _ = w.Write([]byte(`{"accessToken":"a2","refreshToken":"r2"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"nope"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	c.controller.LoginSucceeded(context.Background(), "a1", "r1", Profile{ID: 1})

	_, err := c.Get(context.Background(), "/always-401")
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 from retry, got %v", err)
	}
	refreshes.Wait()
	if c.Session().AccessToken != "a2" {
		t.Fatal("expected refreshed token to stay stored")
	}
	if got := c.MetricsSnapshot().Counters[MetricRetries]; got != 1 {
		t.Fatalf("expected exactly one retry, got %d", got)
	}
}

func TestMeUpdatesProfileOnly(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	if _, err := c.Me(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	access, refresh, err := srv.IssuePair(authtest.DefaultUsername)
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}
	c.controller.LoginSucceeded(context.Background(), access, refresh, Profile{ID: 1, Username: "placeholder"})

	p, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if *p != authtest.DefaultProfile || *c.User() != authtest.DefaultProfile {
		t.Fatalf("unexpected profile %+v", p)
	}
	sess := c.Session()
	if sess.AccessToken != access || sess.RefreshToken != refresh {
		t.Fatal("profile fetch must not touch tokens")
	}
}

func TestLogoutClearsSession(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)
	loginDefault(t, c)

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if c.IsAuthenticated() || !c.Session().Empty() {
		t.Fatal("expected empty session after logout")
	}
	if srv.Calls("/auth/logout") != 1 {
		t.Fatal("expected backend logout call")
	}
}

func TestLogoutClearsSessionWhenBackendUnreachable(t *testing.T) {
	srv := authtest.NewServer()
	c := newTestClient(t, srv.URL, nil)
	loginDefault(t, c)
	srv.Close()

	err := c.Logout(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if c.IsAuthenticated() {
		t.Fatal("session must be cleared even when backend logout fails")
	}
}

func TestLogoutAfterForcedLogoutPublishesOnlyForcedLogout(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)
	loginDefault(t, c)

	rec := &eventRecorder{}
	defer c.Subscribe(rec.record)()

	srv.ExpireAccessTokens()
	srv.FailRefresh(http.StatusForbidden)

	err := c.Logout(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected the logout call's 401, got %v", err)
	}
	if !c.Session().Empty() {
		t.Fatal("expected empty session")
	}
	if got := rec.count(session.EventForcedLogout); got != 1 {
		t.Fatalf("expected 1 forced logout event, got %d", got)
	}
	if got := rec.count(session.EventLogout); got != 0 {
		t.Fatalf("expected no logout event after forced logout, got %d", got)
	}
	counters := c.MetricsSnapshot().Counters
	if counters[MetricLogout] != 0 || counters[MetricForcedLogout] != 1 {
		t.Fatalf("unexpected counters logout=%d forced=%d", counters[MetricLogout], counters[MetricForcedLogout])
	}
}

func TestLogoutWithoutSessionIsQuiet(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	rec := &eventRecorder{}
	defer c.Subscribe(rec.record)()

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if srv.Calls("/auth/logout") != 0 {
		t.Fatal("no backend call expected without a session")
	}
	if got := rec.count(session.EventLogout); got != 0 {
		t.Fatalf("expected no logout event, got %d", got)
	}
}

func TestMeRefreshesWhenOnlyRefreshTokenStored(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	_, refreshToken, err := srv.IssuePair(authtest.DefaultUsername)
	if err != nil {
		t.Fatal(err)
	}
	c.controller.LoginSucceeded(context.Background(), "", refreshToken, Profile{})

	profile, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if profile.Username != authtest.DefaultUsername {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if srv.Calls("/auth/refresh") != 1 {
		t.Fatalf("expected one refresh, got %d", srv.Calls("/auth/refresh"))
	}
	if !c.IsAuthenticated() {
		t.Fatal("expected an access token after refresh")
	}
}

func TestRetryReplaysRequestBody(t *testing.T) {
	type call struct {
		auth        string
		contentType string
		body        string
	}
	var (
		mu    sync.Mutex
		calls []call
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/auth/refresh" {
			_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": "a2", "refreshToken": "r2"})
			return
		}
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, call{
			auth:        r.Header.Get("Authorization"),
			contentType: r.Header.Get("Content-Type"),
			body:        string(raw),
		})
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer a2" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Token Expired!"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	for _, tc := range []struct {
		name string
		body any
		want string
	}{
		{name: "reader", body: strings.NewReader(`{"id":7}`), want: `{"id":7}`},
		{name: "bytes", body: []byte(`{"id":8}`), want: `{"id":8}`},
		{name: "value", body: map[string]int{"id": 9}, want: `{"id":9}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			mu.Lock()
			calls = nil
			mu.Unlock()

			c := newTestClient(t, srv.URL, nil)
			c.controller.LoginSucceeded(context.Background(), "a1", "r1", Profile{ID: 1})

			if _, err := c.Post(context.Background(), "/carts/add", tc.body); err != nil {
				t.Fatalf("post failed: %v", err)
			}

			mu.Lock()
			defer mu.Unlock()
			if len(calls) != 2 {
				t.Fatalf("expected original and retry, got %d calls", len(calls))
			}
			if calls[0].auth != "Bearer a1" || calls[1].auth != "Bearer a2" {
				t.Fatalf("unexpected bearer sequence %q, %q", calls[0].auth, calls[1].auth)
			}
			for i, got := range calls {
				if strings.TrimSpace(got.body) != tc.want {
					t.Fatalf("attempt %d sent body %q, want %q", i+1, got.body, tc.want)
				}
				if got.contentType != "application/json" {
					t.Fatalf("attempt %d sent content type %q", i+1, got.contentType)
				}
			}
		})
	}
}

func TestDoKeepsCallerContentType(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	_, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/upload",
		Header: http.Header{"Content-Type": []string{"text/plain"}},
		Body:   strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	if got != "text/plain" {
		t.Fatalf("expected caller content type, got %q", got)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestDoRejectsUnreadableBody(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", nil)

	_, err := c.Post(context.Background(), "/x", failingReader{})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestRefreshNow(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	if err := c.RefreshNow(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	before := loginDefault(t, c)
	if err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow failed: %v", err)
	}
	if c.Session().RefreshToken == before.RefreshToken {
		t.Fatal("expected rotated refresh token")
	}

	srv.RevokeRefreshTokens()
	err := c.RefreshNow(context.Background())
	if !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("expected ErrRefreshFailed, got %v", err)
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected wrapped refresh status 401, got %d", StatusCode(err))
	}
	if c.IsAuthenticated() {
		t.Fatal("failed refresh must force logout")
	}
}

func TestAccessTokenExpiry(t *testing.T) {
	srv := authtest.NewServer(authtest.WithAccessTTL(10 * time.Minute))
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	if _, ok := c.AccessTokenExpiry(); ok {
		t.Fatal("expected no expiry without a session")
	}

	loginDefault(t, c)
	exp, ok := c.AccessTokenExpiry()
	if !ok {
		t.Fatal("expected readable expiry")
	}
	if d := time.Until(exp); d < 9*time.Minute || d > 11*time.Minute {
		t.Fatalf("unexpected expiry distance %v", d)
	}

	c.controller.Refreshed(context.Background(), "opaque-token", "")
	if _, ok := c.AccessTokenExpiry(); ok {
		t.Fatal("opaque token must not report expiry")
	}
}

func TestRestoreFromFilePersister(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	path := t.TempDir() + "/session"

	first := newTestClient(t, srv.URL, func(b *Builder) {
		b.WithPersister(session.NewFilePersister(path))
	})
	res := loginDefault(t, first)

	second := newTestClient(t, srv.URL, func(b *Builder) {
		b.WithPersister(session.NewFilePersister(path))
	})
	if err := second.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if second.Session().AccessToken != res.AccessToken {
		t.Fatal("restored access token mismatch")
	}
	if u := second.User(); u == nil || *u != authtest.DefaultProfile {
		t.Fatalf("restored profile mismatch: %+v", u)
	}
	if _, err := second.Get(context.Background(), "/protected/x"); err != nil {
		t.Fatalf("restored session unusable: %v", err)
	}
}

func TestRestoreFromRedis(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	first := newTestClient(t, srv.URL, func(b *Builder) { b.WithRedis(rdb, "device-1") })
	loginDefault(t, first)

	if !mr.Exists("authclient:cs:device-1") {
		t.Fatal("expected session key in redis")
	}

	second := newTestClient(t, srv.URL, func(b *Builder) { b.WithRedis(rdb, "device-1") })
	if err := second.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !second.IsAuthenticated() {
		t.Fatal("expected restored session")
	}

	if err := second.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if mr.Exists("authclient:cs:device-1") {
		t.Fatal("logout must delete the persisted session")
	}
}

func TestRestoreWithoutPersistedSession(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", func(b *Builder) {
		b.WithPersister(session.NewFilePersister(t.TempDir() + "/missing"))
	})
	if err := c.Restore(context.Background()); err != nil {
		t.Fatalf("missing session must not fail: %v", err)
	}
	if c.IsAuthenticated() {
		t.Fatal("expected empty session")
	}
}
