package authclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MrEthical07/authclient/internal/audit"
	"github.com/MrEthical07/authclient/jwt"
	"github.com/MrEthical07/authclient/refresh"
	"github.com/MrEthical07/authclient/session"
	"github.com/sirupsen/logrus"
)

// Client is an authenticated HTTP client for a token-based backend. Every
// request carries the current bearer token; a 401 triggers at most one
// shared refresh and at most one retry.
//
// A Client is safe for concurrent use.
type Client struct {
	config      Config
	requester   *Requester
	controller  *session.Controller
	coordinator *refresh.Coordinator
	logger      logrus.FieldLogger
	metrics     *Metrics
	audit       *audit.Dispatcher
	closeOnce   sync.Once
}

// Do sends req through the refresh coordinator. Non-2xx responses are
// returned as *HTTPError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c == nil || c.coordinator == nil {
		return nil, ErrClientNotReady
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	req, err := req.replayable()
	if err != nil {
		return nil, err
	}
	ctx, requestID := ensureRequestID(ctx)

	c.metrics.Inc(MetricRequests)
	started := time.Now()

	var resp *Response
	err = c.coordinator.Do(ctx, func(ctx context.Context) error {
		r, err := c.requester.Send(ctx, req)
		if isUnauthorized(err) {
			c.metrics.Inc(MetricUnauthorized)
		}
		resp = r
		return err
	})

	c.metrics.Observe(MetricRequestLatency, time.Since(started))
	if err != nil {
		c.metrics.Inc(MetricRequestFailures)
		c.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     req.Method,
			"path":       req.Path,
			"status":     StatusCode(err),
		}).WithError(err).Debug("client: request failed")
		return nil, err
	}
	return resp, nil
}

// Get is Do with a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path})
}

// Post is Do with a POST request carrying body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put is Do with a PUT request carrying body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch is Do with a PATCH request carrying body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete is Do with a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

// Login exchanges credentials for a token pair and replaces the stored
// session. It bypasses the refresh coordinator: a 401 here means bad
// credentials.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if c == nil || c.controller == nil {
		return nil, ErrClientNotReady
	}
	ctx, _ = ensureRequestID(ctx)
	c.metrics.Inc(MetricRequests)

	resp, err := c.requester.SendAnonymous(ctx, Request{
		Method: http.MethodPost,
		Path:   c.config.Endpoints.Login,
		Body: loginRequest{
			Username:      username,
			Password:      password,
			ExpiresInMins: c.config.Refresh.ExpiresInMins,
		},
	})
	if err == nil {
		var result LoginResult
		if err = resp.Decode(&result); err == nil && result.AccessToken == "" {
			err = fmt.Errorf("%w: missing access token", ErrInvalidResponse)
		}
		if err == nil {
			profile := result.Profile()
			c.controller.LoginSucceeded(ctx, result.AccessToken, result.RefreshToken, profile)
			c.metrics.Inc(MetricLoginSuccess)
			c.emitAudit(ctx, auditEventLoginSuccess, true, nil, &profile, nil)
			return &result, nil
		}
	}

	c.metrics.Inc(MetricRequestFailures)
	c.metrics.Inc(MetricLoginFailure)
	c.emitAudit(ctx, auditEventLoginFailure, false, err, &Profile{Username: username}, nil)
	return nil, err
}

// Me fetches the current user's profile and stores it.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	if c == nil || c.controller == nil {
		return nil, ErrClientNotReady
	}
	// A refresh token alone is enough: the coordinator refreshes on the 401.
	if c.Session().Empty() {
		return nil, ErrNotAuthenticated
	}

	resp, err := c.Get(ctx, c.config.Endpoints.Me)
	if err != nil {
		return nil, err
	}
	var profile Profile
	if err := resp.Decode(&profile); err != nil {
		return nil, err
	}

	c.controller.ProfileFetched(ctx, profile)
	c.metrics.Inc(MetricProfileFetched)
	return &profile, nil
}

// Logout notifies the backend and clears the local session. The session is
// cleared even when the backend call fails; that error is still returned.
// When the backend call ended in a forced logout, no logout event, metric or
// audit record follows it.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil || c.controller == nil {
		return ErrClientNotReady
	}
	ctx, _ = ensureRequestID(ctx)
	profile := c.User()

	var err error
	if c.controller.Store().AccessToken() != "" {
		_, err = c.Post(ctx, c.config.Endpoints.Logout, nil)
	}

	if c.controller.LoggedOut(ctx) {
		c.metrics.Inc(MetricLogout)
		c.emitAudit(ctx, auditEventLogout, err == nil, err, profile, nil)
	}
	return err
}

// RefreshNow rotates the token pair through the same gate used by Do. If a
// refresh is already in flight it shares that result.
func (c *Client) RefreshNow(ctx context.Context) error {
	if c == nil || c.coordinator == nil {
		return ErrClientNotReady
	}
	store := c.controller.Store()
	if store.AccessToken() == "" && store.RefreshToken() == "" {
		return ErrNotAuthenticated
	}
	ctx, _ = ensureRequestID(ctx)
	return c.coordinator.Refresh(ctx)
}

// Session returns a copy of the stored credentials.
func (c *Client) Session() session.Session {
	if c == nil || c.controller == nil {
		return session.Session{}
	}
	return c.controller.Store().Snapshot()
}

// IsAuthenticated reports whether an access token is stored.
func (c *Client) IsAuthenticated() bool {
	if c == nil || c.controller == nil {
		return false
	}
	return c.controller.Store().AccessToken() != ""
}

// User returns a copy of the stored profile, or nil.
func (c *Client) User() *Profile {
	if c == nil || c.controller == nil {
		return nil
	}
	return c.controller.Store().Profile()
}

// AccessTokenExpiry reports the exp claim of the stored access token. The
// token is not verified. ok is false when there is no token or it carries
// no readable expiry.
func (c *Client) AccessTokenExpiry() (exp time.Time, ok bool) {
	if c == nil || c.controller == nil {
		return time.Time{}, false
	}
	token := c.controller.Store().AccessToken()
	if token == "" {
		return time.Time{}, false
	}
	exp, err := jwt.PeekExpiry(token)
	if err != nil {
		return time.Time{}, false
	}
	return exp, true
}

// Restore loads the persisted session, if any.
func (c *Client) Restore(ctx context.Context) error {
	if c == nil || c.controller == nil {
		return ErrClientNotReady
	}
	if err := c.controller.Restore(ctx); err != nil {
		return err
	}
	if c.IsAuthenticated() {
		c.emitAudit(ctx, auditEventRestored, true, nil, c.User(), nil)
	}
	return nil
}

// Subscribe registers fn for session events (login, refresh, logout, forced
// logout, ...). Call the returned function to unsubscribe. fn runs
// synchronously; refresh and forced-logout events are delivered before
// waiting requests resume, so fn must not block.
func (c *Client) Subscribe(fn func(session.Event)) func() {
	if c == nil || c.controller == nil {
		return func() {}
	}
	return c.controller.Subscribe(fn)
}

// MetricsSnapshot returns the current counters and latency buckets.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// AuditDropped reports audit events discarded because the buffer was full.
func (c *Client) AuditDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.audit.Dropped()
}

// Close flushes pending audit events. The session is left untouched.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		c.audit.Close()
	})
}

func (c *Client) refreshTokens(ctx context.Context, refreshToken string) (refresh.TokenPair, error) {
	resp, err := c.requester.SendAnonymous(ctx, Request{
		Method: http.MethodPost,
		Path:   c.config.Endpoints.Refresh,
		Body: refreshRequest{
			RefreshToken:  refreshToken,
			ExpiresInMins: c.config.Refresh.ExpiresInMins,
		},
	})
	if err != nil {
		return refresh.TokenPair{}, err
	}
	var out refreshResponse
	if err := resp.Decode(&out); err != nil {
		return refresh.TokenPair{}, err
	}
	return refresh.TokenPair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}, nil
}

// refreshObserver feeds coordinator outcomes into metrics and audit.
type refreshObserver struct {
	c *Client
}

func (o refreshObserver) Resolved(ctx context.Context, outcome refresh.Outcome, _ time.Duration, err error) {
	c := o.c
	switch outcome {
	case refresh.OutcomeRefreshed:
		c.metrics.Inc(MetricRefreshSuccess)
		c.emitAudit(ctx, auditEventRefreshSuccess, true, nil, c.User(), nil)
	case refresh.OutcomeNoRefreshToken, refresh.OutcomeRefreshFailed:
		c.metrics.Inc(MetricRefreshFailure)
		c.emitAudit(ctx, auditEventRefreshFailure, false, err, nil, nil)
	case refresh.OutcomeShared, refresh.OutcomeSharedFailed:
		c.metrics.Inc(MetricRefreshShared)
	}
}

func (o refreshObserver) Retried(context.Context) {
	o.c.metrics.Inc(MetricRetries)
}

func (o refreshObserver) ForcedLogout(ctx context.Context, reason error) {
	o.c.metrics.Inc(MetricForcedLogout)
	o.c.emitAudit(ctx, auditEventForcedLogout, true, reason, nil, nil)
}

var _ refresh.Observer = refreshObserver{}
