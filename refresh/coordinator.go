package refresh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNoRefreshToken is the forced-logout reason when no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrRefreshFailed wraps the refresh endpoint failure used as forced-logout reason.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrSharedRefreshFailed is returned by Coordinator.Refresh when the
	// refresh it waited on did not succeed.
	ErrSharedRefreshFailed = errors.New("concurrent token refresh failed")
)

// TokenPair is the result of a successful refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenSource exposes the refresh token currently stored.
type TokenSource interface {
	RefreshToken() string
}

// Endpoint performs the network refresh call.
type Endpoint interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// EndpointFunc adapts a function to Endpoint.
type EndpointFunc func(ctx context.Context, refreshToken string) (TokenPair, error)

// Refresh calls f.
func (f EndpointFunc) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	return f(ctx, refreshToken)
}

// Committer records refresh outcomes in the credential store. ForceLogout
// reports whether there was a session to clear.
type Committer interface {
	Refreshed(ctx context.Context, accessToken, refreshToken string)
	ForceLogout(ctx context.Context, reason error) bool
}

// Outcome classifies how a 401 was resolved.
type Outcome uint8

const (
	OutcomeRefreshed Outcome = iota + 1
	OutcomeNoRefreshToken
	OutcomeRefreshFailed
	OutcomeShared
	OutcomeSharedFailed
)

// String returns the outcome label used in logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeNoRefreshToken:
		return "no_refresh_token"
	case OutcomeRefreshFailed:
		return "refresh_failed"
	case OutcomeShared:
		return "shared"
	case OutcomeSharedFailed:
		return "shared_failed"
	default:
		return "unknown"
	}
}

// Observer is notified about every resolved 401, every retry and every
// forced logout. Calls never happen while the refresh lease is held, so a
// slow observer delays only its own caller.
type Observer interface {
	Resolved(ctx context.Context, outcome Outcome, elapsed time.Duration, err error)
	Retried(ctx context.Context)
	ForcedLogout(ctx context.Context, reason error)
}

// Config holds coordinator dependencies.
type Config struct {
	Tokens    TokenSource
	Endpoint  Endpoint
	Committer Committer

	// IsUnauthorized reports whether a send error is a 401.
	IsUnauthorized func(error) bool

	// Timeout bounds a single refresh call. Zero disables the bound.
	Timeout time.Duration

	Observer Observer
	Logger   logrus.FieldLogger
}

// Coordinator runs requests through the refresh gate.
type Coordinator struct {
	gate           *Gate
	tokens         TokenSource
	endpoint       Endpoint
	committer      Committer
	isUnauthorized func(error) bool
	timeout        time.Duration
	observer       Observer
	logger         logrus.FieldLogger
}

// NewCoordinator validates cfg and returns a Coordinator with its own Gate.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Tokens == nil {
		return nil, errors.New("refresh: token source required")
	}
	if cfg.Endpoint == nil {
		return nil, errors.New("refresh: endpoint required")
	}
	if cfg.Committer == nil {
		return nil, errors.New("refresh: committer required")
	}
	if cfg.IsUnauthorized == nil {
		return nil, errors.New("refresh: unauthorized classifier required")
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("refresh: timeout must be >= 0")
	}
	logger := cfg.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Coordinator{
		gate:           &Gate{},
		tokens:         cfg.Tokens,
		endpoint:       cfg.Endpoint,
		committer:      cfg.Committer,
		isUnauthorized: cfg.IsUnauthorized,
		timeout:        cfg.Timeout,
		observer:       cfg.Observer,
		logger:         logger,
	}, nil
}

// Gate exposes the refresh lock for inspection.
func (c *Coordinator) Gate() *Gate {
	return c.gate
}

// Do sends a request and resolves a 401 response through at most one
// refresh and at most one retry. send must read credentials at call time;
// it is invoked once or twice.
//
// When the refresh is impossible or fails, the error from the first send is
// returned.
func (c *Coordinator) Do(ctx context.Context, send func(context.Context) error) error {
	ticket, err := c.gate.Wait(ctx)
	if err != nil {
		return err
	}

	sendErr := send(ctx)
	if !c.isUnauthorized(sendErr) {
		return sendErr
	}

	retry, err := c.resolve(ctx, ticket)
	if err != nil {
		return err
	}
	if !retry {
		return sendErr
	}

	c.retried(ctx)
	return send(ctx)
}

// Refresh forces a refresh through the gate. If another refresh is in
// flight it waits and shares that result.
func (c *Coordinator) Refresh(ctx context.Context) error {
	lease, refreshed, err := c.gate.Acquire(ctx, c.gate.Peek())
	if err != nil {
		return err
	}
	if lease == nil {
		if refreshed {
			c.resolved(ctx, OutcomeShared, 0, nil)
			return nil
		}
		c.resolved(ctx, OutcomeSharedFailed, 0, ErrSharedRefreshFailed)
		return ErrSharedRefreshFailed
	}
	_, err = c.runRefresh(ctx, lease)
	return err
}

func (c *Coordinator) resolve(ctx context.Context, ticket Ticket) (retry bool, err error) {
	started := time.Now()
	lease, refreshed, err := c.gate.Acquire(ctx, ticket)
	if err != nil {
		return false, err
	}

	if lease == nil {
		if refreshed {
			c.resolved(ctx, OutcomeShared, time.Since(started), nil)
			return true, nil
		}
		c.resolved(ctx, OutcomeSharedFailed, time.Since(started), ErrSharedRefreshFailed)
		return false, nil
	}

	ok, _ := c.runRefresh(ctx, lease)
	return ok, nil
}

func (c *Coordinator) runRefresh(ctx context.Context, lease *Lease) (bool, error) {
	started := time.Now()
	outcome, forced, err := c.refreshLeased(ctx, lease)

	if forced {
		c.forcedLogout(ctx, err)
	}
	c.resolved(ctx, outcome, time.Since(started), err)
	return err == nil, err
}

// refreshLeased performs the refresh and commits its result. The lease is
// released on return, also on panic.
func (c *Coordinator) refreshLeased(ctx context.Context, lease *Lease) (outcome Outcome, forced bool, err error) {
	ok := false
	defer func() { lease.Release(ok) }()

	// Read at acquisition time, never earlier.
	token := c.tokens.RefreshToken()
	if token == "" {
		forced = c.committer.ForceLogout(ctx, ErrNoRefreshToken)
		return OutcomeNoRefreshToken, forced, ErrNoRefreshToken
	}

	refreshCtx := context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		refreshCtx, cancel = context.WithTimeout(refreshCtx, c.timeout)
		defer cancel()
	}

	pair, rerr := c.endpoint.Refresh(refreshCtx, token)
	if rerr == nil && pair.AccessToken == "" {
		rerr = errors.New("refresh response missing access token")
	}
	if rerr != nil {
		reason := fmt.Errorf("%w: %w", ErrRefreshFailed, rerr)
		forced = c.committer.ForceLogout(ctx, reason)
		return OutcomeRefreshFailed, forced, reason
	}

	c.committer.Refreshed(ctx, pair.AccessToken, pair.RefreshToken)
	ok = true
	return OutcomeRefreshed, false, nil
}

func (c *Coordinator) resolved(ctx context.Context, outcome Outcome, elapsed time.Duration, err error) {
	entry := c.logger.WithFields(logrus.Fields{
		"outcome": outcome.String(),
		"elapsed": elapsed,
	})
	if err != nil {
		entry.WithError(err).Debug("refresh: 401 resolved without retry")
	} else {
		entry.Debug("refresh: 401 resolved")
	}
	if c.observer != nil {
		c.observer.Resolved(ctx, outcome, elapsed, err)
	}
}

func (c *Coordinator) forcedLogout(ctx context.Context, reason error) {
	if c.observer != nil {
		c.observer.ForcedLogout(ctx, reason)
	}
}

func (c *Coordinator) retried(ctx context.Context) {
	if c.observer != nil {
		c.observer.Retried(ctx)
	}
}
