package session

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// EventKind identifies a credential state transition.
type EventKind uint8

const (
	EventLogin EventKind = iota + 1
	EventProfileUpdated
	EventRefreshed
	EventLogout
	EventForcedLogout
	EventRestored
)

// String returns the event label used in logs.
func (k EventKind) String() string {
	switch k {
	case EventLogin:
		return "login"
	case EventProfileUpdated:
		return "profile_updated"
	case EventRefreshed:
		return "refreshed"
	case EventLogout:
		return "logout"
	case EventForcedLogout:
		return "forced_logout"
	case EventRestored:
		return "restored"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after the store has been updated.
type Event struct {
	Kind    EventKind
	Session Session
	// Reason is set for EventForcedLogout.
	Reason error
}

// Controller is the single writer of a Store. It applies resolved outcomes
// (login, profile fetch, refresh, logout), persists the result and notifies
// subscribers. It performs no I/O against the backend itself.
type Controller struct {
	store     *Store
	persister Persister
	logger    logrus.FieldLogger

	// mu orders mutate+persist pairs so the persisted copy never lags a
	// later in-memory write.
	mu sync.Mutex

	subMu  sync.RWMutex
	subs   map[uint64]func(Event)
	nextID uint64
}

// NewController wires a controller around store. persister and logger may be nil.
func NewController(store *Store, persister Persister, logger logrus.FieldLogger) *Controller {
	if store == nil {
		store = NewStore()
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Controller{
		store:     store,
		persister: persister,
		logger:    logger,
		subs:      make(map[uint64]func(Event)),
	}
}

// Store returns the controlled store for read access.
func (c *Controller) Store() *Store {
	return c.store
}

// LoginSucceeded replaces all fields with the login outcome.
func (c *Controller) LoginSucceeded(ctx context.Context, accessToken, refreshToken string, profile Profile) {
	c.apply(ctx, EventLogin, nil, func(s *Store) bool {
		s.Replace(Session{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			Profile:      &profile,
		})
		return true
	})
}

// ProfileFetched overwrites the profile and leaves both tokens untouched.
func (c *Controller) ProfileFetched(ctx context.Context, profile Profile) {
	c.apply(ctx, EventProfileUpdated, nil, func(s *Store) bool {
		s.SetProfile(&profile)
		return true
	})
}

// Refreshed commits a rotated token pair, keeping the stored profile.
func (c *Controller) Refreshed(ctx context.Context, accessToken, refreshToken string) {
	c.apply(ctx, EventRefreshed, nil, func(s *Store) bool {
		s.SetCredentials(accessToken, refreshToken, nil)
		return true
	})
}

// LoggedOut clears the session after an explicit logout. It reports false,
// and publishes nothing, when the session was already empty.
func (c *Controller) LoggedOut(ctx context.Context) bool {
	return c.apply(ctx, EventLogout, nil, clearIfPresent)
}

// ForceLogout clears the session because it cannot be recovered. On an
// already empty session it does nothing, publishes no event and reports
// false.
func (c *Controller) ForceLogout(ctx context.Context, reason error) bool {
	applied := c.apply(ctx, EventForcedLogout, reason, clearIfPresent)
	if applied {
		c.logger.WithError(reason).Warn("session: forced logout")
	}
	return applied
}

func clearIfPresent(s *Store) bool {
	if s.Snapshot().Empty() {
		return false
	}
	s.Clear()
	return true
}

// Restore loads the persisted session into the store. A missing session is
// not an error.
func (c *Controller) Restore(ctx context.Context) error {
	if c.persister == nil {
		return nil
	}

	c.mu.Lock()
	sess, err := c.persister.Load(ctx)
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return err
	}
	c.store.Replace(*sess)
	snapshot := c.store.Snapshot()
	c.mu.Unlock()

	c.publish(Event{Kind: EventRestored, Session: snapshot})
	return nil
}

// Subscribe registers fn for every subsequent event. The returned function
// removes the subscription.
func (c *Controller) Subscribe(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}

	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

// apply runs mutate under the write lock. mutate returns false when there is
// no transition to persist or publish.
func (c *Controller) apply(ctx context.Context, kind EventKind, reason error, mutate func(*Store) bool) bool {
	c.mu.Lock()
	if !mutate(c.store) {
		c.mu.Unlock()
		return false
	}
	snapshot := c.store.Snapshot()
	c.persist(ctx, kind, snapshot)
	c.mu.Unlock()

	c.publish(Event{Kind: kind, Session: snapshot, Reason: reason})
	return true
}

func (c *Controller) persist(ctx context.Context, kind EventKind, snapshot Session) {
	if c.persister == nil {
		return
	}
	// The in-memory store stays authoritative.
	if err := c.persister.Save(context.WithoutCancel(ctx), &snapshot); err != nil {
		c.logger.WithError(err).WithField("event", kind.String()).Warn("session: persist failed")
	}
}

func (c *Controller) publish(event Event) {
	c.subMu.RLock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range fns {
		fn(event)
	}
}
