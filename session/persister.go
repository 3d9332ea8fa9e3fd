package session

import (
	"context"
	"errors"
)

// ErrNoSession is returned by Persister.Load when nothing has been saved.
var ErrNoSession = errors.New("no persisted session")

// Persister keeps a session across process restarts.
type Persister interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context) error
}
