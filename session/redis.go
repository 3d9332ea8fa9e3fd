package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisPersister stores one encoded session under a single key.
//
// Several clients (for example one per device) can share a Redis instance by
// using distinct ids.
type RedisPersister struct {
	redis  redis.UniversalClient
	prefix string
	id     string
	ttl    time.Duration
}

// NewRedisPersister builds a persister writing to "<prefix>:cs:<id>".
// A ttl of zero keeps the key until it is deleted.
func NewRedisPersister(client redis.UniversalClient, prefix, id string, ttl time.Duration) *RedisPersister {
	if strings.TrimSpace(id) == "" {
		id = "default"
	}
	return &RedisPersister{
		redis:  client,
		prefix: prefix,
		id:     id,
		ttl:    ttl,
	}
}

func (p *RedisPersister) key() string {
	return p.prefix + ":cs:" + p.id
}

// Load fetches and decodes the session key. A missing key yields ErrNoSession.
func (p *RedisPersister) Load(ctx context.Context) (*Session, error) {
	data, err := p.redis.Get(ctx, p.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return Decode(data)
}

// Save writes s with the configured TTL, or deletes the key when s is empty.
func (p *RedisPersister) Save(ctx context.Context, s *Session) error {
	if s == nil || s.Empty() {
		return p.Delete(ctx)
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := p.redis.Set(ctx, p.key(), data, p.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Delete is idempotent.
func (p *RedisPersister) Delete(ctx context.Context) error {
	if err := p.redis.Del(ctx, p.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
