package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisPersisterTest(t *testing.T, ttl time.Duration) (*RedisPersister, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisPersister(rdb, "ac", "device-1", ttl), mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestRedisPersisterRoundTrip(t *testing.T) {
	p, mr, done := newRedisPersisterTest(t, 0)
	defer done()
	ctx := context.Background()

	if _, err := p.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	prof := testProfile()
	if err := p.Save(ctx, &Session{AccessToken: "a1", RefreshToken: "r1", Profile: &prof}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("ac:cs:device-1") {
		t.Fatalf("expected key to be written")
	}

	got, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.AccessToken != "a1" || got.Profile == nil || got.Profile.Email != prof.Email {
		t.Fatalf("unexpected loaded session %+v", got)
	}

	if err := p.Save(ctx, &Session{}); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	if mr.Exists("ac:cs:device-1") {
		t.Fatalf("empty session must delete the key")
	}
	if err := p.Delete(ctx); err != nil {
		t.Fatalf("idempotent delete: %v", err)
	}
}

func TestRedisPersisterTTL(t *testing.T) {
	p, mr, done := newRedisPersisterTest(t, time.Hour)
	defer done()

	if err := p.Save(context.Background(), &Session{AccessToken: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("ac:cs:device-1"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := p.Load(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestRedisPersisterUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	p := NewRedisPersister(rdb, "ac", "", 0)
	mr.Close()

	if _, err := p.Load(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestFilePersisterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session")
	p := NewFilePersister(path)
	ctx := context.Background()

	if _, err := p.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if err := p.Save(ctx, &Session{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}

	got, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.RefreshToken != "r1" {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := p.Delete(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := p.Delete(ctx); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestFilePersisterCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	if err := os.WriteFile(path, []byte{42, 1, 2}, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFilePersister(path).Load(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}
