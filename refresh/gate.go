package refresh

import (
	"context"
	"sync"
)

// Ticket records the refresh generation a caller observed before sending.
type Ticket struct {
	gen uint64
}

// Gate is a single-flight refresh lock with a FIFO wait queue.
//
// The zero value is ready to use.
type Gate struct {
	mu       sync.Mutex
	inFlight bool
	gen      uint64
	lastOK   bool
	waiters  []chan struct{}
}

// InFlight reports whether a refresh currently holds the gate.
func (g *Gate) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Generation counts completed refresh attempts.
func (g *Gate) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

// Peek returns a ticket for the current generation without waiting. A
// caller that then calls Acquire while a refresh is in flight shares its
// outcome.
func (g *Gate) Peek() Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Ticket{gen: g.gen}
}

// Wait blocks until no refresh is in flight and returns a ticket for the
// current generation.
func (g *Gate) Wait(ctx context.Context) (Ticket, error) {
	g.mu.Lock()
	for g.inFlight {
		ch := g.enqueueLocked()
		g.mu.Unlock()
		if err := g.park(ctx, ch); err != nil {
			return Ticket{}, err
		}
		g.mu.Lock()
	}
	t := Ticket{gen: g.gen}
	g.mu.Unlock()
	return t, nil
}

// Acquire hands out the refresh lease when the gate is idle and no refresh
// has completed since t was issued. Otherwise it waits for the refresh in
// flight, if any, and reports whether the most recent refresh succeeded.
// Exactly one of lease or the shared outcome is meaningful.
func (g *Gate) Acquire(ctx context.Context, t Ticket) (lease *Lease, refreshed bool, err error) {
	g.mu.Lock()
	for {
		if !g.inFlight {
			if g.gen == t.gen {
				g.inFlight = true
				g.mu.Unlock()
				return &Lease{gate: g}, false, nil
			}
			ok := g.lastOK
			g.mu.Unlock()
			return nil, ok, nil
		}

		ch := g.enqueueLocked()
		g.mu.Unlock()
		if err := g.park(ctx, ch); err != nil {
			return nil, false, err
		}
		g.mu.Lock()
	}
}

func (g *Gate) enqueueLocked() chan struct{} {
	ch := make(chan struct{})
	g.waiters = append(g.waiters, ch)
	return ch
}

func (g *Gate) park(ctx context.Context, ch chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		for i, w := range g.waiters {
			if w == ch {
				g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
				break
			}
		}
		g.mu.Unlock()
		return ctx.Err()
	}
}

func (g *Gate) release(ok bool) {
	g.mu.Lock()
	g.inFlight = false
	g.gen++
	g.lastOK = ok
	waiters := g.waiters
	g.waiters = nil
	g.mu.Unlock()

	// Arrival order.
	for _, ch := range waiters {
		close(ch)
	}
}

// Lease is held by the single caller performing a refresh.
type Lease struct {
	gate *Gate
	once sync.Once
}

// Release frees the gate and records the refresh outcome. Only the first
// call has an effect.
func (l *Lease) Release(ok bool) {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.gate.release(ok)
	})
}
