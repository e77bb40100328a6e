package acore

import (
	"context"
	"sync/atomic"
	"time"
)

// WaitGroup tracks a counter of outstanding work and releases waiters when
// it reaches zero, like sync.WaitGroup with context-aware waiting.
//
// Add is synchronous and linearizable: the counter is an atomic integer, so
// once Add(k) returns, every subsequent Wait observes the updated count.
// Only the transition through zero takes the serializer mutex, to drain the
// queue after re-checking the count under it. This is what makes the
// classic sequence
//
//	wg.Add(k); for range k { go work() }; wg.Wait(ctx)
//
// safe: Wait can never slip in between Add and the spawned work.
type WaitGroup struct {
	s     *Serializer
	count atomic.Int64
	q     waitList
}

// NewWaitGroup creates a waitgroup with count zero.
func NewWaitGroup(opts ...Option) *WaitGroup {
	c := newConfig(opts)
	return &WaitGroup{s: c.ser}
}

// Add adjusts the counter by delta, which may be negative. A counter going
// negative is a programmer error and panics. On the transition to zero all
// waiters are released.
func (g *WaitGroup) Add(delta int) {
	n := g.count.Add(int64(delta))
	if n < 0 {
		panic("acore: negative waitgroup counter")
	}
	if n != 0 {
		return
	}
	g.s.mu.Lock()
	var ws []*waiter
	// A concurrent Add may have raised the count again; only a zero
	// observed under the mutex releases the queue.
	if g.count.Load() == 0 {
		ws = g.q.take()
	}
	g.s.mu.Unlock()
	completeAll(ws, nil)
}

// Done decrements the counter by one.
func (g *WaitGroup) Done() { g.Add(-1) }

// TryWait reports whether the counter is currently zero.
func (g *WaitGroup) TryWait() bool { return g.count.Load() == 0 }

// Wait blocks until the counter reaches zero or ctx ends.
func (g *WaitGroup) Wait(ctx context.Context) error {
	g.s.mu.Lock()
	if g.count.Load() == 0 {
		g.s.mu.Unlock()
		return nil
	}
	w := newWaiter(0)
	g.q.push(w)
	g.s.mu.Unlock()
	return await(ctx, g.s, &g.q, w)
}

// WaitFor is Wait bounded by d; expiry returns ErrTimeout.
func (g *WaitGroup) WaitFor(ctx context.Context, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return g.Wait(ctx)
}
