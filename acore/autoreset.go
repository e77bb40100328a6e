package acore

import (
	"context"
	"time"
)

// AutoResetEvent is a single-wake edge-triggered flag. Signals are counted,
// not coalesced: each signal wakes exactly one waiter, or is banked for the
// next Wait.
//
// Invariants: a positive signal count implies an empty queue, and a
// non-empty queue implies a zero signal count.
type AutoResetEvent struct {
	s     *Serializer
	count int
	q     waitList
}

// NewAutoResetEvent creates an event with no banked signals.
func NewAutoResetEvent(opts ...Option) *AutoResetEvent {
	c := newConfig(opts)
	return &AutoResetEvent{s: c.ser}
}

// Notify releases up to n queued waiters in FIFO order; surplus signals are
// banked for future waits.
func (e *AutoResetEvent) Notify(n int) {
	if n <= 0 {
		return
	}
	e.s.mu.Lock()
	var ws []*waiter
	for i := 0; i < n; i++ {
		if w := e.q.pop(); w != nil {
			ws = append(ws, w)
		} else {
			e.count++
		}
	}
	e.s.mu.Unlock()
	completeAll(ws, nil)
}

// TryWait consumes one banked signal if available.
func (e *AutoResetEvent) TryWait() bool {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if e.count > 0 {
		e.count--
		return true
	}
	return false
}

// Wait consumes one banked signal or blocks until notified.
func (e *AutoResetEvent) Wait(ctx context.Context) error {
	e.s.mu.Lock()
	if e.count > 0 {
		e.count--
		e.s.mu.Unlock()
		return nil
	}
	w := newWaiter(0)
	e.q.push(w)
	e.s.mu.Unlock()
	return await(ctx, e.s, &e.q, w)
}

// WaitFor is Wait bounded by d; expiry returns ErrTimeout.
func (e *AutoResetEvent) WaitFor(ctx context.Context, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return e.Wait(ctx)
}

// Reset discards banked signals. Queued waiters are untouched; with any
// waiter queued the count is already zero.
func (e *AutoResetEvent) Reset() {
	e.s.mu.Lock()
	e.count = 0
	e.s.mu.Unlock()
}

// CancelAll fails every queued waiter with ErrCanceled.
func (e *AutoResetEvent) CancelAll() {
	e.s.mu.Lock()
	ws := e.q.take()
	e.s.mu.Unlock()
	completeAll(ws, ErrCanceled)
}
