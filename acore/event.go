package acore

import (
	"context"
	"time"
)

// Event is a manual-reset broadcast flag. NotifyAll releases every current
// waiter and keeps the event signaled until Reset, so later waits complete
// immediately.
//
// Invariant: while signaled, the wait queue is empty.
type Event struct {
	s        *Serializer
	signaled bool
	q        waitList
}

// NewEvent creates an unsignaled event.
func NewEvent(opts ...Option) *Event {
	c := newConfig(opts)
	return &Event{s: c.ser}
}

// NotifyAll sets the flag and releases every queued waiter. Calling it again
// without an intervening Reset is a no-op on the queue, which is already
// empty.
func (e *Event) NotifyAll() {
	e.s.mu.Lock()
	e.signaled = true
	ws := e.q.take()
	e.s.mu.Unlock()
	completeAll(ws, nil)
}

// Reset clears the flag. Waiters released by a prior NotifyAll are not
// affected; there are none queued to fail.
func (e *Event) Reset() {
	e.s.mu.Lock()
	e.signaled = false
	e.s.mu.Unlock()
}

// TryWait reports whether the event is currently signaled, without waiting.
func (e *Event) TryWait() bool {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.signaled
}

// Wait blocks until the event is signaled or ctx ends.
func (e *Event) Wait(ctx context.Context) error {
	e.s.mu.Lock()
	if e.signaled {
		e.s.mu.Unlock()
		return nil
	}
	w := newWaiter(0)
	e.q.push(w)
	e.s.mu.Unlock()
	return await(ctx, e.s, &e.q, w)
}

// WaitFor is Wait bounded by d; expiry returns ErrTimeout.
func (e *Event) WaitFor(ctx context.Context, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return e.Wait(ctx)
}
