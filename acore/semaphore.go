package acore

import (
	"context"
	"time"
)

// Semaphore is a counted set of permits with FIFO waiters. Fairness is over
// requests: Release satisfies queued requests head-first while permits
// suffice and stops at the first request that does not fit, even if a later,
// smaller one would.
//
// Invariant: while any waiter is queued, the available permits are smaller
// than the head's request; with single-permit requests that reduces to
// "permits > 0 implies an empty queue".
type Semaphore struct {
	s       *Serializer
	permits int
	q       waitList
}

// NewSemaphore creates a semaphore holding the given number of permits.
func NewSemaphore(permits int, opts ...Option) *Semaphore {
	if permits < 0 {
		panic("acore: negative semaphore permits")
	}
	c := newConfig(opts)
	return &Semaphore{s: c.ser, permits: permits}
}

// Acquire takes n permits, blocking FIFO behind earlier requests. If ctx
// ends first the request is withdrawn; a grant racing the cancellation is
// rolled back (the permits are returned) and the cancellation reported.
func (m *Semaphore) Acquire(ctx context.Context, n int) error {
	if n <= 0 {
		panic("acore: nonpositive permit count")
	}
	m.s.mu.Lock()
	if m.tryAcquireLocked(n) {
		m.s.mu.Unlock()
		return nil
	}
	w := newWaiter(n)
	m.q.push(w)
	m.s.mu.Unlock()
	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
	}
	m.s.mu.Lock()
	if m.q.remove(w) {
		m.s.mu.Unlock()
		return ctxErr(ctx)
	}
	m.s.mu.Unlock()
	if err := <-w.done; err != nil {
		return err
	}
	m.Release(n)
	return ctxErr(ctx)
}

// AcquireFor is Acquire bounded by d; expiry returns ErrTimeout.
func (m *Semaphore) AcquireFor(ctx context.Context, d time.Duration, n int) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return m.Acquire(ctx, n)
}

// TryAcquire takes n permits without waiting. It succeeds only when no
// earlier request is queued and the permits suffice.
func (m *Semaphore) TryAcquire(n int) bool {
	if n <= 0 {
		panic("acore: nonpositive permit count")
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.tryAcquireLocked(n)
}

// Release returns n permits and grants as many queued requests as now fit,
// in FIFO order.
func (m *Semaphore) Release(n int) {
	if n <= 0 {
		panic("acore: nonpositive permit count")
	}
	m.s.mu.Lock()
	m.permits += n
	ws := m.grantLocked()
	m.s.mu.Unlock()
	completeAll(ws, nil)
}

// CancelAll fails every queued request with ErrCanceled. Permits are
// unchanged.
func (m *Semaphore) CancelAll() {
	m.s.mu.Lock()
	ws := m.q.take()
	m.s.mu.Unlock()
	completeAll(ws, ErrCanceled)
}

// Permits reports the currently available permits.
func (m *Semaphore) Permits() int {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.permits
}

// Locked cores, shared with primitives composed over a semaphore on the
// same serializer (Queue uses them to keep counter and contents in step
// under one mutex).

func (m *Semaphore) tryAcquireLocked(n int) bool {
	if m.q.len() == 0 && m.permits >= n {
		m.permits -= n
		return true
	}
	return false
}

func (m *Semaphore) releaseLocked(n int) []*waiter {
	m.permits += n
	return m.grantLocked()
}

func (m *Semaphore) grantLocked() []*waiter {
	var ws []*waiter
	for {
		w := m.q.front()
		if w == nil || w.n > m.permits {
			return ws
		}
		m.permits -= w.n
		m.q.pop()
		ws = append(ws, w)
	}
}
