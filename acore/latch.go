package acore

import (
	"context"
	"time"
)

// Latch is a one-shot monotonic countdown. When the count reaches zero it
// fires: all waiters are released and every later wait completes
// immediately. There is no reset.
type Latch struct {
	s     *Serializer
	count int
	q     waitList
}

// NewLatch creates a latch with the given initial count. A zero initial
// count constructs an already-fired latch. Negative counts panic.
func NewLatch(initial int, opts ...Option) *Latch {
	if initial < 0 {
		panic("acore: negative latch count")
	}
	c := newConfig(opts)
	return &Latch{s: c.ser, count: initial}
}

// CountDown decreases the count by n and fires the latch on the transition
// to zero. Counting below zero is a programmer error and panics.
func (l *Latch) CountDown(n int) {
	if n <= 0 {
		return
	}
	l.s.mu.Lock()
	if n > l.count {
		l.s.mu.Unlock()
		panic("acore: latch count underflow")
	}
	l.count -= n
	var ws []*waiter
	if l.count == 0 {
		ws = l.q.take()
	}
	l.s.mu.Unlock()
	completeAll(ws, nil)
}

// TryWait reports whether the latch has fired.
func (l *Latch) TryWait() bool {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.count == 0
}

// Wait blocks until the latch fires or ctx ends.
func (l *Latch) Wait(ctx context.Context) error {
	l.s.mu.Lock()
	if l.count == 0 {
		l.s.mu.Unlock()
		return nil
	}
	w := newWaiter(0)
	l.q.push(w)
	l.s.mu.Unlock()
	return await(ctx, l.s, &l.q, w)
}

// WaitFor is Wait bounded by d; expiry returns ErrTimeout.
func (l *Latch) WaitFor(ctx context.Context, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return l.Wait(ctx)
}

// ArriveAndWait counts down by n and waits for the latch to fire.
func (l *Latch) ArriveAndWait(ctx context.Context, n int) error {
	l.s.mu.Lock()
	if n < 0 || n > l.count {
		l.s.mu.Unlock()
		panic("acore: latch count underflow")
	}
	l.count -= n
	if l.count == 0 {
		ws := l.q.take()
		l.s.mu.Unlock()
		completeAll(ws, nil)
		return nil
	}
	w := newWaiter(0)
	l.q.push(w)
	l.s.mu.Unlock()
	return await(ctx, l.s, &l.q, w)
}
