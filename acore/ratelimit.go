package acore

import (
	"context"
	"math"
	"time"
)

// RateLimiter is a token bucket: capacity tokens, refilled continuously at
// capacity per refill period. Acquire costs are variable, so one acquire
// may debit many tokens (byte-rate limiting). Requests that cannot be
// served immediately queue FIFO; a single timer is armed for the instant
// the head's cost becomes affordable.
//
// Invariant: tokens never exceed capacity.
type RateLimiter struct {
	s        *Serializer
	capacity float64
	period   time.Duration
	tokens   float64
	last     time.Time
	q        waitList // waiter.n is the request's token cost
	timer    *time.Timer
	gen      uint64
	stopped  bool
}

// NewRateLimiter creates a full bucket of capacity tokens refilled at
// capacity per refillPeriod.
func NewRateLimiter(capacity int, refillPeriod time.Duration, opts ...Option) *RateLimiter {
	if capacity <= 0 {
		panic("acore: nonpositive rate limiter capacity")
	}
	if refillPeriod <= 0 {
		panic("acore: nonpositive refill period")
	}
	c := newConfig(opts)
	return &RateLimiter{
		s:        c.ser,
		capacity: float64(capacity),
		period:   refillPeriod,
		tokens:   float64(capacity),
		last:     time.Now(),
	}
}

// rateLocked is the refill rate in tokens per second.
func (l *RateLimiter) rateLocked() float64 {
	return l.capacity / l.period.Seconds()
}

func (l *RateLimiter) refillLocked(now time.Time) {
	elapsed := now.Sub(l.last)
	if elapsed <= 0 {
		return
	}
	l.tokens = math.Min(l.capacity, l.tokens+elapsed.Seconds()*l.rateLocked())
	l.last = now
}

// Acquire debits n tokens, waiting FIFO for refill when the bucket cannot
// cover the cost now. Costs above the bucket capacity can never be served
// and fail with ErrCostTooHigh.
func (l *RateLimiter) Acquire(ctx context.Context, n int) error {
	if n <= 0 {
		panic("acore: nonpositive token cost")
	}
	l.s.mu.Lock()
	if l.stopped {
		l.s.mu.Unlock()
		return ErrStopped
	}
	if float64(n) > l.capacity {
		l.s.mu.Unlock()
		return ErrCostTooHigh
	}
	l.refillLocked(time.Now())
	if l.q.len() == 0 && l.tokens >= float64(n) {
		l.tokens -= float64(n)
		l.s.mu.Unlock()
		return nil
	}
	w := newWaiter(n)
	l.q.push(w)
	l.armLocked()
	l.s.mu.Unlock()
	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
	}
	l.s.mu.Lock()
	wasHead := l.q.front() == w
	if l.q.remove(w) {
		if wasHead {
			l.armLocked()
		}
		l.s.mu.Unlock()
		return ctxErr(ctx)
	}
	l.s.mu.Unlock()
	// Completed in the same instant the context ended; the tokens are spent,
	// so the completion wins.
	return <-w.done
}

// AcquireFor is Acquire bounded by d; expiry returns ErrTimeout.
func (l *RateLimiter) AcquireFor(ctx context.Context, d time.Duration, n int) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return l.Acquire(ctx, n)
}

// TryAcquire debits n tokens without waiting.
func (l *RateLimiter) TryAcquire(n int) bool {
	if n <= 0 {
		panic("acore: nonpositive token cost")
	}
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.stopped || float64(n) > l.capacity {
		return false
	}
	l.refillLocked(time.Now())
	if l.q.len() == 0 && l.tokens >= float64(n) {
		l.tokens -= float64(n)
		return true
	}
	return false
}

// armLocked schedules the refill timer for the earliest instant the head
// request becomes affordable, or stops it when nothing is queued.
func (l *RateLimiter) armLocked() {
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
	}
	if l.stopped {
		return
	}
	head := l.q.front()
	if head == nil {
		return
	}
	need := float64(head.n) - l.tokens
	var delay time.Duration
	if need > 0 {
		delay = time.Duration(math.Ceil(need / l.rateLocked() * float64(time.Second)))
	}
	gen := l.gen
	l.timer = time.AfterFunc(delay, func() { l.fire(gen) })
}

func (l *RateLimiter) fire(gen uint64) {
	l.s.mu.Lock()
	if l.stopped || gen != l.gen {
		l.s.mu.Unlock()
		return
	}
	l.refillLocked(time.Now())
	ws := l.grantLocked()
	l.armLocked()
	l.s.mu.Unlock()
	completeAll(ws, nil)
}

// grantLocked satisfies queued requests head-first while tokens last.
func (l *RateLimiter) grantLocked() []*waiter {
	var ws []*waiter
	for {
		w := l.q.front()
		if w == nil || l.tokens < float64(w.n) {
			return ws
		}
		l.tokens -= float64(w.n)
		l.q.pop()
		ws = append(ws, w)
	}
}

// SetRate changes the bucket to capacity tokens per period. Accrual up to
// now happens at the old rate; the head timer is re-aimed at the new one.
// Tokens above the new capacity are clipped.
func (l *RateLimiter) SetRate(capacity int, period time.Duration) {
	if capacity <= 0 {
		panic("acore: nonpositive rate limiter capacity")
	}
	if period <= 0 {
		panic("acore: nonpositive refill period")
	}
	l.s.mu.Lock()
	if l.stopped {
		l.s.mu.Unlock()
		return
	}
	l.refillLocked(time.Now())
	l.capacity = float64(capacity)
	l.period = period
	l.tokens = math.Min(l.tokens, l.capacity)
	ws := l.grantLocked()
	l.armLocked()
	l.s.mu.Unlock()
	completeAll(ws, nil)
}

// Reset refills the bucket to capacity, satisfying queued requests FIFO.
func (l *RateLimiter) Reset() {
	l.s.mu.Lock()
	if l.stopped {
		l.s.mu.Unlock()
		return
	}
	l.tokens = l.capacity
	l.last = time.Now()
	ws := l.grantLocked()
	l.armLocked()
	l.s.mu.Unlock()
	completeAll(ws, nil)
}

// Stop fails every queued request with ErrStopped and rejects future
// acquires.
func (l *RateLimiter) Stop() {
	l.s.mu.Lock()
	if l.stopped {
		l.s.mu.Unlock()
		return
	}
	l.stopped = true
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
	}
	ws := l.q.take()
	l.s.mu.Unlock()
	completeAll(ws, ErrStopped)
}

// Tokens reports the current token balance after a refill to now.
func (l *RateLimiter) Tokens() float64 {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.refillLocked(time.Now())
	return l.tokens
}
