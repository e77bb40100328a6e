package acore

import (
	"context"
	"time"
)

// PeriodicTimer invokes a callback once per period on its executor until
// stopped. Pause suspends rescheduling without losing the period; SetPeriod
// re-aims the pending expiry relative to the previous tick; Restart re-aims
// relative to now.
//
// The default executor runs each tick on its own goroutine; WithExecutor
// routes ticks elsewhere (for example onto a shared serializer's worker).
type PeriodicTimer struct {
	s    *Serializer
	exec Executor

	period  time.Duration
	fn      func()
	timer   *time.Timer
	last    time.Time
	gen     uint64 // invalidates expiries armed before the latest change
	running bool
	paused  bool
}

// NewPeriodicTimer creates a timer that is not yet running.
func NewPeriodicTimer(opts ...Option) *PeriodicTimer {
	c := newConfig(opts)
	exec := c.exec
	if exec == nil {
		exec = func(fn func()) { go fn() }
	}
	return &PeriodicTimer{s: c.ser, exec: exec}
}

// Start begins ticking every period. Starting a running timer rearms it
// with the new period and callback.
func (p *PeriodicTimer) Start(period time.Duration, fn func()) {
	if period <= 0 {
		panic("acore: nonpositive timer period")
	}
	if fn == nil {
		panic("acore: nil timer callback")
	}
	p.s.mu.Lock()
	p.period = period
	p.fn = fn
	p.running = true
	p.paused = false
	p.last = time.Now()
	p.armLocked(period)
	p.s.mu.Unlock()
}

// armLocked schedules the next expiry after d, invalidating any expiry
// already in flight.
func (p *PeriodicTimer) armLocked(d time.Duration) {
	p.gen++
	gen := p.gen
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(d, func() { p.tick(gen) })
}

func (p *PeriodicTimer) tick(gen uint64) {
	p.s.mu.Lock()
	if !p.running || p.paused || gen != p.gen {
		p.s.mu.Unlock()
		return
	}
	p.last = time.Now()
	fn := p.fn
	p.armLocked(p.period)
	p.s.mu.Unlock()
	p.exec(fn)
}

// Stop halts ticking. Expiries already in flight are discarded.
func (p *PeriodicTimer) Stop() {
	p.s.mu.Lock()
	p.running = false
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
	}
	p.s.mu.Unlock()
}

// Pause suspends rescheduling; the configured period is retained.
func (p *PeriodicTimer) Pause() {
	p.s.mu.Lock()
	if p.running && !p.paused {
		p.paused = true
		p.gen++
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	p.s.mu.Unlock()
}

// Resume restarts ticking a full period from now.
func (p *PeriodicTimer) Resume() {
	p.s.mu.Lock()
	if p.running && p.paused {
		p.paused = false
		p.last = time.Now()
		p.armLocked(p.period)
	}
	p.s.mu.Unlock()
}

// SetPeriod changes the period. A pending expiry is re-aimed relative to
// the previous tick; an expiry instant already in the past fires
// immediately.
func (p *PeriodicTimer) SetPeriod(d time.Duration) {
	if d <= 0 {
		panic("acore: nonpositive timer period")
	}
	p.s.mu.Lock()
	p.period = d
	if p.running && !p.paused {
		delay := time.Until(p.last.Add(d))
		if delay < 0 {
			delay = 0
		}
		p.armLocked(delay)
	}
	p.s.mu.Unlock()
}

// Restart re-aims the next expiry a full period from now and clears a
// pause.
func (p *PeriodicTimer) Restart() {
	p.s.mu.Lock()
	if p.running {
		p.paused = false
		p.last = time.Now()
		p.armLocked(p.period)
	}
	p.s.mu.Unlock()
}

// Timer is a one-shot async wait that fires once after its duration, with
// cancel. Waits after the expiry complete immediately; waits after Stop
// fail with ErrCanceled.
type Timer struct {
	s       *Serializer
	fired   bool
	stopped bool
	q       waitList
	t       *time.Timer
}

// NewTimer creates a timer that fires after d.
func NewTimer(d time.Duration, opts ...Option) *Timer {
	c := newConfig(opts)
	tm := &Timer{s: c.ser}
	tm.t = time.AfterFunc(d, tm.fire)
	return tm
}

func (t *Timer) fire() {
	t.s.mu.Lock()
	if t.stopped {
		t.s.mu.Unlock()
		return
	}
	t.fired = true
	ws := t.q.take()
	t.s.mu.Unlock()
	completeAll(ws, nil)
}

// Wait blocks until the timer fires, the timer is stopped, or ctx ends.
func (t *Timer) Wait(ctx context.Context) error {
	t.s.mu.Lock()
	if t.fired {
		t.s.mu.Unlock()
		return nil
	}
	if t.stopped {
		t.s.mu.Unlock()
		return ErrCanceled
	}
	w := newWaiter(0)
	t.q.push(w)
	t.s.mu.Unlock()
	return await(ctx, t.s, &t.q, w)
}

// Stop cancels the timer; pending and future waits fail with ErrCanceled.
// Stopping an already-fired timer has no effect.
func (t *Timer) Stop() {
	t.s.mu.Lock()
	if t.fired || t.stopped {
		t.s.mu.Unlock()
		return
	}
	t.stopped = true
	t.t.Stop()
	ws := t.q.take()
	t.s.mu.Unlock()
	completeAll(ws, ErrCanceled)
}

// Sleep blocks for d, honoring ctx. It returns nil after a full sleep and
// the context's failure kind otherwise.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctxErr(ctx)
	}
}
