package acore

import "context"

// Phase identifies one round of a Barrier. Phases increase monotonically
// each time the barrier opens.
type Phase uint64

// Barrier is reusable phase synchronization for a set of participants. The
// N-th arrival of a phase opens it: the phase counter advances, the arrival
// count resets, and every waiter of the opened phase is released.
type Barrier struct {
	s       *Serializer
	initial int
	parties int
	arrived int
	phase   uint64
	q       waitList // waiters tagged with the phase they wait on
}

// NewBarrier creates a barrier for the given number of participants.
func NewBarrier(parties int, opts ...Option) *Barrier {
	if parties <= 0 {
		panic("acore: barrier needs at least one party")
	}
	c := newConfig(opts)
	return &Barrier{s: c.ser, initial: parties, parties: parties}
}

// openLocked advances the phase and detaches every waiter whose phase just
// completed.
func (b *Barrier) openLocked() []*waiter {
	b.phase++
	b.arrived = 0
	ph := b.phase
	return b.q.takeWhere(func(w *waiter) bool { return w.phase < ph })
}

// ArriveAndWait registers one arrival and waits for the current phase to
// open.
func (b *Barrier) ArriveAndWait(ctx context.Context) error {
	b.s.mu.Lock()
	if b.parties == 0 {
		b.s.mu.Unlock()
		panic("acore: arrival on a barrier with no parties")
	}
	ph := b.phase
	b.arrived++
	if b.arrived == b.parties {
		ws := b.openLocked()
		b.s.mu.Unlock()
		completeAll(ws, nil)
		return nil
	}
	w := newWaiter(0)
	w.phase = ph
	b.q.push(w)
	b.s.mu.Unlock()
	return await(ctx, b.s, &b.q, w)
}

// Arrive registers one arrival without waiting and returns the phase token
// to pass to WaitPhase.
func (b *Barrier) Arrive() Phase {
	b.s.mu.Lock()
	if b.parties == 0 {
		b.s.mu.Unlock()
		panic("acore: arrival on a barrier with no parties")
	}
	ph := b.phase
	b.arrived++
	var ws []*waiter
	if b.arrived == b.parties {
		ws = b.openLocked()
	}
	b.s.mu.Unlock()
	completeAll(ws, nil)
	return Phase(ph)
}

// WaitPhase blocks until the given phase has completed. Phases that already
// completed return immediately.
func (b *Barrier) WaitPhase(ctx context.Context, ph Phase) error {
	b.s.mu.Lock()
	if b.phase > uint64(ph) {
		b.s.mu.Unlock()
		return nil
	}
	w := newWaiter(0)
	w.phase = uint64(ph)
	b.q.push(w)
	b.s.mu.Unlock()
	return await(ctx, b.s, &b.q, w)
}

// ArriveAndDrop registers one arrival, then permanently removes this
// participant, shrinking all future phases by one. The arrival is accounted
// first, so the drop may itself open the current phase.
func (b *Barrier) ArriveAndDrop() {
	b.s.mu.Lock()
	if b.parties == 0 {
		b.s.mu.Unlock()
		panic("acore: arrival on a barrier with no parties")
	}
	b.arrived++
	var ws []*waiter
	opened := b.arrived == b.parties
	if opened {
		ws = b.openLocked()
	}
	b.parties--
	if !opened && b.parties > 0 && b.arrived == b.parties {
		ws = b.openLocked()
	}
	b.s.mu.Unlock()
	completeAll(ws, nil)
}

// Reset aborts every queued waiter with ErrReset, zeroes the arrival count
// and restores the construction-time party count. The phase counter keeps
// advancing monotonically across resets.
func (b *Barrier) Reset() {
	b.s.mu.Lock()
	ws := b.q.take()
	b.arrived = 0
	b.parties = b.initial
	b.s.mu.Unlock()
	completeAll(ws, ErrReset)
}

// CurrentPhase reports the barrier's current phase.
func (b *Barrier) CurrentPhase() Phase {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return Phase(b.phase)
}
