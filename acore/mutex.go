package acore

import (
	"context"
	"sync/atomic"
	"time"
)

// Mutex is a single-owner async lock: a semaphore of one permit with
// ownership tracking. Lock hands out a *LockGuard whose Unlock releases
// exactly once; releasing a guard twice, or a guard from a previous
// ownership, is rejected.
type Mutex struct {
	sem   *Semaphore
	epoch atomic.Uint64
}

// NewMutex creates an unlocked mutex.
func NewMutex(opts ...Option) *Mutex {
	return &Mutex{sem: NewSemaphore(1, opts...)}
}

// Lock blocks FIFO behind earlier lockers until the mutex is granted or ctx
// ends.
func (m *Mutex) Lock(ctx context.Context) (*LockGuard, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return m.newGuard(), nil
}

// LockFor is Lock bounded by d; expiry removes the waiter and returns
// ErrTimeout.
func (m *Mutex) LockFor(ctx context.Context, d time.Duration) (*LockGuard, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return m.Lock(ctx)
}

// TryLock acquires the mutex without waiting.
func (m *Mutex) TryLock() (*LockGuard, bool) {
	if !m.sem.TryAcquire(1) {
		return nil, false
	}
	return m.newGuard(), true
}

func (m *Mutex) newGuard() *LockGuard {
	return &LockGuard{m: m, epoch: m.epoch.Add(1)}
}

// LockGuard is the scoped ownership of a Mutex. Callers release with
// defer guard.Unlock() so every exit path unlocks exactly once.
type LockGuard struct {
	m        *Mutex
	epoch    uint64
	released atomic.Bool
}

// Unlock releases the mutex. A second Unlock on the same guard, or an
// Unlock of a guard from an earlier ownership, is a rejected no-op.
func (g *LockGuard) Unlock() {
	if g.released.Swap(true) {
		return
	}
	if g.m.epoch.Load() != g.epoch {
		return
	}
	g.m.sem.Release(1)
}
