package acore

import (
	"context"
	"time"
)

// Queue is an unbounded FIFO whose element count is mirrored by an embedded
// semaphore on the same serializer: one permit per queued element, both
// updated under one mutex. Readers acquire a permit and pop; the permit
// guarantees the pop is non-empty.
type Queue[T any] struct {
	s       *Serializer
	sem     *Semaphore
	items   []T
	stopped bool
}

// NewQueue creates an empty queue.
func NewQueue[T any](opts ...Option) *Queue[T] {
	c := newConfig(opts)
	q := &Queue[T]{s: c.ser}
	q.sem = NewSemaphore(0, WithSerializer(c.ser))
	return q
}

// acquireRead claims one permit, checking the stopped flag under the same
// mutex that Stop takes, so a read can never enqueue behind a shutdown.
func (q *Queue[T]) acquireRead(ctx context.Context) error {
	q.s.mu.Lock()
	if q.stopped {
		q.s.mu.Unlock()
		return ErrStopped
	}
	if q.sem.tryAcquireLocked(1) {
		q.s.mu.Unlock()
		return nil
	}
	w := newWaiter(1)
	q.sem.q.push(w)
	q.s.mu.Unlock()
	return await(ctx, q.s, &q.sem.q, w)
}

// Push appends v and releases one permit. Pushing to a stopped queue
// returns ErrStopped.
func (q *Queue[T]) Push(v T) error {
	q.s.mu.Lock()
	if q.stopped {
		q.s.mu.Unlock()
		return ErrStopped
	}
	q.items = append(q.items, v)
	ws := q.sem.releaseLocked(1)
	if q.sem.permits > len(q.items) {
		panic("acore: queue invariant violated: more permits than elements")
	}
	q.s.mu.Unlock()
	completeAll(ws, nil)
	return nil
}

// Read pops the head element, waiting until one is available.
func (q *Queue[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if err := q.acquireRead(ctx); err != nil {
		return zero, err
	}
	q.s.mu.Lock()
	if q.stopped {
		q.s.mu.Unlock()
		return zero, ErrStopped
	}
	if len(q.items) == 0 {
		panic("acore: queue invariant violated: permit granted without element")
	}
	v := q.items[0]
	q.items = q.items[1:]
	q.s.mu.Unlock()
	return v, nil
}

// ReadN pops between 1 and max elements: it waits for the first, then
// opportunistically claims up to max-1 more that are already available.
func (q *Queue[T]) ReadN(ctx context.Context, max int) ([]T, error) {
	if max <= 0 {
		panic("acore: nonpositive batch size")
	}
	if err := q.acquireRead(ctx); err != nil {
		return nil, err
	}
	q.s.mu.Lock()
	if q.stopped {
		q.s.mu.Unlock()
		return nil, ErrStopped
	}
	n := 1
	for n < max && q.sem.tryAcquireLocked(1) {
		n++
	}
	if len(q.items) < n {
		panic("acore: queue invariant violated: permit granted without element")
	}
	out := make([]T, n)
	copy(out, q.items[:n])
	q.items = q.items[n:]
	q.s.mu.Unlock()
	return out, nil
}

// ReadNFor is ReadN bounded by d; expiry while waiting for the first
// element returns ErrTimeout.
func (q *Queue[T]) ReadNFor(ctx context.Context, d time.Duration, max int) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return q.ReadN(ctx, max)
}

// Stop clears the queue and its permits together and fails pending and
// future readers with ErrStopped, keeping the permit/element invariant
// intact through shutdown.
func (q *Queue[T]) Stop() {
	q.s.mu.Lock()
	if q.stopped {
		q.s.mu.Unlock()
		return
	}
	q.stopped = true
	q.items = nil
	q.sem.permits = 0
	ws := q.sem.q.take()
	q.s.mu.Unlock()
	completeAll(ws, ErrStopped)
}

// Len reports the number of queued elements.
func (q *Queue[T]) Len() int {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	return len(q.items)
}

// permits exposes the embedded semaphore's balance for invariant checks.
func (q *Queue[T]) permits() int {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	return q.sem.permits
}
