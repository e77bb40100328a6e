package acore

import (
	"container/list"
	"context"
)

// waiter is the enqueued representation of one blocking wait: a payload
// (permit count, token cost, or barrier phase), a 1-buffered completion
// channel, and its queue element. Waiters are mutated only under the owning
// serializer's mutex; membership in the queue (elem != nil) is the
// not-yet-completed marker, so completion happens exactly once.
type waiter struct {
	n     int
	phase uint64
	done  chan error
	elem  *list.Element
}

func newWaiter(n int) *waiter {
	return &waiter{n: n, done: make(chan error, 1)}
}

func (w *waiter) complete(err error) { w.done <- err }

// waitList is a FIFO of waiters. All methods require the serializer mutex.
type waitList struct{ l list.List }

func (q *waitList) push(w *waiter) { w.elem = q.l.PushBack(w) }

func (q *waitList) len() int { return q.l.Len() }

func (q *waitList) front() *waiter {
	if e := q.l.Front(); e != nil {
		return e.Value.(*waiter)
	}
	return nil
}

func (q *waitList) pop() *waiter {
	e := q.l.Front()
	if e == nil {
		return nil
	}
	w := e.Value.(*waiter)
	q.l.Remove(e)
	w.elem = nil
	return w
}

// remove detaches w if it is still queued; false means w already completed.
func (q *waitList) remove(w *waiter) bool {
	if w.elem == nil {
		return false
	}
	q.l.Remove(w.elem)
	w.elem = nil
	return true
}

// take detaches every queued waiter, in FIFO order.
func (q *waitList) take() []*waiter {
	ws := make([]*waiter, 0, q.l.Len())
	for {
		w := q.pop()
		if w == nil {
			return ws
		}
		ws = append(ws, w)
	}
}

// takeWhere detaches every queued waiter matching pred, in FIFO order.
func (q *waitList) takeWhere(pred func(*waiter) bool) []*waiter {
	var ws []*waiter
	for e := q.l.Front(); e != nil; {
		next := e.Next()
		w := e.Value.(*waiter)
		if pred(w) {
			q.l.Remove(e)
			w.elem = nil
			ws = append(ws, w)
		}
		e = next
	}
	return ws
}

func completeAll(ws []*waiter, err error) {
	for _, w := range ws {
		w.complete(err)
	}
}

// await parks the caller until w completes or ctx ends. If ctx wins while w
// is still queued, w is detached and the context's failure kind returned; if
// a completion raced the cancellation, the completion wins and the
// cancellation is a no-op.
func await(ctx context.Context, s *Serializer, q *waitList, w *waiter) error {
	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
	}
	s.mu.Lock()
	if q.remove(w) {
		s.mu.Unlock()
		return ctxErr(ctx)
	}
	s.mu.Unlock()
	return <-w.done
}
