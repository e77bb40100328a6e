package acore

import (
	"log/slog"
	"sync"

	"github.com/standly/go-acore/internal/metrics"
)

// SubscriberID identifies one subscription on a Dispatcher.
type SubscriberID uint64

// Dispatcher broadcasts published values to independent per-subscriber
// queues. Publish is serialized against Subscribe and Unsubscribe: once
// Subscribe has returned, the subscriber's queue receives every later
// publish until Unsubscribe.
type Dispatcher[T any] struct {
	mu     sync.RWMutex
	subs   map[SubscriberID]*Queue[T]
	nextID SubscriberID
	logger *slog.Logger
	closed bool
}

// NewDispatcher creates a dispatcher with no subscribers.
func NewDispatcher[T any](opts ...Option) *Dispatcher[T] {
	c := newConfig(opts)
	return &Dispatcher[T]{
		subs:   make(map[SubscriberID]*Queue[T]),
		logger: c.logger,
	}
}

// Subscribe registers a new subscriber and returns its id and queue. The
// registration is complete when Subscribe returns; every later Publish is
// delivered. Fails with ErrStopped after Close.
func (d *Dispatcher[T]) Subscribe() (SubscriberID, *Queue[T], error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, nil, ErrStopped
	}
	prev := len(d.subs)
	d.nextID++
	id := d.nextID
	q := NewQueue[T]()
	d.subs[id] = q
	cur := len(d.subs)
	d.mu.Unlock()
	metrics.SetDispatcherSubscribers(cur)
	if prev == 0 && cur == 1 {
		d.logger.Info("subscribers_first_attached")
	}
	return id, q, nil
}

// Unsubscribe removes a subscriber and stops its queue; safe to call with
// an id that is already gone.
func (d *Dispatcher[T]) Unsubscribe(id SubscriberID) {
	d.mu.Lock()
	q, existed := d.subs[id]
	if existed {
		delete(d.subs, id)
	}
	cur := len(d.subs)
	d.mu.Unlock()
	if !existed {
		return
	}
	q.Stop()
	metrics.SetDispatcherSubscribers(cur)
	if cur == 0 {
		d.logger.Info("subscribers_last_detached")
	}
}

// Publish delivers one copy of v to every currently subscribed queue.
func (d *Dispatcher[T]) Publish(v T) {
	qs := d.snapshot()
	metrics.IncDispatcherPublish()
	metrics.SetDispatcherFanout(len(qs))
	// queue depth sampling
	if len(qs) > 0 {
		max := 0
		sum := 0
		for _, q := range qs {
			l := q.Len()
			if l > max {
				max = l
			}
			sum += l
		}
		metrics.SetQueueDepth(max, sum/len(qs))
	}
	for _, q := range qs {
		if err := q.Push(v); err != nil {
			// Raced an Unsubscribe; the stopped queue drops the copy.
			metrics.IncDispatcherDrop()
		}
	}
}

// snapshot returns a slice copy of current subscriber queues (read-only use).
func (d *Dispatcher[T]) snapshot() []*Queue[T] {
	d.mu.RLock()
	qs := make([]*Queue[T], 0, len(d.subs))
	for _, q := range d.subs {
		qs = append(qs, q)
	}
	d.mu.RUnlock()
	return qs
}

// SubscriberCount reports the number of active subscribers. Because it
// takes the dispatcher lock it also serves as a barrier: a Subscribe
// observed by SubscriberCount is observed by every later Publish.
func (d *Dispatcher[T]) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Close stops every subscriber queue and rejects further subscriptions.
func (d *Dispatcher[T]) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	qs := make([]*Queue[T], 0, len(d.subs))
	for _, q := range d.subs {
		qs = append(qs, q)
	}
	d.subs = make(map[SubscriberID]*Queue[T])
	d.mu.Unlock()
	for _, q := range qs {
		q.Stop()
	}
	metrics.SetDispatcherSubscribers(0)
}
