// Package acore provides asynchronous coordination primitives: event,
// auto-reset event, latch, waitgroup, semaphore, mutex, barrier, timers,
// rate limiter, queue and dispatcher. All of them share one contract:
// waiting is a blocking method taking a context.Context, waiters are served
// FIFO, and a wait completes exactly once with success, ErrTimeout,
// ErrCanceled, ErrStopped, ErrReset (barriers), or the context's error.
//
// Every primitive is bound to a Serializer, the serialization boundary that
// guards its wait queue and counters. By default each primitive owns one;
// WithSerializer shares a single serializer across a group of tightly
// cooperating primitives, removing cross-serializer hops between them.
//
// Usage constraint: code running on a shared serializer's worker (a posted
// callback) must not synchronously wait on a primitive bound to the same
// serializer; that deadlocks, exactly as re-entering any single-threaded
// execution context does.
package acore
