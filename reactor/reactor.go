// Package reactor bridges SRT socket readiness to blocking waits. One
// background poll loop drives the SRT user-socket epoll; per-socket waiters
// are completed exactly once with the delivered event mask or a failure.
//
// An error edge is terminal for a socket: both directions' waiters fail with
// the SRT error and the socket is detached from the epoll. The caller must
// drop the socket or register fresh after reopening it.
package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/standly/go-acore/acore"
	"github.com/standly/go-acore/internal/logging"
	"github.com/standly/go-acore/internal/metrics"
	"github.com/standly/go-acore/srt"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	// ErrAlreadyPending rejects a second concurrent waiter for the same
	// socket and direction.
	ErrAlreadyPending = errors.New("reactor: wait already pending")
	// ErrClosed fails waits against a closed reactor and residual waiters
	// at shutdown.
	ErrClosed = errors.New("reactor: closed")
)

type direction int

const (
	dirRead direction = iota
	dirWrite
)

func (d direction) label() string {
	if d == dirRead {
		return metrics.DirRead
	}
	return metrics.DirWrite
}

type opResult struct {
	events srt.Events
	err    error
}

type opWaiter struct {
	done chan opResult
}

// eventOp is the per-socket registration: at most one waiter per direction
// plus the mask currently installed in the epoll.
type eventOp struct {
	waiters [2]*opWaiter
}

// mask is the epoll mask for the present waiters; the error edge is always
// desired.
func (op *eventOp) mask() srt.Events {
	ev := srt.EventErr
	if op.waiters[dirRead] != nil {
		ev |= srt.EventIn
	}
	if op.waiters[dirWrite] != nil {
		ev |= srt.EventOut
	}
	return ev
}

func (op *eventOp) empty() bool {
	return op.waiters[dirRead] == nil && op.waiters[dirWrite] == nil
}

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultEventCap     = 100
)

// Reactor owns one SRT epoll and one poll goroutine. The socket map is
// confined to a serializer: registration, cancellation, event handling and
// shutdown all run on it, so no two of them ever interleave.
type Reactor struct {
	api          srt.API
	eid          int
	ser          *acore.Serializer
	ops          map[srt.Socket]*eventOp
	logger       *slog.Logger
	pollInterval time.Duration
	eventCap     int
	running      atomic.Bool
	closed       atomic.Bool
	closeOnce    sync.Once
	wg           sync.WaitGroup
}

type Option func(*Reactor)

// WithLogger overrides the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reactor) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithPollInterval sets the epoll wait timeout; shorter intervals react
// faster to registrations racing an idle poll, at the cost of wakeups.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reactor) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithEventCapacity bounds how many readiness events one poll can deliver.
func WithEventCapacity(n int) Option {
	return func(r *Reactor) {
		if n > 0 {
			r.eventCap = n
		}
	}
}

// New creates the epoll and starts the poll loop.
func New(api srt.API, opts ...Option) (*Reactor, error) {
	r := &Reactor{
		api:          api,
		ser:          acore.NewSerializer(),
		ops:          make(map[srt.Socket]*eventOp),
		logger:       logging.L(),
		pollInterval: defaultPollInterval,
		eventCap:     defaultEventCap,
	}
	for _, o := range opts {
		o(r)
	}
	eid, err := api.EpollCreate()
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll create: %w", err)
	}
	r.eid = eid
	r.running.Store(true)
	r.wg.Add(1)
	go r.pollLoop()
	r.logger.Info("reactor_started", "eid", eid)
	return r, nil
}

// WaitReadable blocks until sock is readable, reports an error edge, or ctx
// ends. The returned events are the mask the poll delivered; on an error
// edge they accompany the SRT error so callers can inspect which edges were
// also indicated.
func (r *Reactor) WaitReadable(ctx context.Context, sock srt.Socket) (srt.Events, error) {
	return r.wait(ctx, sock, dirRead)
}

// WaitWritable is WaitReadable for the write direction.
func (r *Reactor) WaitWritable(ctx context.Context, sock srt.Socket) (srt.Events, error) {
	return r.wait(ctx, sock, dirWrite)
}

func (r *Reactor) wait(ctx context.Context, sock srt.Socket, dir direction) (srt.Events, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}
	w := &opWaiter{done: make(chan opResult, 1)}
	if err := r.ser.Post(func() { r.register(sock, dir, w) }); err != nil {
		return 0, ErrClosed
	}
	select {
	case res := <-w.done:
		return res.events, res.err
	case <-ctx.Done():
	}
	// Withdraw the waiter on the strand. If a completion got there first the
	// cancel finds nothing and the completion wins; if the strand already
	// shut down, the shutdown pass has completed the waiter.
	cause := ctxError(ctx)
	_ = r.ser.Post(func() { r.cancel(sock, dir, w, cause) })
	res := <-w.done
	return res.events, res.err
}

// register installs w as the direction's waiter, growing the epoll
// registration as needed. Runs on the strand.
func (r *Reactor) register(sock srt.Socket, dir direction, w *opWaiter) {
	op, exists := r.ops[sock]
	if !exists {
		op = &eventOp{}
	}
	if op.waiters[dir] != nil {
		w.done <- opResult{err: fmt.Errorf("%w: socket %d %s", ErrAlreadyPending, sock, dir.label())}
		return
	}
	old := op.mask()
	op.waiters[dir] = w
	var err error
	if !exists {
		err = r.api.EpollAdd(r.eid, sock, op.mask())
	} else if m := op.mask(); m != old {
		err = r.api.EpollUpdate(r.eid, sock, m)
	}
	if err != nil {
		op.waiters[dir] = nil
		metrics.IncError(metrics.ErrEpollCtl)
		w.done <- opResult{err: fmt.Errorf("reactor: epoll register: %w", err)}
		return
	}
	if !exists {
		r.ops[sock] = op
		metrics.SetReactorSockets(len(r.ops))
	}
}

// cancel withdraws w if it is still registered and completes it with cause.
// Runs on the strand.
func (r *Reactor) cancel(sock srt.Socket, dir direction, w *opWaiter, cause error) {
	op := r.ops[sock]
	if op == nil || op.waiters[dir] != w {
		return
	}
	op.waiters[dir] = nil
	if op.empty() {
		_ = r.api.EpollRemove(r.eid, sock)
		delete(r.ops, sock)
		metrics.SetReactorSockets(len(r.ops))
	} else {
		_ = r.api.EpollUpdate(r.eid, sock, op.mask())
	}
	w.done <- opResult{err: cause}
}

func (r *Reactor) pollLoop() {
	defer r.wg.Done()
	buf := make([]srt.SocketEvent, r.eventCap)
	for r.running.Load() {
		n, err := r.api.EpollUWait(r.eid, buf, r.pollInterval)
		metrics.IncReactorPoll()
		if err != nil {
			if !r.running.Load() {
				return
			}
			metrics.IncError(metrics.ErrPoll)
			r.logger.Error("reactor_poll", "err", err)
			time.Sleep(r.pollInterval) // transient
			continue
		}
		if n == 0 {
			continue
		}
		metrics.AddReactorEvents(n)
		for i := 0; i < n; i++ {
			ev := buf[i]
			if r.ser.Post(func() { r.handleEvent(ev) }) != nil {
				return
			}
		}
	}
}

// handleEvent dispatches one (socket, flags) pair from the poll. Runs on
// the strand. The waiter is detached from the op before its completion is
// delivered, so a concurrent edge cannot complete it twice.
func (r *Reactor) handleEvent(ev srt.SocketEvent) {
	op := r.ops[ev.Socket]
	if op == nil {
		// Raced with cancel or removal.
		return
	}
	if ev.Events.Has(srt.EventErr) {
		// Error wins: the socket is done for both directions. A readable
		// edge on a broken socket would only fail at the next read.
		cause := r.api.SocketError(ev.Socket)
		var ws []*opWaiter
		for d := dirRead; d <= dirWrite; d++ {
			if w := op.waiters[d]; w != nil {
				ws = append(ws, w)
				op.waiters[d] = nil
			}
		}
		_ = r.api.EpollRemove(r.eid, ev.Socket)
		delete(r.ops, ev.Socket)
		metrics.IncReactorSocketError()
		metrics.SetReactorSockets(len(r.ops))
		r.logger.Debug("socket_error_edge", "socket", ev.Socket, "events", ev.Events.String(), "err", cause)
		for _, w := range ws {
			w.done <- opResult{events: ev.Events, err: cause}
		}
		return
	}
	old := op.mask()
	var ws []*opWaiter
	var labels []string
	if ev.Events.Has(srt.EventIn) && op.waiters[dirRead] != nil {
		ws = append(ws, op.waiters[dirRead])
		labels = append(labels, metrics.DirRead)
		op.waiters[dirRead] = nil
	}
	if ev.Events.Has(srt.EventOut) && op.waiters[dirWrite] != nil {
		ws = append(ws, op.waiters[dirWrite])
		labels = append(labels, metrics.DirWrite)
		op.waiters[dirWrite] = nil
	}
	if len(ws) == 0 {
		return
	}
	if op.empty() {
		_ = r.api.EpollRemove(r.eid, ev.Socket)
		delete(r.ops, ev.Socket)
		metrics.SetReactorSockets(len(r.ops))
	} else if m := op.mask(); m != old {
		_ = r.api.EpollUpdate(r.eid, ev.Socket, m)
	}
	for i, w := range ws {
		metrics.IncReactorWakeup(labels[i])
		w.done <- opResult{events: ev.Events}
	}
}

// shutdown fails every residual waiter and releases the epoll. Runs on the
// strand as its final task.
func (r *Reactor) shutdown() {
	for sock, op := range r.ops {
		for d := dirRead; d <= dirWrite; d++ {
			if w := op.waiters[d]; w != nil {
				w.done <- opResult{err: ErrClosed}
			}
		}
		_ = r.api.EpollRemove(r.eid, sock)
	}
	r.ops = make(map[srt.Socket]*eventOp)
	metrics.SetReactorSockets(0)
	_ = r.api.EpollRelease(r.eid)
}

// Close stops the poll loop, fails residual waiters with ErrClosed and
// releases the epoll. Safe to call more than once.
func (r *Reactor) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		r.running.Store(false)
		r.wg.Wait()
		_ = r.ser.Post(func() { r.shutdown() })
		r.ser.Close()
		r.logger.Info("reactor_stopped", "eid", r.eid)
	})
	return nil
}

func ctxError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return acore.ErrTimeout
	}
	return ctx.Err()
}
