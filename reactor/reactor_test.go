package reactor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/standly/go-acore/acore"
	"github.com/standly/go-acore/srt"
)

func newTestReactor(t *testing.T) (*Reactor, *srt.MemAPI) {
	t.Helper()
	api := srt.NewMemAPI()
	r, err := New(api, WithPollInterval(5*time.Millisecond), WithEventCapacity(16))
	if err != nil {
		t.Fatalf("new reactor: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r, api
}

func TestReactor_WaitReadableWakesOnReadiness(t *testing.T) {
	r, api := newTestReactor(t)
	const sock = srt.Socket(7)
	got := make(chan srt.Events, 1)
	errc := make(chan error, 1)
	go func() {
		ev, err := r.WaitReadable(context.Background(), sock)
		got <- ev
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	api.SetReadable(sock, true)
	select {
	case ev := <-got:
		if err := <-errc; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ev.Has(srt.EventIn) {
			t.Fatalf("expected IN edge, got %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by readable edge")
	}
}

func TestReactor_WaitWritableWakesOnReadiness(t *testing.T) {
	r, api := newTestReactor(t)
	const sock = srt.Socket(8)
	api.SetWritable(sock, true)
	ev, err := r.WaitWritable(context.Background(), sock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ev.Has(srt.EventOut) {
		t.Fatalf("expected OUT edge, got %v", ev)
	}
}

func TestReactor_SecondWaiterSameDirectionRejected(t *testing.T) {
	r, _ := newTestReactor(t)
	const sock = srt.Socket(9)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := make(chan error, 1)
	go func() {
		_, err := r.WaitReadable(ctx, sock)
		first <- err
	}()
	time.Sleep(20 * time.Millisecond)
	_, err := r.WaitReadable(context.Background(), sock)
	if !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("expected ErrAlreadyPending, got %v", err)
	}
	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for first waiter, got %v", err)
	}
}

func TestReactor_ReadAndWriteWaitersCoexist(t *testing.T) {
	r, api := newTestReactor(t)
	const sock = srt.Socket(10)
	rdone := make(chan error, 1)
	wdone := make(chan error, 1)
	go func() { _, err := r.WaitReadable(context.Background(), sock); rdone <- err }()
	go func() { _, err := r.WaitWritable(context.Background(), sock); wdone <- err }()
	time.Sleep(20 * time.Millisecond)
	api.SetReadable(sock, true)
	if err := <-rdone; err != nil {
		t.Fatalf("read waiter: %v", err)
	}
	select {
	case err := <-wdone:
		t.Fatalf("write waiter woken without OUT edge: %v", err)
	case <-time.After(30 * time.Millisecond):
	}
	api.SetWritable(sock, true)
	if err := <-wdone; err != nil {
		t.Fatalf("write waiter: %v", err)
	}
}

func TestReactor_CancelDetachesWaiter(t *testing.T) {
	r, api := newTestReactor(t)
	const sock = srt.Socket(11)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.WaitReadable(ctx, sock)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// The socket left the epoll set once its last waiter was withdrawn.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && api.Registered(1, sock) {
		time.Sleep(time.Millisecond)
	}
	if api.Registered(1, sock) {
		t.Fatal("socket still registered after cancel")
	}
	// Registration starts fresh afterwards.
	api.SetReadable(sock, true)
	if _, err := r.WaitReadable(context.Background(), sock); err != nil {
		t.Fatalf("fresh registration failed: %v", err)
	}
}

func TestReactor_WaitDeadlineReportsTimeout(t *testing.T) {
	r, _ := newTestReactor(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := r.WaitReadable(ctx, srt.Socket(12))
	if !errors.Is(err, acore.ErrTimeout) {
		t.Fatalf("expected acore.ErrTimeout, got %v", err)
	}
}

// An error edge is terminal: both directions fail with the SRT error and the
// socket is detached; a later registration starts fresh.
func TestReactor_ErrorEdgeFailsBothDirections(t *testing.T) {
	r, api := newTestReactor(t)
	const sock = srt.Socket(13)
	type res struct {
		ev  srt.Events
		err error
	}
	rdone := make(chan res, 1)
	wdone := make(chan res, 1)
	go func() {
		ev, err := r.WaitReadable(context.Background(), sock)
		rdone <- res{ev, err}
	}()
	go func() {
		ev, err := r.WaitWritable(context.Background(), sock)
		wdone <- res{ev, err}
	}()
	time.Sleep(20 * time.Millisecond)
	api.InjectError(sock, srt.CodeConnLost)
	for _, ch := range []chan res{rdone, wdone} {
		select {
		case got := <-ch:
			if !errors.Is(got.err, srt.ErrConnLost) {
				t.Fatalf("expected connection-lost, got %v", got.err)
			}
			if !got.ev.Has(srt.EventErr) {
				t.Fatalf("completion must carry the delivered flags, got %v", got.ev)
			}
		case <-time.After(time.Second):
			t.Fatal("waiter not failed by error edge")
		}
	}
	if api.Registered(1, sock) {
		t.Fatal("errored socket must be removed from the epoll set")
	}
	// After the caller reopens the socket, registration starts fresh.
	api.ClearError(sock)
	api.SetReadable(sock, true)
	ev, err := r.WaitReadable(context.Background(), sock)
	if err != nil {
		t.Fatalf("fresh registration after error: %v", err)
	}
	if !ev.Has(srt.EventIn) {
		t.Fatalf("expected IN edge, got %v", ev)
	}
}

func TestReactor_CloseFailsResidualWaiters(t *testing.T) {
	api := srt.NewMemAPI()
	r, err := New(api, WithPollInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("new reactor: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := r.WaitReadable(context.Background(), srt.Socket(14))
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed for residual waiter, got %v", err)
	}
	if _, err := r.WaitReadable(context.Background(), srt.Socket(15)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after shutdown, got %v", err)
	}
	_ = r.Close() // idempotent
}

func TestReactor_ManySocketsWakeIndependently(t *testing.T) {
	r, api := newTestReactor(t)
	const n = 20
	done := make(chan srt.Socket, n)
	for i := 0; i < n; i++ {
		sock := srt.Socket(100 + i)
		go func() {
			if _, err := r.WaitReadable(context.Background(), sock); err != nil {
				t.Error(err)
				return
			}
			done <- sock
		}()
	}
	time.Sleep(30 * time.Millisecond)
	for i := 0; i < n; i++ {
		api.SetReadable(srt.Socket(100+i), true)
	}
	seen := make(map[srt.Socket]bool)
	for i := 0; i < n; i++ {
		select {
		case s := <-done:
			if seen[s] {
				t.Fatalf("socket %d completed twice", s)
			}
			seen[s] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d waiters woken", i, n)
		}
	}
}
