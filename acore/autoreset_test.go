package acore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoResetEvent_SingleWakePerSignal(t *testing.T) {
	e := NewAutoResetEvent()
	const n = 5
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := e.Wait(context.Background()); err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}(i)
		time.Sleep(10 * time.Millisecond) // serialize enqueue order
	}

	waitWoken := func(want int) {
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			mu.Lock()
			got := len(order)
			mu.Unlock()
			if got == want {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}

	e.Notify(1)
	waitWoken(1)
	mu.Lock()
	require.Equal(t, []int{0}, order, "exactly one waiter should wake")
	mu.Unlock()

	// Release the rest one signal at a time and let each wake be recorded
	// before the next: the completions are FIFO, but goroutines released by
	// the same Notify may resume in any order.
	for k := 2; k <= n; k++ {
		e.Notify(1)
		waitWoken(k)
	}
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order, "remaining waiters wake FIFO")
}

func TestAutoResetEvent_SignalsAreCountedNotCoalesced(t *testing.T) {
	e := NewAutoResetEvent()
	e.Notify(3)
	assert.True(t, e.TryWait())
	assert.True(t, e.TryWait())
	assert.True(t, e.TryWait())
	assert.False(t, e.TryWait())
}

func TestAutoResetEvent_ResetDiscardsBankedSignals(t *testing.T) {
	e := NewAutoResetEvent()
	e.Notify(2)
	e.Reset()
	assert.False(t, e.TryWait())
	assert.ErrorIs(t, e.WaitFor(context.Background(), 30*time.Millisecond), ErrTimeout)
}

func TestAutoResetEvent_CancelAll(t *testing.T) {
	e := NewAutoResetEvent()
	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { done <- e.Wait(context.Background()) }()
	}
	time.Sleep(10 * time.Millisecond)
	e.CancelAll()
	assert.ErrorIs(t, <-done, ErrCanceled)
	assert.ErrorIs(t, <-done, ErrCanceled)
}
