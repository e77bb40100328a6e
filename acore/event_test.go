package acore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_NotifyAllReleasesAllWaiters(t *testing.T) {
	e := NewEvent()
	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.Wait(context.Background())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	e.NotifyAll()
	wg.Wait()
	for i := 0; i < n; i++ {
		assert.NoError(t, errs[i])
	}
}

func TestEvent_WaitAfterNotifyCompletesInline(t *testing.T) {
	e := NewEvent()
	e.NotifyAll()
	require.True(t, e.TryWait())
	require.NoError(t, e.Wait(context.Background()))
}

func TestEvent_RepeatedNotifyIsIdempotent(t *testing.T) {
	e := NewEvent()
	for i := 0; i < 5; i++ {
		e.NotifyAll()
	}
	require.NoError(t, e.Wait(context.Background()))
	e.Reset()
	require.False(t, e.TryWait())
}

func TestEvent_ResetDoesNotFailPriorWaiters(t *testing.T) {
	e := NewEvent()
	done := make(chan error, 1)
	go func() { done <- e.Wait(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	e.NotifyAll()
	e.Reset()
	require.NoError(t, <-done)
	// Flag is clear again: a fresh wait blocks.
	assert.ErrorIs(t, e.WaitFor(context.Background(), 30*time.Millisecond), ErrTimeout)
}

func TestEvent_WaitCanceled(t *testing.T) {
	e := NewEvent()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Wait(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	// The canceled waiter left the queue; notify still works for others.
	e.NotifyAll()
	require.NoError(t, e.Wait(context.Background()))
}

func TestEvent_SharedSerializer(t *testing.T) {
	s := NewSerializer()
	a := NewEvent(WithSerializer(s))
	b := NewEvent(WithSerializer(s))
	a.NotifyAll()
	require.True(t, a.TryWait())
	require.False(t, b.TryWait())
}
