package acore

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForTicks(t *testing.T, ticks *atomic.Int64, want int64, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if ticks.Load() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected %d ticks within %s, got %d", want, within, ticks.Load())
}

func TestPeriodicTimer_TicksRepeatedly(t *testing.T) {
	p := NewPeriodicTimer()
	defer p.Stop()
	var ticks atomic.Int64
	p.Start(10*time.Millisecond, func() { ticks.Add(1) })
	waitForTicks(t, &ticks, 3, time.Second)
}

func TestPeriodicTimer_PauseStopsTicksResumeRestarts(t *testing.T) {
	p := NewPeriodicTimer()
	defer p.Stop()
	var ticks atomic.Int64
	p.Start(10*time.Millisecond, func() { ticks.Add(1) })
	waitForTicks(t, &ticks, 1, time.Second)
	p.Pause()
	paused := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, ticks.Load(), paused+1, "no rescheduling while paused")
	p.Resume()
	waitForTicks(t, &ticks, paused+2, time.Second)
}

func TestPeriodicTimer_StopDiscardsInFlightExpiry(t *testing.T) {
	p := NewPeriodicTimer()
	var ticks atomic.Int64
	p.Start(20*time.Millisecond, func() { ticks.Add(1) })
	p.Stop()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int64(0), ticks.Load())
}

func TestPeriodicTimer_SetPeriodReaimsPendingExpiry(t *testing.T) {
	p := NewPeriodicTimer()
	defer p.Stop()
	var ticks atomic.Int64
	p.Start(10*time.Second, func() { ticks.Add(1) })
	// Re-aim the distant expiry close to the previous tick instant.
	p.SetPeriod(20 * time.Millisecond)
	waitForTicks(t, &ticks, 1, time.Second)
}

func TestPeriodicTimer_RestartAlignsToNow(t *testing.T) {
	p := NewPeriodicTimer()
	defer p.Stop()
	var ticks atomic.Int64
	p.Start(30*time.Millisecond, func() { ticks.Add(1) })
	p.Restart()
	waitForTicks(t, &ticks, 2, time.Second)
}

func TestTimer_WaitCompletesOnFire(t *testing.T) {
	tm := NewTimer(10 * time.Millisecond)
	require.NoError(t, tm.Wait(context.Background()))
	// Fired timers complete later waits inline.
	require.NoError(t, tm.Wait(context.Background()))
}

func TestTimer_StopFailsWaiters(t *testing.T) {
	tm := NewTimer(10 * time.Second)
	done := make(chan error, 1)
	go func() { done <- tm.Wait(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	tm.Stop()
	assert.ErrorIs(t, <-done, ErrCanceled)
	assert.ErrorIs(t, tm.Wait(context.Background()), ErrCanceled)
}

func TestSleep_FullDuration(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSleep_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	assert.ErrorIs(t, Sleep(ctx, 10*time.Second), context.Canceled)
}
