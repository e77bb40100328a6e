package acore

import (
	"context"
	"errors"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	// ErrTimeout reports that a WaitFor/AcquireFor deadline elapsed before
	// the primitive completed the wait.
	ErrTimeout = errors.New("acore: wait timed out")
	// ErrCanceled reports a wait torn down by CancelAll or by stopping the
	// waited-on object. Waits canceled through their own context return the
	// context's error instead.
	ErrCanceled = errors.New("acore: wait canceled")
	// ErrStopped reports an operation against a stopped primitive.
	ErrStopped = errors.New("acore: stopped")
	// ErrReset reports a barrier wait aborted by Reset.
	ErrReset = errors.New("acore: barrier reset")
	// ErrCostTooHigh reports a rate-limiter acquire whose cost can never be
	// satisfied because it exceeds the bucket capacity.
	ErrCostTooHigh = errors.New("acore: cost exceeds bucket capacity")
	// ErrSerializerClosed reports a Post against a closed serializer.
	ErrSerializerClosed = errors.New("acore: serializer closed")
)

// ctxErr converts a finished context into the library's failure kind:
// deadline expiry is a timeout, everything else is the caller's cancellation.
func ctxErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
