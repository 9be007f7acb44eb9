package appgrowth

import (
	"context"
	"time"
)

const defaultBackoffStep = 3 * time.Second

// RetryPolicy controls the pause between login attempts. Backoff gets the
// 1-based number of the attempt that just failed.
type RetryPolicy struct {
	Backoff func(attempt int) time.Duration
	Sleep   func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy waits 3s, 6s, 9s... between attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Backoff: LinearBackoff(defaultBackoffStep),
		Sleep:   SleepContext,
	}
}

func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p RetryPolicy) wait(ctx context.Context, attempt int) error {
	backoff := p.Backoff
	if backoff == nil {
		backoff = LinearBackoff(defaultBackoffStep)
	}

	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	return sleep(ctx, backoff(attempt))
}
