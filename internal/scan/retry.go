package scan

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy bounds retry-with-backoff. The delay doubles after each
// failed attempt; there is no wait after the last one.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, InitialDelay: 5 * time.Second}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real-time SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry runs op until it succeeds or the attempts run out, returning the
// last error. onRetry is called before each wait.
func Retry[T any](
	ctx context.Context,
	p RetryPolicy,
	sleep SleepFunc,
	op func(ctx context.Context, attempt int) (T, error),
	onRetry func(attempt int, delay time.Duration, err error),
) (T, error) {
	var zero T
	attempts := max(p.MaxAttempts, 1)
	if sleep == nil {
		sleep = Sleep
	}

	delay := p.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx, attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return zero, fmt.Errorf("retry interrupted after attempt %d: %w", attempt, errors.Join(serr, lastErr))
		}
		delay *= 2
	}
	return zero, lastErr
}
