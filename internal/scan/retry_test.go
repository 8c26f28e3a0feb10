package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryBackoffDoubles(t *testing.T) {
	sleeper := &recordingSleeper{}
	var retries []int
	calls := 0
	_, err := Retry(context.Background(), DefaultRetryPolicy, sleeper.sleep,
		func(ctx context.Context, attempt int) (string, error) {
			calls++
			return "", errors.New("unavailable")
		},
		func(attempt int, delay time.Duration, err error) { retries = append(retries, attempt) },
	)
	require.EqualError(t, err, "unavailable")
	assert.Equal(t, 5, calls)
	assert.Equal(t, []int{1, 2, 3, 4}, retries)
	assert.Equal(t,
		[]time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second},
		sleeper.recorded(),
	)
}

func TestRetryStopsOnSuccess(t *testing.T) {
	sleeper := &recordingSleeper{}
	v, err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second}, sleeper.sleep,
		func(ctx context.Context, attempt int) (int, error) {
			if attempt < 2 {
				return 0, errors.New("again")
			}
			return attempt, nil
		}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, []time.Duration{time.Second}, sleeper.recorded())
}

func TestRetryAtLeastOnce(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryPolicy{}, nil,
		func(ctx context.Context, attempt int) (struct{}, error) {
			calls++
			return struct{}{}, nil
		}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryInterruptedBySleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opErr := errors.New("rate limited")
	calls := 0
	_, err := Retry(ctx, DefaultRetryPolicy, Sleep,
		func(ctx context.Context, attempt int) (int, error) {
			calls++
			return 0, opErr
		}, nil)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, opErr)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NoError(t, Sleep(context.Background(), 0))
}
