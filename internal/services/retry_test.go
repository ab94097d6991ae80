package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

func newTestExecutor(t *testing.T, policy RetryPolicy) (*RetryExecutor, *[]time.Duration) {
	t.Helper()
	executor := NewRetryExecutor(policy, logging.NewStandardLogger("error", "test"))
	var delays []time.Duration
	executor.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return executor, &delays
}

func TestRetryExecutor_SucceedsFirstAttempt(t *testing.T) {
	executor, delays := newTestExecutor(t, RetryPolicy{MaxAttempts: 3})

	calls := 0
	err := executor.Execute(context.Background(), "fetch", func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestRetryExecutor_RecoversAfterTransientFailure(t *testing.T) {
	executor, delays := newTestExecutor(t, RetryPolicy{
		MaxAttempts:     3,
		BackoffSchedule: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond},
	})

	calls := 0
	err := executor.Execute(context.Background(), "fetch", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return utils.NewAppError(utils.CodeProviderFailed, "upstream 503")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *delays)
}

func TestRetryExecutor_ExhaustionReturnsAttemptsError(t *testing.T) {
	executor, _ := newTestExecutor(t, RetryPolicy{MaxAttempts: 3})

	cause := utils.NewAppError(utils.CodeProviderFailed, "upstream 504")
	calls := 0
	err := executor.Execute(context.Background(), "fetch", func(ctx context.Context) error {
		calls++
		return cause
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var attemptsErr *AttemptsError
	require.ErrorAs(t, err, &attemptsErr)
	assert.Equal(t, 3, attemptsErr.Attempts)
	assert.ErrorIs(t, err, cause)
}

func TestRetryExecutor_NonRetryableFailsFast(t *testing.T) {
	executor, delays := newTestExecutor(t, RetryPolicy{MaxAttempts: 3})

	calls := 0
	err := executor.Execute(context.Background(), "fetch", func(ctx context.Context) error {
		calls++
		return utils.NewAppError(utils.CodeNotFound, "unknown symbol")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
	assert.True(t, utils.IsNotFoundError(err))
}

func TestRetryExecutor_RetryAfterOverridesBackoff(t *testing.T) {
	executor, delays := newTestExecutor(t, RetryPolicy{
		MaxAttempts:     2,
		BackoffSchedule: []time.Duration{100 * time.Millisecond},
		MaxDelay:        5 * time.Second,
	})

	calls := 0
	err := executor.Execute(context.Background(), "fetch", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &utils.RateLimitError{Provider: "brapi", RetryAfter: 2 * time.Second}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second}, *delays)
}

func TestRetryExecutor_RetryAfterCappedAtMaxDelay(t *testing.T) {
	executor, delays := newTestExecutor(t, RetryPolicy{
		MaxAttempts:     2,
		BackoffSchedule: []time.Duration{100 * time.Millisecond},
		MaxDelay:        time.Second,
	})

	calls := 0
	err := executor.Execute(context.Background(), "fetch", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &utils.RateLimitError{Provider: "brapi", RetryAfter: time.Minute}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second}, *delays)
}

func TestRetryExecutor_ContextCancellation(t *testing.T) {
	executor := NewRetryExecutor(RetryPolicy{
		MaxAttempts:     5,
		BackoffSchedule: []time.Duration{time.Hour},
	}, logging.NewStandardLogger("error", "test"))

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := executor.Execute(ctx, "fetch", func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryExecutor_AttemptTimeout(t *testing.T) {
	executor, _ := newTestExecutor(t, RetryPolicy{
		MaxAttempts:    1,
		AttemptTimeout: 10 * time.Millisecond,
	})

	err := executor.Execute(context.Background(), "fetch", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	require.Error(t, err)
	var attemptsErr *AttemptsError
	require.ErrorAs(t, err, &attemptsErr)
	assert.ErrorIs(t, attemptsErr.Err, context.DeadlineExceeded)
}
