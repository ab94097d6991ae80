package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/franaraujo77/investments-planner-sub008/internal/config"
	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

// RetryPolicy defines retry behavior for failed provider calls.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BackoffSchedule lists the delay before each retry. When the schedule is
	// shorter than the number of retries, the last entry repeats.
	BackoffSchedule []time.Duration
	// MaxDelay caps any computed or server-supplied delay.
	MaxDelay time.Duration
	// AttemptTimeout bounds each individual attempt.
	AttemptTimeout time.Duration
	// JitterEnabled adds up to 25% randomness to computed delays.
	JitterEnabled bool
}

// RetryPolicyFromConfig builds a RetryPolicy from configuration.
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	schedule := make([]time.Duration, 0, len(cfg.BackoffScheduleMs))
	for _, ms := range cfg.BackoffScheduleMs {
		schedule = append(schedule, time.Duration(ms)*time.Millisecond)
	}
	return RetryPolicy{
		MaxAttempts:     cfg.MaxAttempts,
		BackoffSchedule: schedule,
		MaxDelay:        time.Duration(cfg.MaxDelayMs) * time.Millisecond,
		AttemptTimeout:  cfg.AttemptTimeout,
		JitterEnabled:   cfg.JitterEnabled,
	}
}

// AttemptsError wraps the last error after all retry attempts were exhausted.
type AttemptsError struct {
	Attempts int
	Err      error
}

// Error returns the formatted error message.
func (e *AttemptsError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *AttemptsError) Unwrap() error {
	return e.Err
}

// RetryExecutor wraps a single upstream call with bounded retries and
// exponential backoff. Only transient failure classes are retried; a
// server-supplied Retry-After overrides the computed backoff.
type RetryExecutor struct {
	policy RetryPolicy
	logger logging.Logger

	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryExecutor creates a retry executor with the given policy.
//
// Parameters:
//
//	policy: Retry policy.
//	logger: Logger instance.
//
// Returns:
//
//	*RetryExecutor: Initialized executor.
func NewRetryExecutor(policy RetryPolicy, logger logging.Logger) *RetryExecutor {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if len(policy.BackoffSchedule) == 0 {
		policy.BackoffSchedule = []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, time.Second}
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 5 * time.Second
	}
	return &RetryExecutor{
		policy: policy,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Execute runs the operation, retrying transient failures per the policy.
// Each attempt runs under its own timeout. The context error is returned
// as-is when the caller cancels; exhaustion returns an AttemptsError
// wrapping the last failure.
//
// Parameters:
//
//	ctx: Context for cancellation.
//	operationName: Name used in log fields.
//	operation: The call to execute.
//
// Returns:
//
//	error: Nil on success, ctx.Err() on cancellation, *AttemptsError on exhaustion.
func (e *RetryExecutor) Execute(ctx context.Context, operationName string, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := e.runAttempt(ctx, operation)
		if err == nil {
			if attempt > 1 {
				e.logger.WithFields(map[string]interface{}{
					"operation": operationName,
					"attempts":  attempt,
				}).Info("Operation recovered after retry")
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err

		if !utils.IsRetryable(err) {
			e.logger.WithFields(map[string]interface{}{
				"operation": operationName,
				"attempt":   attempt,
				"error":     err.Error(),
			}).Debug("Operation failed with non-retryable error")
			return &AttemptsError{Attempts: attempt, Err: err}
		}

		if attempt == e.policy.MaxAttempts {
			break
		}

		delay := e.delayFor(attempt, err)
		e.logger.WithFields(map[string]interface{}{
			"operation": operationName,
			"attempt":   attempt,
			"error":     err.Error(),
			"delay":     delay.String(),
		}).Warn("Operation failed, retrying")

		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"operation": operationName,
		"attempts":  e.policy.MaxAttempts,
		"error":     lastErr.Error(),
	}).Error("Operation failed after all retries")

	return &AttemptsError{Attempts: e.policy.MaxAttempts, Err: lastErr}
}

// runAttempt executes one attempt under its own timeout.
func (e *RetryExecutor) runAttempt(ctx context.Context, operation func(ctx context.Context) error) error {
	if e.policy.AttemptTimeout > 0 {
		attemptCtx, cancel := context.WithTimeout(ctx, e.policy.AttemptTimeout)
		defer cancel()
		return operation(attemptCtx)
	}
	return operation(ctx)
}

// delayFor computes the backoff before the retry following the given attempt.
// A Retry-After hint from a rate-limited provider overrides the schedule,
// capped at MaxDelay.
func (e *RetryExecutor) delayFor(attempt int, err error) time.Duration {
	if retryAfter, ok := utils.IsRateLimitError(err); ok && retryAfter > 0 {
		if retryAfter > e.policy.MaxDelay {
			return e.policy.MaxDelay
		}
		return retryAfter
	}

	idx := attempt - 1
	if idx >= len(e.policy.BackoffSchedule) {
		idx = len(e.policy.BackoffSchedule) - 1
	}
	delay := e.policy.BackoffSchedule[idx]
	if delay > e.policy.MaxDelay {
		delay = e.policy.MaxDelay
	}
	if e.policy.JitterEnabled {
		// Up to 25% jitter in either direction
		jitterFactor := (rand.Float64() - 0.5) * 0.5
		delay += time.Duration(float64(delay) * jitterFactor)
	}
	return delay
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
