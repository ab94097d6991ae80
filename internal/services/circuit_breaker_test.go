package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
)

func newTestBreaker(t *testing.T, threshold int, resetTimeout time.Duration) *CircuitBreaker {
	t.Helper()
	logger := logging.NewStandardLogger("error", "test")
	return NewCircuitBreaker("test-provider", BreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     resetTimeout,
	}, logger)
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	breaker := newTestBreaker(t, 3, time.Minute)

	assert.Equal(t, StateClosed, breaker.State())
	allowed, next := breaker.Allow()
	assert.True(t, allowed)
	assert.Nil(t, next)
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	breaker := newTestBreaker(t, 3, time.Minute)

	breaker.RecordFailure()
	breaker.RecordFailure()
	assert.Equal(t, StateClosed, breaker.State())

	breaker.RecordFailure()
	assert.Equal(t, StateOpen, breaker.State())

	// The very next call is rejected without invoking the provider
	allowed, next := breaker.Allow()
	assert.False(t, allowed)
	assert.NotNil(t, next)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	breaker := newTestBreaker(t, 3, time.Minute)

	breaker.RecordFailure()
	breaker.RecordFailure()
	breaker.RecordSuccess()
	breaker.RecordFailure()
	breaker.RecordFailure()

	// Consecutive failures never reached the threshold
	assert.Equal(t, StateClosed, breaker.State())
}

func TestCircuitBreaker_HalfOpenSingleProbe(t *testing.T) {
	breaker := newTestBreaker(t, 1, time.Minute)

	now := time.Now()
	breaker.now = func() time.Time { return now }
	breaker.RecordFailure()
	assert.Equal(t, StateOpen, breaker.State())

	// Before the reset timeout the breaker rejects
	allowed, _ := breaker.Allow()
	assert.False(t, allowed)

	// After the reset timeout exactly one probe is allowed through
	breaker.now = func() time.Time { return now.Add(2 * time.Minute) }
	allowed, _ = breaker.Allow()
	assert.True(t, allowed)
	assert.Equal(t, StateHalfOpen, breaker.State())

	allowed, _ = breaker.Allow()
	assert.False(t, allowed, "second concurrent probe must be rejected")
}

func TestCircuitBreaker_HalfOpenSuccessCloses(t *testing.T) {
	breaker := newTestBreaker(t, 1, time.Minute)

	now := time.Now()
	breaker.now = func() time.Time { return now }
	breaker.RecordFailure()

	breaker.now = func() time.Time { return now.Add(2 * time.Minute) }
	allowed, _ := breaker.Allow()
	assert.True(t, allowed)

	breaker.RecordSuccess()
	assert.Equal(t, StateClosed, breaker.State())

	snap := breaker.Snapshot()
	assert.Equal(t, uint(0), snap.FailureCount)
	assert.Nil(t, snap.OpenedAt)
	assert.Nil(t, snap.NextAttemptAt)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	breaker := newTestBreaker(t, 1, time.Minute)

	now := time.Now()
	breaker.now = func() time.Time { return now }
	breaker.RecordFailure()

	breaker.now = func() time.Time { return now.Add(2 * time.Minute) }
	allowed, _ := breaker.Allow()
	assert.True(t, allowed)

	breaker.RecordFailure()
	assert.Equal(t, StateOpen, breaker.State())

	allowed, next := breaker.Allow()
	assert.False(t, allowed)
	assert.NotNil(t, next)
}

func TestCircuitBreaker_CancelReleasesProbe(t *testing.T) {
	breaker := newTestBreaker(t, 1, time.Minute)

	now := time.Now()
	breaker.now = func() time.Time { return now }
	breaker.RecordFailure()

	breaker.now = func() time.Time { return now.Add(2 * time.Minute) }
	allowed, _ := breaker.Allow()
	assert.True(t, allowed)

	// Cancellation is neither success nor failure; the probe slot frees up
	breaker.RecordCancel()
	assert.Equal(t, StateHalfOpen, breaker.State())

	allowed, _ = breaker.Allow()
	assert.True(t, allowed)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	breaker := newTestBreaker(t, 1, time.Minute)

	breaker.RecordFailure()
	assert.Equal(t, StateOpen, breaker.State())

	breaker.Reset()
	assert.Equal(t, StateClosed, breaker.State())
	allowed, _ := breaker.Allow()
	assert.True(t, allowed)
}

func TestBreakerRegistry_GetOrCreate(t *testing.T) {
	logger := logging.NewStandardLogger("error", "test")
	registry := NewBreakerRegistry(BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute}, logger)

	first := registry.GetOrCreate("brapi")
	second := registry.GetOrCreate("brapi")
	other := registry.GetOrCreate("hgfinance")

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
}

func TestBreakerRegistry_Snapshots(t *testing.T) {
	logger := logging.NewStandardLogger("error", "test")
	registry := NewBreakerRegistry(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute}, logger)

	registry.GetOrCreate("brapi").RecordFailure()
	registry.GetOrCreate("hgfinance")

	snaps := registry.Snapshots()
	assert.Len(t, snaps, 2)
	assert.Equal(t, "open", snaps["brapi"].State)
	assert.Equal(t, "closed", snaps["hgfinance"].State)
}
