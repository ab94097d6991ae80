package services

import (
	"sync"
	"time"

	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
)

// CircuitState represents the current state of a circuit breaker.
type CircuitState int

const (
	// StateClosed means the provider is functioning normally.
	StateClosed CircuitState = iota
	// StateOpen means the provider is failing and calls are rejected fast.
	StateOpen
	// StateHalfOpen means a single probe call is allowed to test recovery.
	StateHalfOpen
)

// String returns the lowercase state name.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds configuration for a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int `json:"failure_threshold"`
	// ResetTimeout is the time an open breaker waits before allowing a probe.
	ResetTimeout time.Duration `json:"reset_timeout"`
}

// BreakerSnapshot is a point-in-time view of a breaker's state.
type BreakerSnapshot struct {
	Name          string     `json:"name"`
	State         string     `json:"state"`
	FailureCount  uint       `json:"failure_count"`
	OpenedAt      *time.Time `json:"opened_at,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
}

// CircuitBreaker guards one provider identity. It is a pure state machine:
// the caller asks Allow before invoking the provider and records the outcome
// afterwards. State is in-memory, process-local, reset on restart.
type CircuitBreaker struct {
	name   string
	config BreakerConfig
	logger logging.Logger

	mu            sync.Mutex
	state         CircuitState
	failureCount  uint
	openedAt      time.Time
	nextAttemptAt time.Time
	probeInFlight bool

	// now is injectable for tests.
	now func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker for one provider identity.
//
// Parameters:
//
//	name: Provider identity.
//	config: Configuration.
//	logger: Logger instance.
//
// Returns:
//
//	*CircuitBreaker: Initialized breaker in the closed state.
func NewCircuitBreaker(name string, config BreakerConfig, logger logging.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		logger: logger,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Allow reports whether a call to the provider may proceed.
// While open it fails fast until the reset timeout elapses; then exactly one
// probe call is admitted in the half-open state.
//
// Returns:
//
//	bool: True if the call may proceed.
//	*time.Time: When open, the earliest time a next attempt will be allowed.
func (cb *CircuitBreaker) Allow() (bool, *time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true, nil

	case StateOpen:
		if cb.now().Before(cb.nextAttemptAt) {
			next := cb.nextAttemptAt
			return false, &next
		}
		cb.setState(StateHalfOpen)
		cb.probeInFlight = true
		return true, nil

	case StateHalfOpen:
		// Only one probe at a time
		if cb.probeInFlight {
			next := cb.nextAttemptAt
			return false, &next
		}
		cb.probeInFlight = true
		return true, nil

	default:
		return false, nil
	}
}

// RecordSuccess records a successful provider call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.probeInFlight = false
	if cb.state != StateClosed {
		cb.setState(StateClosed)
		cb.openedAt = time.Time{}
		cb.nextAttemptAt = time.Time{}
	}
}

// RecordFailure records a failed provider call. A failure in the half-open
// state reopens the breaker immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	switch cb.state {
	case StateClosed:
		if cb.failureCount >= uint(cb.config.FailureThreshold) {
			cb.open()
		}
	case StateHalfOpen:
		cb.probeInFlight = false
		cb.open()
	}
}

// RecordCancel records a call that was cancelled before completing.
// Cancelled calls count as neither success nor failure; a half-open probe
// slot is released so a later probe can run.
func (cb *CircuitBreaker) RecordCancel() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probeInFlight = false
}

// open transitions to the open state. Caller holds the lock.
func (cb *CircuitBreaker) open() {
	now := cb.now()
	cb.openedAt = now
	cb.nextAttemptAt = now.Add(cb.config.ResetTimeout)
	cb.setState(StateOpen)
}

// setState changes state and logs the transition. Caller holds the lock.
func (cb *CircuitBreaker) setState(newState CircuitState) {
	if cb.state == newState {
		return
	}
	oldState := cb.state
	cb.state = newState
	cb.logger.WithFields(map[string]interface{}{
		"circuit_breaker": cb.name,
		"old_state":       oldState.String(),
		"new_state":       newState.String(),
		"failure_count":   cb.failureCount,
	}).Info("Circuit breaker state changed")
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot returns a point-in-time view of the breaker.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	snap := BreakerSnapshot{
		Name:         cb.name,
		State:        cb.state.String(),
		FailureCount: cb.failureCount,
	}
	if !cb.openedAt.IsZero() {
		opened := cb.openedAt
		snap.OpenedAt = &opened
	}
	if !cb.nextAttemptAt.IsZero() {
		next := cb.nextAttemptAt
		snap.NextAttemptAt = &next
	}
	return snap
}

// Reset manually resets the circuit breaker to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	cb.failureCount = 0
	cb.probeInFlight = false
	cb.openedAt = time.Time{}
	cb.nextAttemptAt = time.Time{}
}

// BreakerRegistry owns one circuit breaker per provider identity.
// Breakers are looked up by name and never duplicated.
type BreakerRegistry struct {
	config   BreakerConfig
	logger   logging.Logger
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerRegistry creates a registry that builds breakers with the given config.
//
// Parameters:
//
//	config: Configuration applied to every breaker.
//	logger: Logger instance.
//
// Returns:
//
//	*BreakerRegistry: Initialized registry.
func NewBreakerRegistry(config BreakerConfig, logger logging.Logger) *BreakerRegistry {
	return &BreakerRegistry{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// GetOrCreate returns the breaker for a provider, creating it on first use.
func (r *BreakerRegistry) GetOrCreate(name string) *CircuitBreaker {
	r.mu.RLock()
	breaker, exists := r.breakers[name]
	r.mu.RUnlock()
	if exists {
		return breaker
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if breaker, exists = r.breakers[name]; exists {
		return breaker
	}
	breaker = NewCircuitBreaker(name, r.config, r.logger)
	r.breakers[name] = breaker
	return breaker
}

// Snapshots returns a snapshot of every registered breaker.
func (r *BreakerRegistry) Snapshots() map[string]BreakerSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := make(map[string]BreakerSnapshot, len(r.breakers))
	for name, breaker := range r.breakers {
		snaps[name] = breaker.Snapshot()
	}
	return snaps
}

// ResetAll resets every registered breaker.
func (r *BreakerRegistry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, breaker := range r.breakers {
		breaker.Reset()
	}
}
