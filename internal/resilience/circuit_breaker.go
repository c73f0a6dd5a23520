// Package resilience provides a circuit breaker guarding calls to the
// embedding engine and sandbox subprocesses against cascading failures.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Call when the breaker is open and the recovery
// timeout has not yet elapsed.
var ErrOpen = errors.New("circuit breaker open")

// CircuitBreaker prevents repeated calls into a failing dependency from
// piling up. It starts closed, opens after FailureThreshold consecutive
// failures, and moves to half-open after RecoveryTimeout to probe recovery.
type CircuitBreaker struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
}

// NewCircuitBreaker creates a closed circuit breaker with the given
// thresholds.
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		FailureThreshold: failureThreshold,
		RecoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && time.Since(cb.lastFailureTime) >= cb.RecoveryTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Call runs fn if the breaker allows it, recording the outcome. When the
// breaker is open (and the recovery timeout has not elapsed) it returns
// ErrOpen without invoking fn.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	state := cb.currentStateLocked()
	if state == StateOpen {
		cb.mu.Unlock()
		return ErrOpen
	}
	if state == StateHalfOpen {
		cb.state = StateHalfOpen
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failureCount++
		cb.lastFailureTime = time.Now()
		if cb.failureCount >= cb.FailureThreshold || cb.state == StateHalfOpen {
			cb.state = StateOpen
		}
		return err
	}

	// Success: a half-open probe that succeeds closes the circuit.
	cb.failureCount = 0
	cb.state = StateClosed
	return nil
}

// FailureCount returns the current consecutive-failure count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}
