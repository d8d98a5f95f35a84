package mailer

import (
	"context"
	"sync"
	"time"
)

// CircuitBreakerState represents the state of a circuit breaker.
type CircuitBreakerState int

const (
	// CircuitBreakerClosed indicates normal operation.
	CircuitBreakerClosed CircuitBreakerState = iota

	// CircuitBreakerOpen indicates sends are refused.
	CircuitBreakerOpen

	// CircuitBreakerHalfOpen indicates trial sends are let through.
	CircuitBreakerHalfOpen
)

// String returns the string representation of the circuit breaker state.
func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitBreakerClosed:
		return "closed"
	case CircuitBreakerOpen:
		return "open"
	case CircuitBreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerPlugin stops calling a failing transport. After
// FailureThreshold failed deliveries it refuses sends with
// ErrCircuitBreakerOpen until Timeout has passed, then lets trial sends
// through until SuccessThreshold of them succeed.
type CircuitBreakerPlugin struct {
	config       CircuitBreakerConfig
	state        CircuitBreakerState
	failureCount int
	successCount int
	lastFailTime time.Time
	mutex        sync.Mutex
	now          func() time.Time
}

// NewCircuitBreakerPlugin creates a closed circuit breaker.
func NewCircuitBreakerPlugin(config CircuitBreakerConfig) *CircuitBreakerPlugin {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 1
	}
	return &CircuitBreakerPlugin{
		config: config,
		state:  CircuitBreakerClosed,
		now:    time.Now,
	}
}

// BeforeSendPerformed refuses the send while the circuit is open.
func (cb *CircuitBreakerPlugin) BeforeSendPerformed(context.Context, *SendEvent) error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case CircuitBreakerOpen:
		if cb.now().Sub(cb.lastFailTime) < cb.config.Timeout {
			return ErrCircuitBreakerOpen
		}
		cb.state = CircuitBreakerHalfOpen
		cb.successCount = 0
		return nil
	default:
		return nil
	}
}

// SendPerformed records the delivery outcome.
func (cb *CircuitBreakerPlugin) SendPerformed(_ context.Context, evt *SendEvent) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if evt.Err != nil {
		cb.failureCount++
		cb.lastFailTime = cb.now()

		if cb.state == CircuitBreakerClosed && cb.failureCount >= cb.config.FailureThreshold {
			cb.state = CircuitBreakerOpen
		} else if cb.state == CircuitBreakerHalfOpen {
			cb.state = CircuitBreakerOpen
		}
		return
	}

	cb.successCount++
	if cb.state == CircuitBreakerHalfOpen && cb.successCount >= cb.config.SuccessThreshold {
		cb.state = CircuitBreakerClosed
		cb.failureCount = 0
	}
	if cb.state == CircuitBreakerClosed && cb.config.ResetTimeout > 0 &&
		cb.now().Sub(cb.lastFailTime) >= cb.config.ResetTimeout {
		cb.failureCount = 0
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreakerPlugin) State() CircuitBreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// FailureCount returns the current failure count.
func (cb *CircuitBreakerPlugin) FailureCount() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.failureCount
}
