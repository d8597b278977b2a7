// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// BreakerState is the state of a circuit breaker
type BreakerState int

const (
	StateClosed   BreakerState = iota // calls pass through
	StateOpen                         // calls fail fast
	StateHalfOpen                     // probing whether the provider recovered
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig holds circuit breaker configuration
type BreakerConfig struct {
	Name             string
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // successes in half-open before closing
	Cooldown         time.Duration // time spent open before probing
	OnStateChange    func(name string, from, to BreakerState)
}

// DefaultBreakerConfig returns the breaker used for a single auxiliary signal
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
	}
}

// CircuitBreaker stops calling a failing dependency for a cooldown period.
// While closed only retryable failures count against it; a permanent error
// says nothing about the provider's health. A half-open trial call closes the
// breaker only when it returns no error at all.
type CircuitBreaker struct {
	config BreakerConfig
	now    func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
	probing     bool
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	return &CircuitBreaker{config: config, now: time.Now}
}

// ErrBreakerOpen is returned while the breaker refuses calls
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerError is returned when the breaker prevents execution
type BreakerError struct {
	Name  string
	State BreakerState
}

func (e *BreakerError) Error() string {
	return fmt.Sprintf("circuit breaker %q is %s", e.Name, e.State)
}

func (e *BreakerError) Unwrap() error {
	return ErrBreakerOpen
}

// Execute runs fn unless the breaker is open
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.before(); err != nil {
		return NewPermanentError(err.Error(), err)
	}
	err := fn(ctx)
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) < cb.config.Cooldown {
			return &BreakerError{Name: cb.config.Name, State: cb.state}
		}
		cb.setState(StateHalfOpen)
		cb.probing = true
		return nil
	case StateHalfOpen:
		if cb.probing {
			return &BreakerError{Name: cb.config.Name, State: cb.state}
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false

	switch {
	case err == nil:
		cb.succeed()
	case cb.state == StateHalfOpen:
		// a trial call only closes the breaker by succeeding
		cb.trip()
	case IsRetryable(err):
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.failures >= cb.config.FailureThreshold {
			cb.trip()
		}
	}
}

func (cb *CircuitBreaker) succeed() {
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
			cb.failures = 0
			cb.successes = 0
		}
	}
}

func (cb *CircuitBreaker) trip() {
	cb.lastFailure = cb.now()
	cb.setState(StateOpen)
	cb.successes = 0
}

func (cb *CircuitBreaker) setState(to BreakerState) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the breaker and clears its counters
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.failures = 0
	cb.successes = 0
	cb.probing = false
	cb.lastFailure = time.Time{}
}
