package infra

import (
	"log/slog"
	"sync"
	"time"
)

// BreakerState is the circuit breaker's position.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // passing traffic
	BreakerOpen                         // rejecting traffic
	BreakerHalfOpen                     // probing for recovery
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes one breaker.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // half-open successes before closing
	Cooldown         time.Duration // open duration before probing
}

// DefaultCircuitBreakerConfig returns the settings used for the Kalshi
// market-data poll.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
	}
}

// CircuitBreaker sheds load from a repeatedly failing dependency. After
// FailureThreshold consecutive failures it rejects calls for Cooldown,
// then lets probes through until SuccessThreshold of them succeed.
// Safe for concurrent use.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time // injectable for tests

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Allow reports whether a call may proceed, moving an expired open
// breaker to half-open.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if cb.now().Sub(cb.openedAt) > cb.cfg.Cooldown {
			cb.state = BreakerHalfOpen
			cb.successes = 0
			slog.Info("circuit breaker probing", slog.String("name", cb.cfg.Name))
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess notes a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failures = 0
	case BreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.state = BreakerClosed
			cb.failures = 0
			cb.successes = 0
			slog.Info("circuit breaker closed", slog.String("name", cb.cfg.Name))
		}
	}
}

// RecordFailure notes a failed call. A half-open failure reopens
// immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.state = BreakerOpen
			cb.openedAt = cb.now()
			slog.Warn("circuit breaker opened",
				slog.String("name", cb.cfg.Name),
				slog.Int("failures", cb.failures))
		}
	case BreakerHalfOpen:
		cb.state = BreakerOpen
		cb.openedAt = cb.now()
		cb.successes = 0
		slog.Warn("circuit breaker reopened", slog.String("name", cb.cfg.Name))
	}
}

// State returns the current position, for monitoring.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
