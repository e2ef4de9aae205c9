// Package circuitbreaker shields Movie Night Hub from cascading failures of
// its collaborators. A breaker wraps the calls to one service: while the
// service fails the breaker opens and rejects immediately, then periodically
// lets a probe request through to detect recovery.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	// StateClosed passes requests through. Normal operation.
	StateClosed State = iota
	// StateOpen rejects requests without calling the service.
	StateOpen
	// StateHalfOpen admits a limited number of probe requests.
	StateHalfOpen
)

// String returns the conventional lowercase state name.
func (s State) String() string {
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

var (
	// ErrCircuitOpen is returned while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when the half-open probe quota is spent.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// ──────────────────────────────────────────────
// Configuration
// ──────────────────────────────────────────────

// Config holds breaker parameters.
type Config struct {
	// Name identifies the breaker in logs and callbacks.
	Name string

	// FailureThreshold is the consecutive-failure count that opens the
	// breaker. Default 5.
	FailureThreshold int

	// SuccessThreshold is the consecutive-success count in half-open that
	// closes the breaker. Default 2.
	SuccessThreshold int

	// Timeout is how long the breaker stays open before probing. Default 30s.
	Timeout time.Duration

	// MaxHalfOpenRequests caps in-flight probes. Default 1.
	MaxHalfOpenRequests int

	// OnStateChange is invoked on every transition.
	OnStateChange func(name string, from, to State)

	// IsFailure classifies errors. When nil every non-nil error counts.
	IsFailure func(error) bool
}

// DefaultConfig returns the baseline parameters for name.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// Option tweaks a Config.
type Option func(*Config)

// WithFailureThreshold sets the consecutive failures that open the breaker.
func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the consecutive successes that close the breaker.
func WithSuccessThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SuccessThreshold = n
		}
	}
}

// WithTimeout sets the open-state cool-down.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithMaxHalfOpenRequests caps concurrent half-open probes.
func WithMaxHalfOpenRequests(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxHalfOpenRequests = n
		}
	}
}

// WithOnStateChange installs a transition callback.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) { c.OnStateChange = fn }
}

// WithIsFailure installs a custom error classifier.
func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) { c.IsFailure = fn }
}

// ──────────────────────────────────────────────
// Breaker
// ──────────────────────────────────────────────

// Counts are the request counters of a breaker.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker guards the calls to one collaborator.
type CircuitBreaker struct {
	config Config

	mu               sync.Mutex
	state            State
	counts           Counts
	lastFailureTime  time.Time
	halfOpenRequests int
}

// New creates a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	config := DefaultConfig(name)
	for _, opt := range opts {
		opt(&config)
	}
	return &CircuitBreaker{config: config, state: StateClosed}
}

// Execute runs fn if the breaker admits the request and records the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

// ExecuteWithFallback runs fn; when the breaker rejects the request the
// fallback is invoked with the rejection error instead. Errors from fn itself
// do not reach the fallback.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(error) error) error {
	err := cb.Execute(ctx, fn)
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		return fallback(err)
	}
	return err
}

// admit decides whether a request may proceed and performs the open-to-half-open
// transition once the cool-down has elapsed.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(cb.lastFailureTime) >= cb.config.Timeout {
			cb.transition(StateHalfOpen)
			cb.halfOpenRequests = 1
			return nil
		}
		return ErrCircuitOpen

	case StateHalfOpen:
		if cb.halfOpenRequests < cb.config.MaxHalfOpenRequests {
			cb.halfOpenRequests++
			return nil
		}
		return ErrTooManyRequests

	default:
		return ErrCircuitOpen
	}
}

// record updates the counters and state from one call outcome.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++

	failed := err != nil
	if failed && cb.config.IsFailure != nil {
		failed = cb.config.IsFailure(err)
	}

	if failed {
		cb.counts.TotalFailures++
		cb.counts.ConsecutiveFailures++
		cb.counts.ConsecutiveSuccesses = 0
		cb.lastFailureTime = time.Now()

		switch cb.state {
		case StateClosed:
			if cb.counts.ConsecutiveFailures >= cb.config.FailureThreshold {
				cb.transition(StateOpen)
			}
		case StateHalfOpen:
			// A failed probe reopens immediately.
			cb.transition(StateOpen)
		}
		return
	}

	cb.counts.TotalSuccesses++
	cb.counts.ConsecutiveSuccesses++
	cb.counts.ConsecutiveFailures = 0

	if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
		cb.transition(StateClosed)
	}
}

// transition moves to newState, resets the consecutive counters and fires the
// callback. Caller holds the lock.
func (cb *CircuitBreaker) transition(newState State) {
	if cb.state == newState {
		return
	}

	oldState := cb.state
	cb.state = newState
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	cb.halfOpenRequests = 0

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, oldState, newState)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a copy of the counters.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Reset returns the breaker to the closed state with zeroed counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.counts = Counts{}
	cb.halfOpenRequests = 0
}

// IsOpen reports whether the breaker currently rejects requests.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == StateOpen
}

// IsClosed reports whether the breaker operates normally.
func (cb *CircuitBreaker) IsClosed() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == StateClosed
}

// ──────────────────────────────────────────────
// Presets
// ──────────────────────────────────────────────

// MediaServerBreaker guards Plex calls. The server drops out whenever someone
// restarts it mid-movie, so it opens fast and probes slowly.
func MediaServerBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		"media-server",
		WithFailureThreshold(3),
		WithSuccessThreshold(2),
		WithTimeout(60*time.Second),
		WithMaxHalfOpenRequests(1),
		WithOnStateChange(onStateChange),
	)
}

// SnapshotStoreBreaker guards snapshot persistence. The store is usually
// stable, so it tolerates more failures and recovers on the first success.
func SnapshotStoreBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		"snapshot-store",
		WithFailureThreshold(5),
		WithSuccessThreshold(1),
		WithTimeout(30*time.Second),
		WithMaxHalfOpenRequests(2),
		WithOnStateChange(onStateChange),
	)
}

// DatabaseBreaker guards direct database operations with a short cool-down.
func DatabaseBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		"database",
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithTimeout(10*time.Second),
		WithMaxHalfOpenRequests(1),
		WithOnStateChange(onStateChange),
	)
}
