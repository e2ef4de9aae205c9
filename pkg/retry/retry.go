// Package retry implements retries with exponential backoff and jitter for
// the calls that may fail transiently: media server requests and snapshot
// persistence. Errors opt in to retrying via the Retryable wrapper; anything
// else fails fast.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

// jitterRand is the shared source for jitter offsets.
var (
	jitterMu   sync.Mutex
	jitterRand = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func jitterFloat() float64 {
	jitterMu.Lock()
	defer jitterMu.Unlock()
	return jitterRand.Float64()
}

// ──────────────────────────────────────────────
// Error classification
// ──────────────────────────────────────────────

// RetryableError marks an error as worth retrying.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err so Do will retry it. Nil stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err carries a RetryableError anywhere in its chain.
func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}

// PermanentError marks an error as hopeless: no retry will fix it.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do stops immediately. Nil stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError anywhere in its chain.
func IsPermanent(err error) bool {
	var target *PermanentError
	return errors.As(err, &target)
}

// ──────────────────────────────────────────────
// Configuration
// ──────────────────────────────────────────────

// Config holds retry parameters.
type Config struct {
	// MaxAttempts counts all attempts, the first one included. Default 3.
	MaxAttempts int

	// InitialDelay is the pause before the first retry. Default 100ms.
	InitialDelay time.Duration

	// MaxDelay caps the backoff. Default 30s.
	MaxDelay time.Duration

	// Multiplier grows the delay between attempts. Default 2.0.
	Multiplier float64

	// JitterFactor randomizes delays, 0 disables, 1 is full jitter. Default 0.1.
	JitterFactor float64

	// RetryIf overrides the default classification. When nil, only errors
	// wrapped with Retryable are retried.
	RetryIf func(error) bool

	// OnRetry runs before each pause, for logging or metrics.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns the baseline parameters.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// Option tweaks a Config.
type Option func(*Config)

// WithMaxAttempts sets the attempt cap.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithInitialDelay sets the pause before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InitialDelay = d
		}
	}
}

// WithMaxDelay caps the backoff.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	}
}

// WithMultiplier sets the backoff growth factor.
func WithMultiplier(m float64) Option {
	return func(c *Config) {
		if m >= 1.0 {
			c.Multiplier = m
		}
	}
}

// WithJitter sets the jitter factor in [0, 1].
func WithJitter(j float64) Option {
	return func(c *Config) {
		if j >= 0 && j <= 1.0 {
			c.JitterFactor = j
		}
	}
}

// WithRetryIf replaces the default should-retry decision.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) { c.RetryIf = fn }
}

// WithOnRetry installs a pre-pause callback.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) { c.OnRetry = fn }
}

// ──────────────────────────────────────────────
// Retrier
// ──────────────────────────────────────────────

// Retrier executes operations under one retry policy.
type Retrier struct {
	config Config
}

// New builds a Retrier from options on top of DefaultConfig.
func New(opts ...Option) *Retrier {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Retrier{config: config}
}

// Do runs operation until it succeeds, exhausts the attempts, or produces an
// error that is not retried. When retries are exhausted the returned error is
// the unwrapped cause, not the RetryableError marker.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if !r.shouldRetry(err) {
			return err
		}

		if attempt == r.config.MaxAttempts {
			if IsRetryable(err) {
				return errors.Unwrap(err)
			}
			return err
		}

		delay := r.calculateDelay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
	}

	return lastErr
}

// shouldRetry applies RetryIf when set, the Retryable marker otherwise.
func (r *Retrier) shouldRetry(err error) bool {
	if r.config.RetryIf != nil {
		return r.config.RetryIf(err)
	}
	return IsRetryable(err)
}

// calculateDelay returns initialDelay * multiplier^(attempt-1), capped at
// MaxDelay, with the jitter offset applied last.
func (r *Retrier) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	if r.config.JitterFactor > 0 {
		delay += delay * r.config.JitterFactor * (jitterFloat()*2 - 1)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Do is the one-shot form: builds a Retrier and runs the operation.
func Do(ctx context.Context, operation func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, operation)
}

// DoWithData retries an operation that also returns a value.
func DoWithData[T any](ctx context.Context, operation func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var result T
	err := New(opts...).Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = operation(ctx)
		return opErr
	})
	return result, err
}

// ──────────────────────────────────────────────
// Presets
// ──────────────────────────────────────────────

// MediaServerRetrier is tuned for Plex calls: slow start, wide jitter, so a
// flapping server is not hammered.
func MediaServerRetrier() *Retrier {
	return New(
		WithMaxAttempts(3),
		WithInitialDelay(500*time.Millisecond),
		WithMaxDelay(10*time.Second),
		WithMultiplier(2.0),
		WithJitter(0.2),
	)
}

// SnapshotRetrier is tuned for snapshot save/load against the durable store.
func SnapshotRetrier() *Retrier {
	return New(
		WithMaxAttempts(5),
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(5*time.Second),
		WithMultiplier(1.5),
		WithJitter(0.1),
	)
}

// DatabaseRetrier is tuned for short-lived query retries.
func DatabaseRetrier() *Retrier {
	return New(
		WithMaxAttempts(3),
		WithInitialDelay(50*time.Millisecond),
		WithMaxDelay(time.Second),
		WithMultiplier(2.0),
		WithJitter(0.05),
	)
}
