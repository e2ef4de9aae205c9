// Package plex implements a Plex Media Server API client.
package plex

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER - Token Bucket implementation
// The autosave loop polls the media server continuously; the limiter keeps
// the poll rate from overwhelming a home server.
// ══════════════════════════════════════════════════════════════════════════════

// ErrRateLimited is returned when a request cannot proceed within the wait
// timeout.
var ErrRateLimited = errors.New("plex: rate limited")

// RateLimiter implements the Token Bucket algorithm to control request rate.
type RateLimiter struct {
	mu sync.Mutex

	maxTokens   float64
	refillRate  float64 // tokens added per second
	tokens      float64
	lastRefill  time.Time
	minInterval time.Duration
	lastRequest time.Time
	waitTimeout time.Duration
}

// RateLimiterConfig contains configuration for the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the maximum sustained request rate.
	RequestsPerSecond float64

	// BurstSize is the maximum number of requests that can be made in a burst.
	BurstSize int

	// MinInterval is the minimum time between requests.
	MinInterval time.Duration

	// WaitTimeout is the maximum time to wait for a token.
	WaitTimeout time.Duration
}

// DefaultRateLimiterConfig returns conservative defaults for a home media
// server.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 2.0,
		BurstSize:         5,
		MinInterval:       200 * time.Millisecond,
		WaitTimeout:       10 * time.Second,
	}
}

// NewRateLimiter creates a rate limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		maxTokens:   float64(config.BurstSize),
		refillRate:  config.RequestsPerSecond,
		tokens:      float64(config.BurstSize),
		lastRefill:  time.Now(),
		minInterval: config.MinInterval,
		waitTimeout: config.WaitTimeout,
	}
}

// Allow blocks until a token is available, the wait timeout elapses or the
// context is cancelled.
func (rl *RateLimiter) Allow(ctx context.Context) error {
	deadline := time.Now().Add(rl.waitTimeout)

	for {
		wait, ok := rl.tryAcquire()
		if ok {
			return nil
		}
		if time.Now().Add(wait).After(deadline) {
			return ErrRateLimited
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAllow reports whether a request may proceed right now, without blocking.
func (rl *RateLimiter) TryAllow() bool {
	_, ok := rl.tryAcquire()
	return ok
}

// tryAcquire consumes a token if possible and otherwise returns how long to
// wait before retrying.
func (rl *RateLimiter) tryAcquire() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillTokens()

	now := time.Now()
	if sinceLast := now.Sub(rl.lastRequest); sinceLast < rl.minInterval {
		return rl.minInterval - sinceLast, false
	}

	if rl.tokens < 1 {
		deficit := 1 - rl.tokens
		wait := time.Duration(deficit / rl.refillRate * float64(time.Second))
		return wait, false
	}

	rl.tokens--
	rl.lastRequest = now
	return 0, true
}

func (rl *RateLimiter) refillTokens() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}

// Reset refills the bucket. Used after long idle periods.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = rl.maxTokens
	rl.lastRefill = time.Now()
	rl.lastRequest = time.Time{}
}
