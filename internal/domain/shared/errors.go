// Package shared contains common domain types, errors, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds. Domain errors carry one of these so callers can branch
// with errors.Is without knowing the concrete failure.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	ErrInvalidState = errors.New("invalid state")
	ErrExpired      = errors.New("expired")

	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError ties a failure to the domain and operation it happened in.
// Kind carries the base error for errors.Is, Err the underlying cause if any.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches against both the kind and the underlying cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// NewDomainError creates a domain error without an underlying cause.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// Watch domain errors.
var (
	ErrNoActiveSession     = NewDomainError("watch", "FinishSession", ErrNotFound, "no active session for user")
	ErrSessionWindowClosed = NewDomainError("watch", "StartSession", ErrExpired, "resume window has elapsed")
	ErrNegativeDuration    = NewDomainError("watch", "Validate", ErrNegativeValue, "duration cannot be negative")
	ErrProgressRegression  = NewDomainError("watch", "UpdateProgress", ErrInvalidState, "progress cannot decrease")
	ErrEmptyMovieTitle     = NewDomainError("watch", "Validate", ErrEmptyValue, "movie title is required")
	ErrInvalidUserID       = NewDomainError("watch", "Validate", ErrInvalidID, "invalid user ID")
)

// Stats domain errors.
var (
	ErrUserStatsNotFound = NewDomainError("stats", "Get", ErrNotFound, "no statistics recorded for user")
)

// Badge domain errors.
var (
	ErrBadgeNotFound      = NewDomainError("badge", "Find", ErrNotFound, "badge not found in catalog")
	ErrBadgeAlreadyEarned = NewDomainError("badge", "Award", ErrAlreadyExists, "badge already earned")
)

// Rating domain errors.
var (
	ErrRatingOutOfRange = NewDomainError("rating", "Validate", ErrValueOutOfRange, "rating must be between 1 and 10")
	ErrMovieNotWatched  = NewDomainError("rating", "Rate", ErrInvalidState, "movie must be watched before rating")
	ErrAlreadyRated     = NewDomainError("rating", "Rate", ErrAlreadyExists, "movie already rated by user")
)

// Leaderboard domain errors.
var (
	ErrUnknownMetric = NewDomainError("leaderboard", "Rank", ErrInvalidInput, "unknown leaderboard metric")
	ErrInvalidLimit  = NewDomainError("leaderboard", "Rank", ErrValueOutOfRange, "limit must be positive")
)

// Persistence errors.
var (
	ErrStoreUnavailable = NewDomainError("store", "Save", ErrServiceUnavailable, "durable store is unavailable")
	ErrSnapshotCorrupt  = NewDomainError("store", "Load", ErrInvalidFormat, "persisted snapshot is corrupt")
)

// IsRetryable reports whether the operation may succeed on a later attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrTimeout)
}
