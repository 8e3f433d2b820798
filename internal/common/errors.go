// Package common defines shared constants and sentinel errors used across
// the server, the HTTP transport and the recipient client. Callers should use
// errors.Is / errors.As to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// Input and authorization errors.
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")

	// Lifecycle terminal states.
	ErrExpired         = errors.New("expired")
	ErrConsumed        = errors.New("consumed")
	ErrAlreadyAccepted = errors.New("already accepted")

	// Passcode errors.
	ErrRateLimited        = errors.New("rate limited")
	ErrBadCode            = errors.New("bad code")
	ErrMaxAttemptsReached = errors.New("max attempts reached")
	ErrNotVerified        = errors.New("passcode not verified")

	// External dependency failures.
	ErrStorage  = errors.New("storage error")
	ErrDelivery = errors.New("delivery error")

	ErrInternal = errors.New("internal error")
)

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError is a shorthand for &ValidationError{...}.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RateLimitedError is returned when a passcode send is refused because the
// recipient phone exhausted its sliding-window budget.
type RateLimitedError struct {
	RemainingMinutes int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry in %d min", e.RemainingMinutes)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// BadCodeError is returned for a passcode mismatch. MaxAttemptsReached is set
// when this attempt consumed the last one.
type BadCodeError struct {
	AttemptsLeft       int
	MaxAttemptsReached bool
}

func (e *BadCodeError) Error() string {
	if e.MaxAttemptsReached {
		return "bad code: no attempts left"
	}
	return fmt.Sprintf("bad code: %d attempts left", e.AttemptsLeft)
}

func (e *BadCodeError) Unwrap() error { return ErrBadCode }
