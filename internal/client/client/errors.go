package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/secureshare/internal/common"
)

var ErrUnavailable = errors.New("server unavailable")

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status             int    `json:"-"`
	Code               string `json:"code"`
	Message            string `json:"message"`
	Field              string `json:"field,omitempty"`
	RemainingMinutes   int    `json:"remainingMinutes,omitempty"`
	AttemptsLeft       *int   `json:"attemptsLeft,omitempty"`
	MaxAttemptsReached bool   `json:"maxAttemptsReached,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

var codeErrors = map[string]error{
	"validation":           common.ErrValidation,
	"rate_limited":         common.ErrRateLimited,
	"bad_code":             common.ErrBadCode,
	"max_attempts_reached": common.ErrMaxAttemptsReached,
	"invalid_token":        common.ErrInvalidToken,
	"unauthorized":         common.ErrUnauthorized,
	"not_verified":         common.ErrNotVerified,
	"not_found":            common.ErrNotFound,
	"expired":              common.ErrExpired,
	"consumed":             common.ErrConsumed,
	"already_accepted":     common.ErrAlreadyAccepted,
	"conflict":             common.ErrConflict,
	"delivery_error":       common.ErrDelivery,
	"storage_error":        common.ErrStorage,
}

// Unwrap lets callers match server failures against the common sentinels.
func (e *APIError) Unwrap() error {
	if err, ok := codeErrors[e.Code]; ok {
		return err
	}
	return common.ErrInternal
}
