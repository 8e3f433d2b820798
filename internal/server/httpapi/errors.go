package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/secureshare/internal/common"
)

// errorBody is the envelope every failed request returns.
type errorBody struct {
	Code               string `json:"code"`
	Message            string `json:"message"`
	Field              string `json:"field,omitempty"`
	RemainingMinutes   int    `json:"remainingMinutes,omitempty"`
	AttemptsLeft       *int   `json:"attemptsLeft,omitempty"`
	MaxAttemptsReached bool   `json:"maxAttemptsReached,omitempty"`
	ChallengeID        string `json:"challengeId,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// classify maps an engine error to its HTTP status and envelope. Internal
// failures get a generic message so driver details never reach callers.
func classify(err error) (int, errorBody) {
	var (
		ve *common.ValidationError
		rl *common.RateLimitedError
		bc *common.BadCodeError
	)

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{Code: "validation", Message: ve.Error(), Field: ve.Field}
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, errorBody{Code: "validation", Message: err.Error()}
	case errors.As(err, &rl):
		return http.StatusTooManyRequests, errorBody{Code: "rate_limited", Message: rl.Error(), RemainingMinutes: rl.RemainingMinutes}
	case errors.As(err, &bc):
		left := bc.AttemptsLeft
		return http.StatusUnauthorized, errorBody{Code: "bad_code", Message: bc.Error(), AttemptsLeft: &left, MaxAttemptsReached: bc.MaxAttemptsReached}
	case errors.Is(err, common.ErrMaxAttemptsReached):
		return http.StatusTooManyRequests, errorBody{Code: "max_attempts_reached", Message: "no verification attempts left, request a new passcode", MaxAttemptsReached: true}
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, errorBody{Code: "invalid_token", Message: "missing or invalid credentials"}
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusForbidden, errorBody{Code: "unauthorized", Message: "not allowed"}
	case errors.Is(err, common.ErrNotVerified):
		return http.StatusForbidden, errorBody{Code: "not_verified", Message: err.Error()}
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, errorBody{Code: "not_found", Message: "not found"}
	case errors.Is(err, common.ErrExpired):
		return http.StatusGone, errorBody{Code: "expired", Message: "expired"}
	case errors.Is(err, common.ErrConsumed):
		return http.StatusGone, errorBody{Code: "consumed", Message: "file has already been downloaded"}
	case errors.Is(err, common.ErrAlreadyAccepted):
		return http.StatusConflict, errorBody{Code: "already_accepted", Message: "invitation already accepted"}
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, errorBody{Code: "conflict", Message: "conflict"}
	case errors.Is(err, common.ErrDelivery):
		return http.StatusBadGateway, errorBody{Code: "delivery_error", Message: "message could not be delivered"}
	case errors.Is(err, common.ErrStorage):
		return http.StatusBadGateway, errorBody{Code: "storage_error", Message: "storage unavailable"}
	}
	return http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal error"}
}

func (h *Handler) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	h.respondWithErrorBody(w, r, err, func(*errorBody) {})
}

func (h *Handler) respondWithErrorBody(w http.ResponseWriter, r *http.Request, err error, decorate func(*errorBody)) {
	code, body := classify(err)
	decorate(&body)
	if code >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", "code", body.Code, "error", err)
	}
	if body.Code == "rate_limited" {
		w.Header().Set("Retry-After", strconv.Itoa(body.RemainingMinutes*60))
	}
	h.respondWithJSON(w, r, code, errorEnvelope{Error: body})
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, r *http.Request, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.log.Error(r.Context(), "failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"internal","message":"internal error"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
