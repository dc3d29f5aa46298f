package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/relay-gateway/internal/automation"
	"github.com/nerrad567/relay-gateway/internal/bridges/kasa"
	"github.com/nerrad567/relay-gateway/internal/device"
	"github.com/nerrad567/relay-gateway/internal/dispatch"
)

// Error is the body of an error response, wrapped as {"error": {...}}.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error Error `json:"error"`
}

// Common error codes.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeNotFound      = "not_found"
	ErrCodeNotAcceptable = "invalid_action"
	ErrCodeUnavailable   = "unavailable"
	ErrCodeTimeout       = "timeout"
	ErrCodeBadGateway    = "relay_error"
	ErrCodePartial       = "partial_failure"
	ErrCodeInternal      = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: Error{Code: code, Message: message}})
}

// writeNotAcceptable writes a 406 for an unrecognised relay command word.
func writeNotAcceptable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotAcceptable, ErrCodeNotAcceptable, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDispatchError maps a submit or Response error to an HTTP status.
func writeDispatchError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err.Error())
}

// statusFor classifies errors from the dispatch worker. Partial preset and
// tag failures are reported as 500 even when every failure was a transport
// error, so that a 502 always means one relay could not be reached.
func statusFor(err error) (int, string) {
	var applyErr *automation.ApplyError
	switch {
	case errors.Is(err, dispatch.ErrChannelClosed):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, ErrCodeTimeout
	case errors.As(err, &applyErr):
		return http.StatusInternalServerError, ErrCodePartial
	case errors.Is(err, device.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, automation.ErrInvalidAction):
		return http.StatusNotAcceptable, ErrCodeNotAcceptable
	case errors.Is(err, kasa.ErrUnreachable), errors.Is(err, kasa.ErrMalformed):
		return http.StatusBadGateway, ErrCodeBadGateway
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
