package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents a standardised error response. The error
// message rides under "error", which is what the results page renders.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorCode classifies error responses for client-side handling.
type ErrorCode string

// Codes for client-caused failures.
const (
	ErrCodeBadRequest       ErrorCode = "BAD_REQUEST"
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimit        ErrorCode = "RATE_LIMIT_EXCEEDED"
)

// Codes for failures on our side or upstream.
const (
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeUpstreamError   ErrorCode = "UPSTREAM_ERROR"
	ErrCodeUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
)

// WriteError writes the error envelope for a Go error value.
func WriteError(w http.ResponseWriter, r *http.Request, err error, status int, code ErrorCode) {
	WriteErrorMessage(w, r, err.Error(), status, code)
}

// WriteErrorMessage writes the error envelope and logs it. Client
// errors log at warn, server errors at error.
func WriteErrorMessage(w http.ResponseWriter, r *http.Request, message string, status int, code ErrorCode) {
	event := log.Error()
	if status < http.StatusInternalServerError {
		event = log.Warn()
	}
	event.
		Str("request_id", GetRequestID(r)).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("code", string(code)).
		Int("status", status).
		Str("message", message).
		Msg("Request rejected")

	WriteJSON(w, r, ErrorResponse{
		Error:     message,
		Code:      string(code),
		RequestID: GetRequestID(r),
	}, status)
}

// Shorthand writers for the statuses the handlers actually return.

// BadRequest writes a 400 with the supplied message.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteErrorMessage(w, r, message, http.StatusBadRequest, ErrCodeBadRequest)
}

// MethodNotAllowed writes the standard 405 response.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteErrorMessage(w, r, "Method not allowed", http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed)
}

// InternalError writes a 500 carrying the error text.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	WriteError(w, r, err, http.StatusInternalServerError, ErrCodeInternal)
}

// BadGateway writes a 502 for upstream failures.
func BadGateway(w http.ResponseWriter, r *http.Request, message string) {
	WriteErrorMessage(w, r, message, http.StatusBadGateway, ErrCodeUpstreamError)
}

// GatewayTimeout writes a 504 for upstream timeouts.
func GatewayTimeout(w http.ResponseWriter, r *http.Request, message string) {
	WriteErrorMessage(w, r, message, http.StatusGatewayTimeout, ErrCodeUpstreamTimeout)
}

// TooManyRequests writes a 429 with a Retry-After hint.
func TooManyRequests(w http.ResponseWriter, r *http.Request, message string, retryAfter time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(retryAfter)))
	WriteErrorMessage(w, r, message, http.StatusTooManyRequests, ErrCodeRateLimit)
}

// retrySeconds rounds a wait up to whole seconds, substituting a short
// default when no wait was measured.
func retrySeconds(wait time.Duration) int {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds <= 0 {
		seconds = 3
	}
	return seconds
}
