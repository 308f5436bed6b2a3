package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// WriteJSON encodes data as the response body with the given status.
// Encoding failures are logged rather than surfaced; by then the
// status line has already gone out.
func WriteJSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().
			Err(err).
			Str("request_id", GetRequestID(r)).
			Msg("Response body encoding failed")
	}
}

// SuccessResponse is the envelope for form-style endpoints such as
// lead capture, where the caller wants an acknowledgement rather than
// a document.
type SuccessResponse struct {
	Status    string `json:"status"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteSuccess writes a 200 acknowledgement envelope.
func WriteSuccess(w http.ResponseWriter, r *http.Request, data any, message string) {
	WriteJSON(w, r, SuccessResponse{
		Status:    "success",
		Data:      data,
		Message:   message,
		RequestID: GetRequestID(r),
	}, http.StatusOK)
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Version   string `json:"version,omitempty"`
}

// WriteHealthy writes the standard health check body.
func WriteHealthy(w http.ResponseWriter, r *http.Request, service, version string) {
	WriteJSON(w, r, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   service,
		Version:   version,
	}, http.StatusOK)
}
