package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"github.com/SRK-Yoom/siteaudit/internal/leads"
	"github.com/SRK-Yoom/siteaudit/internal/util"
)

// LeadRequest is the lead endpoint's request body.
type LeadRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	URL   string `json:"url,omitempty"`
	Score int    `json:"score,omitempty"`
}

// LeadHandler records a report request from the results page.
// POST /api/leads
func (h *Handler) LeadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w, r)
		return
	}

	var req LeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "Invalid JSON request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		BadRequest(w, r, "Email is required")
		return
	}

	first, last := splitName(req.Name)
	lead := &leads.Lead{
		Email:     req.Email,
		FirstName: first,
		LastName:  last,
		Website:   strings.TrimSpace(req.URL),
		Score:     req.Score,
		Meta:      util.ExtractRequestMeta(r),
	}

	logger := requestLogger(r)
	if err := h.Leads.Capture(r.Context(), lead); err != nil {
		if errors.Is(err, leads.ErrInvalidLead) {
			BadRequest(w, r, "Please enter a valid email address")
			return
		}
		sentry.CaptureException(err)
		logger.Error().Err(err).Str("email", req.Email).Msg("Failed to capture lead")
		InternalError(w, r, err)
		return
	}

	if h.Notifier != nil && h.Notifier.Enabled() {
		h.Notifier.LeadCaptured(r.Context(), lead)
	}

	WriteSuccess(w, r, nil, "Report request received")
}

// splitName separates a free-form name field into the first/last parts
// the CRM stores.
func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
