// Package api exposes the audit service over HTTP: the audit endpoint
// the results page calls, the lead endpoint behind the report form,
// and a health check.
package api

import (
	"context"
	"net/http"

	"github.com/SRK-Yoom/siteaudit/internal/audit"
	"github.com/SRK-Yoom/siteaudit/internal/leads"
	"github.com/SRK-Yoom/siteaudit/internal/util"
)

// Version is reported by the health endpoint. Overridden via ldflags
// in release builds.
var Version = "0.2.0"

// Auditor runs the full audit pipeline for one URL.
type Auditor interface {
	Audit(ctx context.Context, rawURL string) (*audit.Result, error)
}

// LeadCapturer validates and records a report request.
type LeadCapturer interface {
	Capture(ctx context.Context, lead *leads.Lead) error
}

// Notifier posts team alerts. Implementations must be safe for
// concurrent use and must not return delivery failures to handlers.
type Notifier interface {
	Enabled() bool
	AuditCompleted(ctx context.Context, result *audit.Result, meta *util.RequestMeta)
	LeadCaptured(ctx context.Context, lead *leads.Lead)
}

// Handler carries the services the HTTP endpoints delegate to.
type Handler struct {
	Audits   Auditor
	Leads    LeadCapturer
	Notifier Notifier
}

// NewHandler wires the endpoint handlers to their backing services.
func NewHandler(audits Auditor, leadService LeadCapturer, notifier Notifier) *Handler {
	return &Handler{
		Audits:   audits,
		Leads:    leadService,
		Notifier: notifier,
	}
}

// SetupRoutes registers every endpoint on the given mux.
func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/audit", h.AuditHandler)
	mux.HandleFunc("/api/leads", h.LeadHandler)
}

// HealthCheck reports liveness for load balancers and uptime checks.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, r)
		return
	}

	WriteHealthy(w, r, "siteaudit", Version)
}
