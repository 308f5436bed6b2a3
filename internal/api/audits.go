package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/SRK-Yoom/siteaudit/internal/audit"
	"github.com/SRK-Yoom/siteaudit/internal/observability"
	"github.com/SRK-Yoom/siteaudit/internal/pagespeed"
	"github.com/SRK-Yoom/siteaudit/internal/util"
)

// notifyTimeout bounds the fire-and-forget Slack post after a
// response has already been written.
const notifyTimeout = 10 * time.Second

// AuditRequest is the audit endpoint's request body.
type AuditRequest struct {
	URL string `json:"url"`
}

// AuditHandler runs a full audit of the submitted URL and returns the
// result as the bare audit JSON the results page renders.
// POST /api/audit
func (h *Handler) AuditHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w, r)
		return
	}

	var req AuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "Invalid JSON request body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		BadRequest(w, r, "Please enter a website address")
		return
	}

	start := time.Now()
	ctx, span := observability.StartAuditSpan(r.Context(), req.URL)
	defer span.End()

	result, err := h.Audits.Audit(ctx, req.URL)
	if err != nil {
		h.auditError(ctx, w, r, req.URL, err, time.Since(start))
		return
	}

	observability.RecordAudit(ctx, observability.AuditMetrics{
		Status:   "ok",
		Score:    result.Score,
		Duration: time.Since(start),
	})

	if h.Notifier != nil && h.Notifier.Enabled() {
		// Metadata has to come off the request before the handler
		// returns.
		meta := util.ExtractRequestMeta(r)
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			h.Notifier.AuditCompleted(nctx, result, meta)
		}()
	}

	WriteJSON(w, r, result, http.StatusOK)
}

// auditError maps pipeline failures onto the response statuses the
// results page understands.
func (h *Handler) auditError(ctx context.Context, w http.ResponseWriter, r *http.Request, rawURL string, err error, elapsed time.Duration) {
	logger := requestLogger(r)

	record := func(status string) {
		observability.RecordAudit(ctx, observability.AuditMetrics{Status: status, Duration: elapsed})
	}

	var apiErr *pagespeed.APIError
	switch {
	case errors.Is(err, audit.ErrInvalidURL):
		record("invalid_url")
		BadRequest(w, r, "Please enter a valid website address, e.g. example.com")

	case pagespeed.IsRateLimited(err):
		record("rate_limited")
		logger.Warn().Err(err).Str("url", rawURL).Msg("PageSpeed quota exhausted")
		TooManyRequests(w, r, "The analysis service is busy, please try again shortly", 30*time.Second)

	case errors.Is(err, pagespeed.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		record("timeout")
		logger.Warn().Err(err).Str("url", rawURL).Dur("elapsed", elapsed).Msg("Audit timed out")
		GatewayTimeout(w, r, "The site took too long to analyse, please try again")

	case errors.Is(err, pagespeed.ErrNoResult):
		record("unusable")
		logger.Warn().Err(err).Str("url", rawURL).Msg("PageSpeed returned no usable result")
		BadRequest(w, r, "We couldn't analyse that site, please check the address and try again")

	case errors.As(err, &apiErr):
		record("upstream_error")
		logger.Error().Err(err).Str("url", rawURL).Int("upstream_status", apiErr.StatusCode).Msg("PageSpeed request failed")
		BadGateway(w, r, "The analysis service returned an error, please try again")

	default:
		record("error")
		sentry.CaptureException(err)
		logger.Error().Err(err).Str("url", rawURL).Msg("Audit failed")
		InternalError(w, r, err)
	}
}
