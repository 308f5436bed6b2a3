package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SRK-Yoom/siteaudit/internal/audit"
	"github.com/SRK-Yoom/siteaudit/internal/leads"
	"github.com/SRK-Yoom/siteaudit/internal/util"
)

// stubAuditor returns a canned result or error and records calls.
type stubAuditor struct {
	result  *audit.Result
	err     error
	calls   int
	lastURL string
}

func (s *stubAuditor) Audit(_ context.Context, rawURL string) (*audit.Result, error) {
	s.calls++
	s.lastURL = rawURL
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// stubLeadService records captured leads and returns a configured
// error.
type stubLeadService struct {
	err      error
	captured []*leads.Lead
}

func (s *stubLeadService) Capture(_ context.Context, lead *leads.Lead) error {
	if s.err != nil {
		return s.err
	}
	s.captured = append(s.captured, lead)
	return nil
}

// stubNotifier records notifications. The audit notification arrives
// on a goroutine, so it signals done when set.
type stubNotifier struct {
	mu      sync.Mutex
	enabled bool
	done    chan struct{}

	audits []*audit.Result
	leads  []*leads.Lead
}

func (s *stubNotifier) Enabled() bool { return s.enabled }

func (s *stubNotifier) AuditCompleted(_ context.Context, result *audit.Result, _ *util.RequestMeta) {
	s.mu.Lock()
	s.audits = append(s.audits, result)
	s.mu.Unlock()
	if s.done != nil {
		s.done <- struct{}{}
	}
}

func (s *stubNotifier) LeadCaptured(_ context.Context, lead *leads.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append(s.leads, lead)
}

func (s *stubNotifier) auditCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audits)
}

func minimalResult(score int) *audit.Result {
	return &audit.Result{
		URL:    "https://example.com",
		Score:  score,
		Health: audit.HealthSummary{Domain: "example.com"},
	}
}

// TestNewHandler verifies dependency wiring
func TestNewHandler(t *testing.T) {
	audits := &stubAuditor{}
	leadSvc := &stubLeadService{}
	notifier := &stubNotifier{}

	handler := NewHandler(audits, leadSvc, notifier)

	assert.NotNil(t, handler)
	assert.Equal(t, audits, handler.Audits)
	assert.Equal(t, leadSvc, handler.Leads)
	assert.Equal(t, notifier, handler.Notifier)
}

// TestHealthCheck verifies the health endpoint
func TestHealthCheck(t *testing.T) {
	h := NewHandler(&stubAuditor{}, &stubLeadService{}, nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)

	h.HealthCheck(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
	assert.Contains(t, w.Body.String(), `"siteaudit"`)
}

// TestHealthCheckMethodNotAllowed verifies the method guard
func TestHealthCheckMethodNotAllowed(t *testing.T) {
	h := NewHandler(&stubAuditor{}, &stubLeadService{}, nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/health", nil)

	h.HealthCheck(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// TestSetupRoutes verifies routes dispatch to the right handlers
func TestSetupRoutes(t *testing.T) {
	h := NewHandler(
		&stubAuditor{result: minimalResult(70)},
		&stubLeadService{},
		nil,
	)
	mux := http.NewServeMux()
	h.SetupRoutes(mux)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"audit", http.MethodPost, "/api/audit", `{"url":"example.com"}`, http.StatusOK},
		{"leads", http.MethodPost, "/api/leads", `{"email":"lead@example.com"}`, http.StatusOK},
		{"unknown_path", http.MethodGet, "/api/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))

			mux.ServeHTTP(w, r)

			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
