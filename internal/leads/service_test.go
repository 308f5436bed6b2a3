package leads

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SRK-Yoom/siteaudit/internal/loops"
)

// stubLoops records every request the service makes and returns
// configured errors.
type stubLoops struct {
	createErr error
	updateErr error
	eventErr  error
	sendErr   error

	contacts       []*loops.ContactRequest
	updates        []*loops.ContactRequest
	events         []*loops.EventRequest
	transactionals []*loops.TransactionalRequest
}

func (s *stubLoops) CreateContact(_ context.Context, req *loops.ContactRequest) error {
	s.contacts = append(s.contacts, req)
	return s.createErr
}

func (s *stubLoops) UpdateContact(_ context.Context, req *loops.ContactRequest) error {
	s.updates = append(s.updates, req)
	return s.updateErr
}

func (s *stubLoops) SendEvent(_ context.Context, req *loops.EventRequest) error {
	s.events = append(s.events, req)
	return s.eventErr
}

func (s *stubLoops) SendTransactional(_ context.Context, req *loops.TransactionalRequest) error {
	s.transactionals = append(s.transactionals, req)
	return s.sendErr
}

func TestCaptureRequiresEmail(t *testing.T) {
	tests := []struct {
		name string
		lead Lead
	}{
		{"missing_email", Lead{Website: "https://example.com"}},
		{"blank_email", Lead{Email: "   ", Website: "https://example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubLoops{}
			svc := NewService(stub, Config{})

			err := svc.Capture(context.Background(), &tt.lead)

			assert.ErrorIs(t, err, ErrInvalidLead)
			assert.Empty(t, stub.contacts)
			assert.Empty(t, stub.events)
		})
	}
}

func TestCaptureAcceptsLeadWithoutWebsite(t *testing.T) {
	stub := &stubLoops{}
	svc := NewService(stub, Config{})

	err := svc.Capture(context.Background(), &Lead{Email: "lead@example.com"})
	require.NoError(t, err)

	require.Len(t, stub.contacts, 1)
	assert.NotContains(t, stub.contacts[0].Properties, "website")
	require.Len(t, stub.events, 1)
}

func TestCaptureRejectsMalformedEmail(t *testing.T) {
	stub := &stubLoops{}
	svc := NewService(stub, Config{})

	lead := &Lead{Email: "not-an-email", Website: "https://example.com"}
	err := svc.Capture(context.Background(), lead)

	assert.ErrorIs(t, err, ErrInvalidLead)
	assert.Empty(t, stub.contacts)
	assert.Empty(t, stub.events)
}

func TestCaptureCreatesContactAndSendsEvent(t *testing.T) {
	stub := &stubLoops{}
	svc := NewService(stub, Config{})

	lead := &Lead{
		Email:     "lead@example.com",
		FirstName: "Pat",
		Website:   "https://example.com",
		Score:     72,
	}
	err := svc.Capture(context.Background(), lead)
	require.NoError(t, err)

	require.Len(t, stub.contacts, 1)
	contact := stub.contacts[0]
	assert.Equal(t, "lead@example.com", contact.Email)
	assert.Equal(t, "Pat", contact.FirstName)
	assert.Equal(t, "https://example.com", contact.Properties["website"])
	assert.Equal(t, 72, contact.Properties["auditScore"])
	assert.Equal(t, "site-audit", contact.Properties["source"])

	assert.Empty(t, stub.updates)

	require.Len(t, stub.events, 1)
	event := stub.events[0]
	assert.Equal(t, "lead@example.com", event.Email)
	assert.Equal(t, EventSiteAuditLead, event.EventName)
	assert.Equal(t, "https://example.com", event.EventProperties["website"])

	assert.Empty(t, stub.transactionals, "no template configured, nothing should be sent")
}

func TestCaptureNormalisesEmail(t *testing.T) {
	stub := &stubLoops{}
	svc := NewService(stub, Config{})

	lead := &Lead{Email: "  Lead@Example.COM ", Website: "https://example.com"}
	err := svc.Capture(context.Background(), lead)
	require.NoError(t, err)

	require.Len(t, stub.contacts, 1)
	assert.Equal(t, "lead@example.com", stub.contacts[0].Email)
}

func TestCaptureConflictFallsBackToUpdate(t *testing.T) {
	stub := &stubLoops{
		createErr: &loops.APIError{StatusCode: http.StatusConflict, Message: "Email already on list."},
	}
	svc := NewService(stub, Config{})

	lead := &Lead{Email: "lead@example.com", Website: "https://example.com", Score: 55}
	err := svc.Capture(context.Background(), lead)
	require.NoError(t, err)

	require.Len(t, stub.updates, 1)
	assert.Equal(t, "lead@example.com", stub.updates[0].Email)
	assert.Equal(t, 55, stub.updates[0].Properties["auditScore"])

	require.Len(t, stub.events, 1, "event still fires for returning contacts")
}

func TestCaptureCreateFailurePropagates(t *testing.T) {
	stub := &stubLoops{
		createErr: &loops.APIError{StatusCode: http.StatusInternalServerError, Message: "upstream down"},
	}
	svc := NewService(stub, Config{})

	lead := &Lead{Email: "lead@example.com", Website: "https://example.com"}
	err := svc.Capture(context.Background(), lead)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidLead)
	assert.Empty(t, stub.updates)
	assert.Empty(t, stub.events)
}

func TestCaptureEventFailurePropagates(t *testing.T) {
	stub := &stubLoops{eventErr: errors.New("connection reset")}
	svc := NewService(stub, Config{})

	lead := &Lead{Email: "lead@example.com", Website: "https://example.com"}
	err := svc.Capture(context.Background(), lead)

	require.Error(t, err)
	require.Len(t, stub.contacts, 1)
}

func TestCaptureSendsReportEmailWhenConfigured(t *testing.T) {
	stub := &stubLoops{}
	svc := NewService(stub, Config{TransactionalID: "cmte5b8qx0001"})

	lead := &Lead{Email: "lead@example.com", Website: "https://example.com", Score: 81}
	err := svc.Capture(context.Background(), lead)
	require.NoError(t, err)

	require.Len(t, stub.transactionals, 1)
	report := stub.transactionals[0]
	assert.Equal(t, "cmte5b8qx0001", report.TransactionalID)
	assert.Equal(t, "lead@example.com", report.Email)
	assert.True(t, report.AddToAudience)
	assert.NotEmpty(t, report.IdempotencyKey)
	assert.Equal(t, "https://example.com", report.DataVariables["website"])
	assert.Equal(t, 81, report.DataVariables["score"])
}

func TestCaptureReportEmailFailureIsNotFatal(t *testing.T) {
	stub := &stubLoops{sendErr: errors.New("template not found")}
	svc := NewService(stub, Config{TransactionalID: "cmte5b8qx0001"})

	lead := &Lead{Email: "lead@example.com", Website: "https://example.com"}
	err := svc.Capture(context.Background(), lead)

	assert.NoError(t, err, "the lead is already recorded, email delivery is best effort")
	require.Len(t, stub.transactionals, 1)
}

func TestCaptureDevMode(t *testing.T) {
	svc := NewService(nil, Config{})

	lead := &Lead{Email: "lead@example.com", Website: "https://example.com"}
	err := svc.Capture(context.Background(), lead)

	assert.NoError(t, err)
}
