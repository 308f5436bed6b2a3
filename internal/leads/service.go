// Package leads captures report requests from the audit results page
// and pushes them into Loops as the CRM of record.
package leads

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	emailverifier "github.com/AfterShip/email-verifier"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/SRK-Yoom/siteaudit/internal/loops"
	"github.com/SRK-Yoom/siteaudit/internal/util"
)

// ErrInvalidLead marks a submission that cannot be accepted. Handlers
// map it to a 400 response.
var ErrInvalidLead = errors.New("invalid lead")

// EventSiteAuditLead triggers the report follow-up automation in
// Loops.
const EventSiteAuditLead = "site_audit_lead"

var verifier = emailverifier.NewVerifier()

// Lead is one submission from the audit results page.
type Lead struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Website   string `json:"website"`
	Score     int    `json:"score,omitempty"`

	// FreeProvider and Disposable describe the email domain, for lead
	// qualification. Best effort; false when verification is
	// unavailable.
	FreeProvider bool `json:"freeProvider,omitempty"`
	Disposable   bool `json:"disposable,omitempty"`

	Meta *util.RequestMeta `json:"-"`
}

// LoopsClient is the subset of the Loops API the service uses.
type LoopsClient interface {
	CreateContact(ctx context.Context, req *loops.ContactRequest) error
	UpdateContact(ctx context.Context, req *loops.ContactRequest) error
	SendEvent(ctx context.Context, req *loops.EventRequest) error
	SendTransactional(ctx context.Context, req *loops.TransactionalRequest) error
}

// Config tunes lead capture.
type Config struct {
	// TransactionalID is the Loops template for the report email.
	// Empty disables the send and leaves delivery to a Loops
	// automation listening for the event.
	TransactionalID string
}

// Service validates and records leads. A nil Loops client puts the
// service in dev mode: submissions are logged and accepted without any
// outbound call.
type Service struct {
	loops           LoopsClient
	transactionalID string
}

func NewService(client LoopsClient, cfg Config) *Service {
	return &Service{
		loops:           client,
		transactionalID: cfg.TransactionalID,
	}
}

// Capture validates the lead and records it in Loops: the contact is
// created (or updated when it already exists), the report-requested
// event is fired, and the report email is sent when a template is
// configured.
func (s *Service) Capture(ctx context.Context, lead *Lead) error {
	lead.Email = strings.ToLower(strings.TrimSpace(lead.Email))
	lead.Website = strings.TrimSpace(lead.Website)

	if lead.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidLead)
	}

	result, err := verifier.Verify(lead.Email)
	if err != nil {
		log.Warn().Err(err).Msg("Email verifier failed")
	} else {
		if !result.Syntax.Valid {
			return fmt.Errorf("%w: email address is not valid", ErrInvalidLead)
		}
		lead.FreeProvider = result.Free
		lead.Disposable = result.Disposable
	}

	if s.loops == nil {
		log.Info().
			Str("email", lead.Email).
			Str("website", lead.Website).
			Msg("Loops not configured, lead logged only")
		return nil
	}

	props := map[string]any{
		"source":       "site-audit",
		"freeProvider": lead.FreeProvider,
	}
	if lead.Website != "" {
		props["website"] = lead.Website
	}
	if lead.Score > 0 {
		props["auditScore"] = lead.Score
	}

	contact := &loops.ContactRequest{
		Email:      lead.Email,
		FirstName:  lead.FirstName,
		LastName:   lead.LastName,
		Properties: props,
	}
	if err := s.loops.CreateContact(ctx, contact); err != nil {
		var apiErr *loops.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			if err := s.loops.UpdateContact(ctx, contact); err != nil {
				return fmt.Errorf("updating contact: %w", err)
			}
		} else {
			return fmt.Errorf("creating contact: %w", err)
		}
	}

	eventProps := map[string]any{"score": lead.Score}
	if lead.Website != "" {
		eventProps["website"] = lead.Website
	}
	event := &loops.EventRequest{
		Email:           lead.Email,
		EventName:       EventSiteAuditLead,
		EventProperties: eventProps,
	}
	if err := s.loops.SendEvent(ctx, event); err != nil {
		return fmt.Errorf("sending event: %w", err)
	}

	if s.transactionalID != "" {
		report := &loops.TransactionalRequest{
			Email:           lead.Email,
			TransactionalID: s.transactionalID,
			AddToAudience:   true,
			IdempotencyKey:  uuid.NewString(),
			DataVariables: map[string]any{
				"website": lead.Website,
				"score":   lead.Score,
			},
		}
		if err := s.loops.SendTransactional(ctx, report); err != nil {
			// Losing the email is recoverable, losing the lead is not.
			log.Error().Err(err).Str("email", lead.Email).Msg("Failed to send report email")
		}
	}

	log.Info().
		Str("email", lead.Email).
		Str("website", lead.Website).
		Int("score", lead.Score).
		Msg("Lead captured")

	return nil
}
