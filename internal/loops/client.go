// Package loops is a minimal client for the Loops.so email platform,
// covering the endpoints lead capture needs: contact upserts, event
// triggers and transactional sends.
// API reference: https://loops.so/docs/api-reference
package loops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	baseURL        = "https://app.loops.so/api/v1"
	defaultTimeout = 10 * time.Second
)

// Client calls the Loops.so REST API.
type Client struct {
	apiKey     string
	httpClient *http.Client
}

// New returns a client authenticated with the given API key.
func New(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// TransactionalRequest asks Loops to render and send one email from a
// template.
type TransactionalRequest struct {
	// Email is the recipient address.
	Email string `json:"email"`
	// TransactionalID names the template in the Loops dashboard.
	TransactionalID string `json:"transactionalId"`
	// DataVariables fill the template placeholders.
	DataVariables map[string]any `json:"dataVariables,omitempty"`
	// AddToAudience also creates a contact record for the recipient.
	AddToAudience bool `json:"addToAudience,omitempty"`
	// IdempotencyKey suppresses duplicate sends within 24 hours. Sent
	// as a header, not in the body.
	IdempotencyKey string `json:"-"`
}

// SendTransactional sends a templated email to one recipient.
func (c *Client) SendTransactional(ctx context.Context, req *TransactionalRequest) error {
	return c.call(ctx, http.MethodPost, "/transactional", req, req.IdempotencyKey)
}

// EventRequest fires a named event against a contact, identified by
// email or user ID.
type EventRequest struct {
	Email           string         `json:"email,omitempty"`
	UserID          string         `json:"userId,omitempty"`
	EventName       string         `json:"eventName"`
	EventProperties map[string]any `json:"eventProperties,omitempty"`
}

// SendEvent triggers any Loops automations listening for the event.
func (c *Client) SendEvent(ctx context.Context, req *EventRequest) error {
	return c.call(ctx, http.MethodPost, "/events/send", req, "")
}

// ContactRequest creates or updates a contact record.
type ContactRequest struct {
	Email      string         `json:"email"`
	UserID     string         `json:"userId,omitempty"`
	FirstName  string         `json:"firstName,omitempty"`
	LastName   string         `json:"lastName,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// CreateContact adds a new contact. Loops answers 409 when the email
// already exists; callers fall back to UpdateContact.
func (c *Client) CreateContact(ctx context.Context, req *ContactRequest) error {
	return c.call(ctx, http.MethodPost, "/contacts/create", req, "")
}

// UpdateContact updates an existing contact matched by email.
func (c *Client) UpdateContact(ctx context.Context, req *ContactRequest) error {
	return c.call(ctx, http.MethodPut, "/contacts/update", req, "")
}

// APIError is a non-2xx response from the Loops API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("loops: API error %d: %s", e.StatusCode, e.Message)
}

// call marshals the payload, issues the request and maps any non-2xx
// response to an APIError.
func (c *Client) call(ctx context.Context, method, path string, payload any, idempotencyKey string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("loops: marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("loops: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("loops: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)

	var apiResp struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(respBody, &apiResp) == nil && apiResp.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: apiResp.Message}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
}
