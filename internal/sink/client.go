// Package sink implements the client for the external contact-list
// destination (email list provider). Each ICP category routes to one list
// at the sink; the executor pushes contacts one at a time so that a single
// rejected contact never aborts a category.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/beaivisible/discovery-engine/internal/config"
	"github.com/beaivisible/discovery-engine/internal/domain"
	"github.com/beaivisible/discovery-engine/internal/pkg/httpretry"
)

// Pusher is the boundary contract the sync executor depends on.
// Implementations must be safe for concurrent use.
type Pusher interface {
	// PushContact adds one contact to the given destination list.
	// A non-nil error means this contact was not accepted; the caller
	// decides whether to continue with the rest of the category.
	PushContact(ctx context.Context, listID string, contact domain.Contact, payload PushPayload) error
}

// PushPayload carries the option-driven extras of a push call.
// It shapes the sink request only; matching and grouping never read it.
type PushPayload struct {
	// Category tags the contact with its matched ICP category
	// (store_category_on_entity option).
	Category string
	// Status is the destination-side subscription status
	// ("subscribed" / "unsubscribed").
	Status string
	// SendWelcome triggers the destination-side welcome automation.
	SendWelcome bool
}

// Client is the list-provider API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a new sink API client.
func NewClient(cfg config.SinkConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// subscriberRequest is the wire format of a list subscribe call.
type subscriberRequest struct {
	Email       string            `json:"email"`
	Name        string            `json:"name,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	Status      string            `json:"status,omitempty"`
	SendWelcome bool              `json:"send_welcome,omitempty"`
}

// PushContact adds one contact to the given destination list.
func (c *Client) PushContact(ctx context.Context, listID string, contact domain.Contact, payload PushPayload) error {
	if contact.Email == "" {
		return fmt.Errorf("contact %s has no email", contact.ID)
	}

	req := subscriberRequest{
		Email:       contact.Email,
		Name:        contact.Name,
		Status:      payload.Status,
		SendWelcome: payload.SendWelcome,
	}
	if contact.Title != "" {
		if req.Fields == nil {
			req.Fields = make(map[string]string)
		}
		req.Fields["title"] = contact.Title
	}
	if payload.Category != "" {
		if req.Fields == nil {
			req.Fields = make(map[string]string)
		}
		req.Fields["icp_category"] = payload.Category
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal subscriber: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/lists/%s/subscribers", c.baseURL, listID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sink API error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}
