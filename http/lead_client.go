package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	checkout "github.com/aprskavec/stripe-framer"
)

// ============================================================================
// Lead Client
// ============================================================================

// Lead statuses accepted as success
const (
	LeadCreated       = "lead_created"
	LeadAlreadyExists = "lead_already_exists"
)

// LeadClient registers marketing leads with the backend
type LeadClient struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
}

// LeadConfig configures the lead client
type LeadConfig struct {
	// URL is the lead endpoint (optional, defaults to the base session backend)
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for each request (optional, defaults to 10s)
	Timeout time.Duration
}

// NewLeadClient creates a lead client
func NewLeadClient(config *LeadConfig) *LeadClient {
	if config == nil {
		config = &LeadConfig{}
	}
	url := config.URL
	if url == "" {
		url = checkout.DefaultBaseEndpoint
	}
	return &LeadClient{
		url:        url,
		httpClient: resolveClient(config.HTTPClient),
		timeout:    resolveTimeout(config.Timeout),
	}
}

// Lead is one email capture
type Lead struct {
	Email     string
	Locale    string
	ClickID   string
	Source    string
	UserAgent string
}

type leadMetadata struct {
	Fbclid    string `json:"fbclid"`
	Source    string `json:"source"`
	UserAgent string `json:"user_agent"`
}

type leadRequest struct {
	Action        string       `json:"action"`
	Email         string       `json:"email"`
	CurrentLocale string       `json:"current_locale"`
	Metadata      leadMetadata `json:"metadata"`
}

type leadResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// CreateLead registers the lead and returns the backend status, either
// LeadCreated or LeadAlreadyExists.
func (c *LeadClient) CreateLead(ctx context.Context, lead Lead) (string, error) {
	status, body, err := postJSON(ctx, c.httpClient, c.timeout, c.url, leadRequest{
		Action:        "create_lead",
		Email:         lead.Email,
		CurrentLocale: lead.Locale,
		Metadata: leadMetadata{
			Fbclid:    lead.ClickID,
			Source:    lead.Source,
			UserAgent: lead.UserAgent,
		},
	})
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", statusError(checkout.ErrKindNetwork, status, body)
	}

	if err := ValidateLeadResponse(body); err != nil {
		return "", checkout.WrapError(checkout.ErrKindNetwork, "invalid response from server", err)
	}

	var resp leadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", checkout.WrapError(checkout.ErrKindNetwork, "invalid response from server", err)
	}

	switch resp.Status {
	case LeadCreated, LeadAlreadyExists:
		return resp.Status, nil
	}
	message := resp.Error
	if message == "" {
		message = "unexpected lead status: " + resp.Status
	}
	return "", checkout.NewCheckoutError(checkout.ErrKindNetwork, message, map[string]interface{}{
		"status": resp.Status,
	})
}
