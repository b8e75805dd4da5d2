package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	checkout "github.com/aprskavec/stripe-framer"
)

// ============================================================================
// Session Client
// ============================================================================

// SessionClient requests payment sessions from the session-creation backend.
// It implements checkout.SessionRequester.
type SessionClient struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
}

// SessionConfig configures the session client
type SessionConfig struct {
	// URL overrides the variant's endpoint (optional)
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for each request (optional, defaults to 10s)
	Timeout time.Duration
}

// NewSessionClient creates a session client
func NewSessionClient(config *SessionConfig) *SessionClient {
	if config == nil {
		config = &SessionConfig{}
	}
	return &SessionClient{
		url:        config.URL,
		httpClient: resolveClient(config.HTTPClient),
		timeout:    resolveTimeout(config.Timeout),
	}
}

var _ checkout.SessionRequester = (*SessionClient)(nil)

// clientIPPlaceholder tells the backend to fill in the caller's address
const clientIPPlaceholder = "will_be_set_server_side"

type sessionMetadata struct {
	Fbc               string `json:"fbc"`
	Fbp               string `json:"fbp"`
	ClientIP          string `json:"client_ip"`
	UserAgent         string `json:"user_agent"`
	OriginalSessionID string `json:"original_session_id,omitempty"`
	CombinedFlow      bool   `json:"combined_flow,omitempty"`
}

// SessionRequest is the JSON body sent to the session backend
type SessionRequest struct {
	Email         *string             `json:"email"`
	FunnelType    checkout.FunnelKind `json:"funnel_type"`
	CurrentLocale string              `json:"current_locale"`
	CustomerID    *string             `json:"customer_id,omitempty"`
	SessionID     *string             `json:"session_id,omitempty"`
	Items         []checkout.LineItem `json:"items,omitempty"`
	Metadata      sessionMetadata     `json:"metadata"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// BuildSessionRequest builds the request body for a buyer and variant
func BuildSessionRequest(buyer checkout.BuyerContext, variant checkout.Variant) SessionRequest {
	req := SessionRequest{
		Email:         optional(buyer.Email),
		FunnelType:    variant.Kind,
		CurrentLocale: buyer.Locale,
		Items:         variant.Items,
		Metadata: sessionMetadata{
			Fbc:          buyer.ClickID,
			Fbp:          buyer.BrowserID,
			ClientIP:     clientIPPlaceholder,
			UserAgent:    buyer.UserAgent,
			CombinedFlow: variant.CombinedFlow,
		},
	}
	if variant.Kind.IsUpsell() {
		req.CustomerID = optional(buyer.CustomerRef)
		req.SessionID = optional(buyer.SessionRef)
		req.Metadata.OriginalSessionID = buyer.SessionRef
	}
	return req
}

// RequestSession exchanges the buyer context for a session token.
//
// Errors:
//   - checkout.ErrCancelled when ctx is cancelled
//   - kind timeout when the request exceeds the client timeout
//   - kind network_error on transport failures
//   - kind session_creation_failed on non-2xx responses or a body without a client secret
func (c *SessionClient) RequestSession(ctx context.Context, buyer checkout.BuyerContext, variant checkout.Variant) (checkout.SessionResult, error) {
	url := c.url
	if url == "" {
		url = variant.Endpoint
	}
	if url == "" {
		return checkout.SessionResult{}, checkout.NewCheckoutError(checkout.ErrKindValidation, "no session endpoint configured", nil)
	}

	status, body, err := postJSON(ctx, c.httpClient, c.timeout, url, BuildSessionRequest(buyer, variant))
	if err != nil {
		return checkout.SessionResult{}, err
	}
	if status < 200 || status >= 300 {
		return checkout.SessionResult{}, statusError(checkout.ErrKindSessionCreationFailed, status, body)
	}

	if err := ValidateSessionResponse(body); err != nil {
		return checkout.SessionResult{}, &checkout.CheckoutError{
			Kind:    checkout.ErrKindSessionCreationFailed,
			Message: "client secret not found in response",
			Details: map[string]interface{}{"status": status, "body": string(body)},
			Err:     err,
		}
	}

	var result checkout.SessionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return checkout.SessionResult{}, checkout.WrapError(checkout.ErrKindSessionCreationFailed, "failed to decode session response", err)
	}
	return result, nil
}
