package checkout

import (
	"fmt"
	"strings"
)

// FunnelKind selects which item descriptor and backend endpoint a checkout attempt uses
type FunnelKind string

const (
	FunnelOptionA FunnelKind = "option_a"
	FunnelOptionB FunnelKind = "option_b"
	FunnelUpsell  FunnelKind = "upsell"
)

// IsUpsell reports whether the kind describes a post-purchase upsell
func (k FunnelKind) IsUpsell() bool {
	return k == FunnelUpsell
}

// personalPlanSegment marks pages that belong to the email-first funnel
const personalPlanSegment = "/personal-plan/"

// KindForPath returns the base-offer funnel kind a page path belongs to.
// Pages under /personal-plan/ follow the email-first funnel (option_b);
// everything else is the direct checkout funnel (option_a).
func KindForPath(path string) FunnelKind {
	if strings.Contains(path, personalPlanSegment) {
		return FunnelOptionB
	}
	return FunnelOptionA
}

// SessionToken is the opaque client secret returned by the session backend.
// It authorizes exactly one mount attempt.
type SessionToken string

// SessionResult is a successful session-creation response
type SessionResult struct {
	Token      SessionToken `json:"clientSecret"`
	CustomerID string       `json:"customer_id,omitempty"`
}

// BuyerContext is the identity and attribution bundle for one checkout attempt.
// Empty strings mean "absent".
type BuyerContext struct {
	Email       string `json:"email,omitempty"`
	Locale      string `json:"locale"`
	ClickID     string `json:"clickId,omitempty"`
	BrowserID   string `json:"browserId,omitempty"`
	SessionRef  string `json:"sessionRef,omitempty"`
	CustomerRef string `json:"customerRef,omitempty"`

	// UserAgent is forwarded to the backend but is not identity-relevant
	UserAgent string `json:"userAgent,omitempty"`
}

// Identity returns the identity-relevant fields of the context.
// Two contexts with equal identities produce the same session request.
func (b BuyerContext) Identity() BuyerContext {
	b.UserAgent = ""
	return b
}

// SameIdentity reports whether two contexts share identity-relevant fields
func (b BuyerContext) SameIdentity(other BuyerContext) bool {
	return b.Identity() == other.Identity()
}

// HasEmail reports whether an email is present
func (b BuyerContext) HasEmail() bool {
	return b.Email != ""
}

// LineItem is one entry of a variant's item descriptor
type LineItem struct {
	ID       string  `json:"item_id"`
	Name     string  `json:"item_name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Category string  `json:"item_category"`
}

// Variant describes one checkout widget: which funnel it belongs to, where
// its sessions come from, what it sells and which analytics event it emits
// once the payment form is visible.
type Variant struct {
	Kind      FunnelKind
	Component string
	Endpoint  string
	Currency  string
	Items     []LineItem
	Event     string

	// SuccessPath is the locale-relative page the buyer is sent to once the
	// payment completes. Empty when the backend's return URL handles it.
	SuccessPath string

	// CombinedFlow tags analytics and telemetry as coming from the combined
	// email + checkout widget. It does not change control flow.
	CombinedFlow bool
}

// Value returns the summed price of the variant's items
func (v Variant) Value() float64 {
	var total float64
	for _, item := range v.Items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// WithEndpoint returns a copy of the variant pointing at a different backend
func (v Variant) WithEndpoint(endpoint string) Variant {
	v.Endpoint = endpoint
	return v
}

// WithKind returns a copy of the variant attributed to a different funnel
func (v Variant) WithKind(kind FunnelKind) Variant {
	v.Kind = kind
	return v
}

// Phase is a state of the checkout orchestration state machine
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRequestingSession
	PhaseSessionReady
	PhaseMounting
	PhaseMounted
	PhaseCompleted
	PhaseError
	PhaseUnmounted
)

var phaseNames = map[Phase]string{
	PhaseIdle:              "idle",
	PhaseRequestingSession: "requesting_session",
	PhaseSessionReady:      "session_ready",
	PhaseMounting:          "mounting",
	PhaseMounted:           "mounted",
	PhaseCompleted:         "completed",
	PhaseError:             "error",
	PhaseUnmounted:         "unmounted",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether the phase ends the orchestrator's life
func (p Phase) Terminal() bool {
	return p == PhaseUnmounted
}

// Snapshot is a point-in-time view of an orchestrator
type Snapshot struct {
	Phase      Phase
	Generation uint64
	AttemptID  string
	Token      SessionToken
	CustomerID string

	// RedirectURL is where to send the buyer once Phase is PhaseCompleted
	RedirectURL string

	// Message is the user-facing error message when Phase is PhaseError
	Message string
	Err     error
}
