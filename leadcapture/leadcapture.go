// Package leadcapture implements the email-capture step of the email-first
// funnel: it registers the lead and sends the buyer on to the personal-plan
// checkout page.
package leadcapture

import (
	"context"
	"net/url"
	"strings"

	checkout "github.com/aprskavec/stripe-framer"
	"github.com/aprskavec/stripe-framer/analytics"
	checkouthttp "github.com/aprskavec/stripe-framer/http"
	"github.com/aprskavec/stripe-framer/identity"
)

const (
	// SourceEmailCapture tags leads captured by the standalone step
	SourceEmailCapture = "email_capture_step"
	// SourceCombinedFlow tags leads captured by the combined email + checkout widget
	SourceCombinedFlow = "combined_flow"

	// CheckoutPath is the locale-relative page the buyer is sent to
	CheckoutPath = "/personal-plan/get-pro"

	// DefaultSiteURL is the site the redirect points at
	DefaultSiteURL = "https://captainenglish.com"

	component = "EmailCaptureStep"
)

// LeadCreator registers leads; satisfied by *http.LeadClient
type LeadCreator interface {
	CreateLead(ctx context.Context, lead checkouthttp.Lead) (string, error)
}

// Capture is one submitted form
type Capture struct {
	Email     string
	Locale    string
	ClickID   string
	UserAgent string
}

// Result is a successful capture
type Result struct {
	Status      string
	RedirectURL string
}

// Step is the email-capture collaborator. It holds no per-buyer state.
type Step struct {
	leads     LeadCreator
	analytics checkout.AnalyticsSink
	telemetry checkout.TelemetrySink
	siteURL   string
	source    string
}

// Option configures a Step
type Option func(*Step)

// WithAnalytics sets where generate_lead events go
func WithAnalytics(sink checkout.AnalyticsSink) Option {
	return func(s *Step) {
		s.analytics = sink
	}
}

// WithTelemetry sets the telemetry sink
func WithTelemetry(sink checkout.TelemetrySink) Option {
	return func(s *Step) {
		s.telemetry = sink
	}
}

// WithSiteURL sets the site the redirect points at
func WithSiteURL(siteURL string) Option {
	return func(s *Step) {
		s.siteURL = siteURL
	}
}

// WithSource sets the lead source tag
func WithSource(source string) Option {
	return func(s *Step) {
		s.source = source
	}
}

// New creates a Step
func New(leads LeadCreator, opts ...Option) *Step {
	s := &Step{
		leads:     leads,
		analytics: analytics.Default(),
		telemetry: checkout.NopTelemetry{},
		siteURL:   DefaultSiteURL,
		source:    SourceEmailCapture,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidEmail reports whether email looks deliverable enough to submit
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	return email != "" && strings.Contains(email, "@")
}

// Submit validates the email, registers the lead, emits generate_lead and
// returns the checkout URL for the buyer.
func (s *Step) Submit(ctx context.Context, capture Capture) (Result, error) {
	email := strings.TrimSpace(capture.Email)
	if !ValidEmail(email) {
		err := checkout.NewCheckoutError(checkout.ErrKindValidation, "please enter a valid email address", nil)
		s.telemetry.AddBreadcrumb(ctx, checkout.Breadcrumb{
			Category: "validation",
			Message:  "invalid email submitted",
			Level:    checkout.LevelWarning,
			Data:     map[string]interface{}{"component": component},
		})
		return Result{}, err
	}

	status, err := s.leads.CreateLead(ctx, checkouthttp.Lead{
		Email:     email,
		Locale:    capture.Locale,
		ClickID:   capture.ClickID,
		Source:    s.source,
		UserAgent: capture.UserAgent,
	})
	if err != nil {
		// Rejected input is the buyer's to fix, not a defect to report
		if !checkout.IsCancelled(err) && checkout.KindOf(err) != checkout.ErrKindValidation {
			s.telemetry.CaptureException(ctx, err, checkout.ExceptionReport{
				Tags: map[string]string{
					"component":  component,
					"action":     "create_lead",
					"error_type": string(checkout.KindOf(err)),
				},
				Extra: map[string]interface{}{
					"email":      email,
					"locale":     capture.Locale,
					"has_fbclid": capture.ClickID != "",
				},
			})
		}
		return Result{}, err
	}

	s.telemetry.AddBreadcrumb(ctx, checkout.Breadcrumb{
		Category: "email_capture",
		Message:  "lead created successfully",
		Level:    checkout.LevelInfo,
		Data: map[string]interface{}{
			"status":     status,
			"locale":     capture.Locale,
			"has_fbclid": capture.ClickID != "",
		},
	})
	s.analytics.Push(analytics.LeadEvent(email, capture.Locale, s.source, status, capture.ClickID != ""))

	return Result{
		Status:      status,
		RedirectURL: RedirectURL(s.siteURL, capture.Locale, email, capture.ClickID),
	}, nil
}

// RedirectURL builds the personal-plan checkout URL, preserving the email
// and the ad click id
func RedirectURL(siteURL, locale, email, clickID string) string {
	query := url.Values{}
	query.Set("email", email)
	if clickID != "" {
		query.Set(identity.ClickIDParam, clickID)
	}
	return identity.LocaleURL(siteURL, locale, CheckoutPath, query)
}

// CaptureFromSignals prefills a capture from the current navigation
func CaptureFromSignals(signals *identity.Signals, email, userAgent string) Capture {
	return Capture{
		Email:     email,
		Locale:    signals.Locale(),
		ClickID:   signals.ClickID(),
		UserAgent: userAgent,
	}
}
