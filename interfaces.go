package checkout

import (
	"context"
	"time"
)

// ============================================================================
// Backend
// ============================================================================

// SessionRequester exchanges buyer context for a payment-session token.
//
// Implementations must honor ctx cancellation: a cancelled call never
// returns a SessionResult. Failures should be *CheckoutError values of kind
// network_error, timeout or session_creation_failed; caller cancellation
// should be reported as ErrCancelled.
type SessionRequester interface {
	RequestSession(ctx context.Context, buyer BuyerContext, variant Variant) (SessionResult, error)
}

// ============================================================================
// Payment Runtime
// ============================================================================

// PaymentRuntime is the shared handle to the third-party payment runtime.
// It is read-only and shared by every orchestrator in the process.
type PaymentRuntime interface {
	// InitEmbeddedCheckout initializes an embedded checkout for one token.
	// The returned handle is exclusively owned by the caller.
	InitEmbeddedCheckout(ctx context.Context, token SessionToken) (EmbeddedCheckout, error)
}

// EmbeddedCheckout is a payment form initialized against one session token
type EmbeddedCheckout interface {
	// Mount attaches the form to an anchor
	Mount(anchor Anchor) error

	// Destroy releases the form. The handle must not be used afterwards.
	Destroy()

	// Done is closed when the buyer completes payment
	Done() <-chan struct{}
}

// RuntimeBootstrap performs the one-time load of the runtime (the equivalent
// of injecting its bootstrap script). It returns once the load finished.
type RuntimeBootstrap func(ctx context.Context) error

// RuntimeLookup constructs the runtime with the merchant's publishable key
// if the runtime script is present in the process, or returns nil.
type RuntimeLookup func(publishableKey string) PaymentRuntime

// ============================================================================
// Mount Point & Visibility
// ============================================================================

// Anchor identifies the host element a payment form is mounted into
type Anchor interface {
	AnchorID() string
}

// ElementID is an Anchor addressed by element id
type ElementID string

func (e ElementID) AnchorID() string { return string(e) }

// VisibilityEntry is one observation of an anchor's visibility
type VisibilityEntry struct {
	Intersecting bool
	Ratio        float64
	Time         time.Time
}

// ObserveOptions configures a visibility observation
type ObserveOptions struct {
	// Threshold is the visible fraction that counts as "seen"
	Threshold float64
	// RootMargin grows the viewport by this many units on every side
	RootMargin int
}

// VisibilityObserver is the platform's intersection-observation facility
type VisibilityObserver interface {
	// Observe starts delivering entries for anchor to fn until detach is called
	Observe(anchor Anchor, opts ObserveOptions, fn func(VisibilityEntry)) (detach func())
}

// IdleScheduler runs work at an idle point of the host's schedule
type IdleScheduler interface {
	RequestIdle(fn func())
}

// ============================================================================
// Sinks
// ============================================================================

// AnalyticsEvent is a plain structured record appended to the analytics queue
type AnalyticsEvent map[string]interface{}

// Name returns the event tag, e.g. "begin_checkout"
func (e AnalyticsEvent) Name() string {
	name, _ := e["event"].(string)
	return name
}

// AnalyticsSink is the process-wide append-only analytics queue.
// Push is fire-and-forget.
type AnalyticsSink interface {
	Push(event AnalyticsEvent)
}

// Level is a breadcrumb severity
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Breadcrumb is a telemetry trail entry
type Breadcrumb struct {
	Category string
	Message  string
	Level    Level
	Data     map[string]interface{}
}

// ExceptionReport carries the context attached to a captured exception
type ExceptionReport struct {
	Tags  map[string]string
	Extra map[string]interface{}
}

// TelemetrySink receives error telemetry. It is best-effort: implementations
// must not block and must tolerate being absent (see NopTelemetry).
type TelemetrySink interface {
	CaptureException(ctx context.Context, err error, report ExceptionReport)
	AddBreadcrumb(ctx context.Context, crumb Breadcrumb)
}

// NopTelemetry discards everything
type NopTelemetry struct{}

func (NopTelemetry) CaptureException(context.Context, error, ExceptionReport) {}
func (NopTelemetry) AddBreadcrumb(context.Context, Breadcrumb)                {}

// nopAnalytics discards events
type nopAnalytics struct{}

func (nopAnalytics) Push(AnalyticsEvent) {}
