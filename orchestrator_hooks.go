package checkout

import (
	"context"
	"time"
)

// ============================================================================
// Orchestrator Hook Context Types
// ============================================================================

// AttemptContext identifies one orchestration attempt
type AttemptContext struct {
	Ctx        context.Context
	Variant    Variant
	Buyer      BuyerContext
	Generation uint64
	AttemptID  string
	Started    time.Time
}

// PhaseChangeContext is passed to phase-change hooks
type PhaseChangeContext struct {
	From       Phase
	To         Phase
	Generation uint64
	Timestamp  time.Time
}

// MountResultContext contains a successful mount
type MountResultContext struct {
	AttemptContext
	Token      SessionToken
	CustomerID string
	Duration   time.Duration
}

// FailureContext contains an attempt failure
type FailureContext struct {
	AttemptContext
	Error    error
	Message  string
	Duration time.Duration
}

// CompletionContext contains a completed payment
type CompletionContext struct {
	AttemptContext
	CustomerID string
	// RedirectURL is the success page for the buyer's locale, or "" when the
	// variant leaves the redirect to the backend
	RedirectURL string
	Duration    time.Duration
}

// ============================================================================
// Orchestrator Hook Result Types
// ============================================================================

// BeforeHookResult represents the result of a "before" hook
// If Abort is true, the attempt is aborted with the given Reason
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// ============================================================================
// Orchestrator Hook Function Types
// ============================================================================

// BeforeSessionHook is called before the session request is issued.
// Returning Abort=true fails the attempt with a session_creation_failed error
// carrying Reason. A returned error fails the attempt the same way.
type BeforeSessionHook func(AttemptContext) (*BeforeHookResult, error)

// AfterMountHook is called after the payment form is mounted
type AfterMountHook func(MountResultContext)

// OnFailureHook is called once per failed attempt, after telemetry
type OnFailureHook func(FailureContext)

// OnCompleteHook is called when the buyer completes payment
type OnCompleteHook func(CompletionContext)

// OnPhaseChangeHook is called on every phase transition, in order, after the
// orchestrator's lock is released. Hooks may call back into the orchestrator.
type OnPhaseChangeHook func(PhaseChangeContext)

// ============================================================================
// Orchestrator Hook Registration Options
// ============================================================================

// WithBeforeSessionHook registers a hook to execute before the session request
func WithBeforeSessionHook(hook BeforeSessionHook) Option {
	return func(o *Orchestrator) {
		o.beforeSessionHooks = append(o.beforeSessionHooks, hook)
	}
}

// WithAfterMountHook registers a hook to execute after a successful mount
func WithAfterMountHook(hook AfterMountHook) Option {
	return func(o *Orchestrator) {
		o.afterMountHooks = append(o.afterMountHooks, hook)
	}
}

// WithOnFailureHook registers a hook to execute when an attempt fails
func WithOnFailureHook(hook OnFailureHook) Option {
	return func(o *Orchestrator) {
		o.onFailureHooks = append(o.onFailureHooks, hook)
	}
}

// WithOnCompleteHook registers a hook to execute when payment completes
func WithOnCompleteHook(hook OnCompleteHook) Option {
	return func(o *Orchestrator) {
		o.onCompleteHooks = append(o.onCompleteHooks, hook)
	}
}

// WithOnPhaseChangeHook registers a hook to execute on every phase transition
func WithOnPhaseChangeHook(hook OnPhaseChangeHook) Option {
	return func(o *Orchestrator) {
		o.onPhaseChangeHooks = append(o.onPhaseChangeHooks, hook)
	}
}
