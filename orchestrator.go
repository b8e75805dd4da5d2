package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	ErrMissingSessionRequester = errors.New("checkout: session requester is required")
	ErrMissingAnchor           = errors.New("checkout: mount anchor is required")
)

// Dependencies are the collaborators an Orchestrator drives
type Dependencies struct {
	// Sessions obtains session tokens (required)
	Sessions SessionRequester

	// Runtime provides the shared payment runtime.
	// Defaults to DefaultRuntimeLoader() at attempt time.
	Runtime RuntimeProvider

	// Anchor is the element the payment form is mounted into (required)
	Anchor Anchor

	// Observer and Scheduler drive visibility tracking (optional)
	Observer  VisibilityObserver
	Scheduler IdleScheduler

	// Sinks (optional)
	Analytics AnalyticsSink
	Telemetry TelemetrySink
}

// Orchestrator owns the lifecycle of one embedded checkout widget:
// session request, runtime load, mount, visibility-gated analytics,
// completion and teardown.
//
// Every attempt runs on its own goroutine and is identified by a
// generation. Results of superseded generations are dropped.
type Orchestrator struct {
	variant  Variant
	deps     Dependencies
	parent   context.Context
	clock    func() time.Time
	newID    func() string
	pagePath string
	redirect RedirectBuilder

	mu         sync.Mutex
	enabled    bool
	closed     bool
	phase      Phase
	generation uint64
	buyer      BuyerContext
	hasBuyer   bool
	current    *attempt
	token      SessionToken
	customerID string
	redirectTo string
	message    string
	err        error
	changed    chan struct{}

	// transitions queued under mu, delivered to phase hooks by unlock
	transitions []PhaseChangeContext
	delivering  bool

	beforeSessionHooks []BeforeSessionHook
	afterMountHooks    []AfterMountHook
	onFailureHooks     []OnFailureHook
	onCompleteHooks    []OnCompleteHook
	onPhaseChangeHooks []OnPhaseChangeHook
}

// attempt is one pass through request → load → mount for one generation
type attempt struct {
	gen     uint64
	id      string
	buyer   BuyerContext
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time

	checkout     EmbeddedCheckout
	stopTracking func()

	// emitMu orders analytics emission against teardown
	emitMu   sync.Mutex
	released bool
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithEnabled sets whether orchestration starts as soon as a buyer is known
func WithEnabled(enabled bool) Option {
	return func(o *Orchestrator) {
		o.enabled = enabled
	}
}

// WithContext sets the parent context of every attempt
func WithContext(ctx context.Context) Option {
	return func(o *Orchestrator) {
		o.parent = ctx
	}
}

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

// WithAttemptIDGenerator overrides how attempt ids are generated
func WithAttemptIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		o.newID = gen
	}
}

// WithPagePath records the page the widget is embedded in for analytics
func WithPagePath(path string) Option {
	return func(o *Orchestrator) {
		o.pagePath = path
	}
}

// RedirectBuilder turns a locale and a locale-relative path into the URL the
// buyer is sent to
type RedirectBuilder func(locale, path string) string

// LocaleRedirect prefixes path with the locale segment, keeping it relative
// to the current site
func LocaleRedirect(locale, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if locale == "" {
		return path
	}
	return "/" + locale + path
}

// WithRedirectBuilder sets how the success redirect is built
func WithRedirectBuilder(build RedirectBuilder) Option {
	return func(o *Orchestrator) {
		o.redirect = build
	}
}

// New creates an orchestrator for one widget variant. The orchestrator stays
// Idle until it receives a buyer through Update.
func New(variant Variant, deps Dependencies, opts ...Option) (*Orchestrator, error) {
	if deps.Sessions == nil {
		return nil, ErrMissingSessionRequester
	}
	if deps.Anchor == nil {
		return nil, ErrMissingAnchor
	}
	if deps.Analytics == nil {
		deps.Analytics = nopAnalytics{}
	}
	if deps.Telemetry == nil {
		deps.Telemetry = NopTelemetry{}
	}
	if variant.Component == "" {
		variant.Component = "Checkout"
	}

	o := &Orchestrator{
		variant:  variant,
		deps:     deps,
		parent:   context.Background(),
		clock:    time.Now,
		newID:    NewAttemptID,
		redirect: LocaleRedirect,
		enabled:  true,
		phase:    PhaseIdle,
		changed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Variant returns the widget variant
func (o *Orchestrator) Variant() Variant {
	return o.variant
}

// Update supplies the current buyer context. A new attempt starts when the
// identity-relevant fields differ from the previous buyer; any attempt in
// flight is cancelled first.
func (o *Orchestrator) Update(buyer BuyerContext) {
	o.mu.Lock()
	defer o.unlock()

	if o.closed {
		return
	}
	if o.hasBuyer && o.buyer.SameIdentity(buyer) {
		o.buyer = buyer
		return
	}
	o.buyer = buyer
	o.hasBuyer = true
	if o.enabled {
		o.restartLocked()
	}
}

// SetEnabled turns orchestration on or off. Disabling tears down the current
// attempt and returns to Idle.
func (o *Orchestrator) SetEnabled(enabled bool) {
	o.mu.Lock()
	defer o.unlock()

	if o.closed || o.enabled == enabled {
		return
	}
	o.enabled = enabled
	if !enabled {
		o.stopLocked()
		o.clearResultLocked()
		o.setPhaseLocked(PhaseIdle)
		return
	}
	if o.hasBuyer {
		o.restartLocked()
	}
}

// Retry starts a new attempt for the current buyer after a failure
func (o *Orchestrator) Retry() bool {
	o.mu.Lock()
	defer o.unlock()

	if o.closed || !o.enabled || !o.hasBuyer || o.phase != PhaseError {
		return false
	}
	o.restartLocked()
	return true
}

// Close tears the orchestrator down: the in-flight request is cancelled,
// visibility tracking is detached and a mounted form is destroyed. Nothing
// is issued to any collaborator afterwards.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.unlock()

	if o.closed {
		return
	}
	o.closed = true
	o.stopLocked()
	o.setPhaseLocked(PhaseUnmounted)
}

// Snapshot returns the current state
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.unlock()
	return o.snapshotLocked()
}

// Phase returns the current phase
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.unlock()
	return o.phase
}

// Wait blocks until the orchestrator reaches one of phases or ctx ends
func (o *Orchestrator) Wait(ctx context.Context, phases ...Phase) (Snapshot, error) {
	for {
		o.mu.Lock()
		for _, p := range phases {
			if o.phase == p {
				snap := o.snapshotLocked()
				o.unlock()
				return snap, nil
			}
		}
		changed := o.changed
		o.unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return o.Snapshot(), ctx.Err()
		}
	}
}

// ============================================================================
// State transitions (o.mu held)
// ============================================================================

// unlock releases mu and delivers queued transitions to the phase hooks
// outside the lock, so hooks may call back into the orchestrator. One caller
// delivers at a time; transitions queued meanwhile are picked up by it, in order.
func (o *Orchestrator) unlock() {
	if o.delivering || len(o.transitions) == 0 {
		o.mu.Unlock()
		return
	}
	o.delivering = true
	for len(o.transitions) > 0 {
		batch := o.transitions
		o.transitions = nil
		o.mu.Unlock()
		for _, c := range batch {
			for _, hook := range o.onPhaseChangeHooks {
				hook(c)
			}
		}
		o.mu.Lock()
	}
	o.delivering = false
	o.mu.Unlock()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:       o.phase,
		Generation:  o.generation,
		Token:       o.token,
		CustomerID:  o.customerID,
		RedirectURL: o.redirectTo,
		Message:     o.message,
		Err:         o.err,
	}
	if o.current != nil {
		snap.AttemptID = o.current.id
	}
	return snap
}

func (o *Orchestrator) setPhaseLocked(to Phase) {
	from := o.phase
	if from == to {
		return
	}
	o.phase = to
	close(o.changed)
	o.changed = make(chan struct{})

	if len(o.onPhaseChangeHooks) > 0 {
		o.transitions = append(o.transitions, PhaseChangeContext{
			From:       from,
			To:         to,
			Generation: o.generation,
			Timestamp:  o.clock(),
		})
	}
}

func (o *Orchestrator) clearResultLocked() {
	o.token = ""
	o.customerID = ""
	o.redirectTo = ""
	o.message = ""
	o.err = nil
}

// stopLocked invalidates the current generation and releases everything the
// current attempt holds.
func (o *Orchestrator) stopLocked() *attempt {
	o.generation++
	a := o.current
	o.current = nil
	if a == nil {
		return nil
	}
	a.cancel()
	a.emitMu.Lock()
	a.released = true
	a.emitMu.Unlock()
	if a.stopTracking != nil {
		a.stopTracking()
		a.stopTracking = nil
	}
	if a.checkout != nil {
		a.checkout.Destroy()
		a.checkout = nil
	}
	return a
}

func (o *Orchestrator) restartLocked() {
	prev := o.stopLocked()
	o.clearResultLocked()

	ctx, cancel := context.WithCancel(o.parent)
	a := &attempt{
		gen:     o.generation,
		id:      o.newID(),
		buyer:   o.buyer,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: o.clock(),
	}
	o.current = a
	o.setPhaseLocked(PhaseRequestingSession)

	go o.run(a, prev)
}

// currentLocked reports whether a still owns the orchestrator
func (o *Orchestrator) currentLocked(a *attempt) bool {
	return !o.closed && o.current == a && a.gen == o.generation
}

// advance moves a to phase if it is still current
func (o *Orchestrator) advance(a *attempt, to Phase) bool {
	o.mu.Lock()
	defer o.unlock()
	if !o.currentLocked(a) {
		return false
	}
	o.setPhaseLocked(to)
	return true
}

// ============================================================================
// Attempt execution
// ============================================================================

func (o *Orchestrator) attemptContext(a *attempt) AttemptContext {
	return AttemptContext{
		Ctx:        a.ctx,
		Variant:    o.variant,
		Buyer:      a.buyer,
		Generation: a.gen,
		AttemptID:  a.id,
		Started:    a.started,
	}
}

func (o *Orchestrator) run(a *attempt, prev *attempt) {
	defer close(a.done)

	// The superseded attempt was cancelled; wait for it to unwind so that at
	// most one session request is ever outstanding. a.done must not close
	// before prev.done either, since a successor only waits on a.
	if prev != nil {
		defer func() { <-prev.done }()
		select {
		case <-prev.done:
		case <-a.ctx.Done():
			return
		}
	}
	if a.ctx.Err() != nil {
		return
	}

	actx := o.attemptContext(a)
	for _, hook := range o.beforeSessionHooks {
		result, err := hook(actx)
		if err != nil {
			o.fail(a, WrapError(ErrKindSessionCreationFailed, "before-session hook failed", err), actionFetchClientSecret)
			return
		}
		if result != nil && result.Abort {
			o.fail(a, NewCheckoutError(ErrKindSessionCreationFailed, fmt.Sprintf("session aborted: %s", result.Reason), nil), actionFetchClientSecret)
			return
		}
	}

	result, err := o.deps.Sessions.RequestSession(a.ctx, a.buyer, o.variant)
	if err != nil {
		if IsCancelled(err) || a.ctx.Err() != nil {
			return
		}
		o.fail(a, asKind(err, ErrKindNetwork, "session request failed"), actionFetchClientSecret)
		return
	}
	if result.Token == "" {
		o.fail(a, NewCheckoutError(ErrKindSessionCreationFailed, "client secret not found in response", nil), actionFetchClientSecret)
		return
	}

	o.mu.Lock()
	if !o.currentLocked(a) {
		o.unlock()
		return
	}
	o.token = result.Token
	o.customerID = result.CustomerID
	o.setPhaseLocked(PhaseSessionReady)
	o.unlock()

	o.deps.Telemetry.AddBreadcrumb(a.ctx, Breadcrumb{
		Category: "checkout",
		Message:  "checkout session created",
		Level:    LevelInfo,
		Data: map[string]interface{}{
			"attempt_id":   a.id,
			"funnel_type":  string(o.variant.Kind),
			"has_customer": result.CustomerID != "",
		},
	})

	if !o.advance(a, PhaseMounting) {
		return
	}

	o.mount(a, result)
}

func (o *Orchestrator) mount(a *attempt, session SessionResult) {
	provider := o.deps.Runtime
	if provider == nil {
		if def := DefaultRuntimeLoader(); def != nil {
			provider = def
		}
	}
	if provider == nil {
		o.fail(a, NewCheckoutError(ErrKindRuntimeLoad, "no payment runtime configured", nil), actionMountCheckout)
		return
	}

	rt, err := provider.Load(a.ctx)
	if err != nil {
		if IsCancelled(err) || a.ctx.Err() != nil {
			return
		}
		o.fail(a, asKind(err, ErrKindRuntimeLoad, "payment runtime unavailable"), actionMountCheckout)
		return
	}
	if rt == nil {
		o.fail(a, NewCheckoutError(ErrKindRuntimeLoad, "payment runtime not initialized", nil), actionMountCheckout)
		return
	}

	ec, err := rt.InitEmbeddedCheckout(a.ctx, session.Token)
	if err != nil {
		if IsCancelled(err) || a.ctx.Err() != nil {
			return
		}
		o.fail(a, asKind(err, ErrKindMount, "failed to initialize embedded checkout"), actionMountCheckout)
		return
	}

	o.mu.Lock()
	if !o.currentLocked(a) {
		o.unlock()
		// The handle belongs to this attempt even after supersession or Close
		if ec != nil {
			ec.Destroy()
		}
		return
	}
	if ec == nil {
		o.unlock()
		o.fail(a, NewCheckoutError(ErrKindMount, "runtime returned no checkout handle", nil), actionMountCheckout)
		return
	}
	if err := ec.Mount(o.deps.Anchor); err != nil {
		ec.Destroy()
		o.unlock()
		o.fail(a, asKind(err, ErrKindMount, "failed to mount embedded checkout"), actionMountCheckout)
		return
	}
	a.checkout = ec
	o.setPhaseLocked(PhaseMounted)
	o.unlock()

	o.deps.Telemetry.AddBreadcrumb(a.ctx, Breadcrumb{
		Category: "checkout",
		Message:  "checkout mounted successfully",
		Level:    LevelInfo,
		Data:     map[string]interface{}{"attempt_id": a.id},
	})

	o.track(a)

	mounted := MountResultContext{
		AttemptContext: o.attemptContext(a),
		Token:          session.Token,
		CustomerID:     session.CustomerID,
		Duration:       o.clock().Sub(a.started),
	}
	for _, hook := range o.afterMountHooks {
		hook(mounted)
	}

	select {
	case <-ec.Done():
		o.complete(a, session)
	case <-a.ctx.Done():
	}
}

// track starts visibility tracking for a mounted attempt
func (o *Orchestrator) track(a *attempt) {
	o.mu.Lock()
	current := o.currentLocked(a)
	o.unlock()
	if !current {
		return
	}

	tracker := NewVisibilityTracker(o.deps.Observer, o.deps.Scheduler)
	stop := tracker.Observe(o.deps.Anchor, func() {
		o.emitVisible(a)
	})

	o.mu.Lock()
	if o.currentLocked(a) {
		a.stopTracking = stop
		o.unlock()
		return
	}
	o.unlock()
	stop()
}

// emitVisible pushes the variant's analytics event for a mounted attempt
func (o *Orchestrator) emitVisible(a *attempt) {
	o.mu.Lock()
	if !o.currentLocked(a) || o.phase != PhaseMounted {
		o.unlock()
		return
	}
	o.unlock()

	event := VisibilityEvent(o.variant, a.buyer, o.pagePath, a.id)
	a.emitMu.Lock()
	if a.released {
		a.emitMu.Unlock()
		return
	}
	o.deps.Analytics.Push(event)
	a.emitMu.Unlock()
	o.deps.Telemetry.AddBreadcrumb(a.ctx, Breadcrumb{
		Category: "analytics",
		Message:  fmt.Sprintf("%s event tracked", event.Name()),
		Level:    LevelInfo,
		Data:     map[string]interface{}{"attempt_id": a.id},
	})
}

func (o *Orchestrator) complete(a *attempt, session SessionResult) {
	var redirect string
	if o.variant.SuccessPath != "" && o.redirect != nil {
		redirect = o.redirect(a.buyer.Locale, o.variant.SuccessPath)
	}

	o.mu.Lock()
	if !o.currentLocked(a) {
		o.unlock()
		return
	}
	o.redirectTo = redirect
	o.setPhaseLocked(PhaseCompleted)
	o.unlock()

	o.deps.Telemetry.AddBreadcrumb(a.ctx, Breadcrumb{
		Category: "checkout",
		Message:  "payment completed successfully",
		Level:    LevelInfo,
		Data: map[string]interface{}{
			"attempt_id":  a.id,
			"customer_id": session.CustomerID,
		},
	})

	completed := CompletionContext{
		AttemptContext: o.attemptContext(a),
		CustomerID:     session.CustomerID,
		RedirectURL:    redirect,
		Duration:       o.clock().Sub(a.started),
	}
	for _, hook := range o.onCompleteHooks {
		hook(completed)
	}
}

const (
	actionFetchClientSecret = "fetch_client_secret"
	actionMountCheckout     = "mount_checkout"
)

// fail moves a current attempt to Error and reports it once
func (o *Orchestrator) fail(a *attempt, err error, action string) {
	message := UserMessage(err)

	o.mu.Lock()
	if !o.currentLocked(a) {
		o.unlock()
		return
	}
	o.message = message
	o.err = err
	o.setPhaseLocked(PhaseError)
	o.unlock()

	o.deps.Telemetry.CaptureException(a.ctx, err, ExceptionReport{
		Tags: map[string]string{
			"component":   o.variant.Component,
			"action":      action,
			"funnel_type": string(o.variant.Kind),
			"attempt_id":  a.id,
		},
		Extra: map[string]interface{}{
			"email":      a.buyer.Email,
			"locale":     a.buyer.Locale,
			"has_fbc":    a.buyer.ClickID != "",
			"has_fbp":    a.buyer.BrowserID != "",
			"generation": a.gen,
			"details":    errorDetails(err),
		},
	})

	failed := FailureContext{
		AttemptContext: o.attemptContext(a),
		Error:          err,
		Message:        message,
		Duration:       o.clock().Sub(a.started),
	}
	for _, hook := range o.onFailureHooks {
		hook(failed)
	}
}

// asKind keeps checkout errors as they are and wraps anything else
func asKind(err error, kind ErrorKind, message string) error {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return err
	}
	return WrapError(kind, message, err)
}

func errorDetails(err error) map[string]interface{} {
	var ce *CheckoutError
	if errors.As(err, &ce) && ce.Details != nil {
		return ce.Details
	}
	return nil
}
