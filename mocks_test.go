package checkout

import (
	"context"
	"errors"
	"sync"
)

// fakeSessions is a controllable SessionRequester
type fakeSessions struct {
	mu          sync.Mutex
	calls       []BuyerContext
	inFlight    int
	maxInFlight int
	cancelled   int

	// respond decides the outcome; nil blocks until ctx is cancelled
	respond func(ctx context.Context, buyer BuyerContext) (SessionResult, error)
	started chan BuyerContext
}

func newFakeSessions(respond func(ctx context.Context, buyer BuyerContext) (SessionResult, error)) *fakeSessions {
	return &fakeSessions{respond: respond, started: make(chan BuyerContext, 16)}
}

func (f *fakeSessions) RequestSession(ctx context.Context, buyer BuyerContext, variant Variant) (SessionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, buyer)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	f.started <- buyer

	if f.respond == nil {
		<-ctx.Done()
		f.mu.Lock()
		f.cancelled++
		f.mu.Unlock()
		return SessionResult{}, ErrCancelled
	}
	return f.respond(ctx, buyer)
}

func (f *fakeSessions) Calls() []BuyerContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]BuyerContext(nil), f.calls...)
}

func (f *fakeSessions) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

// fakeCheckout is an EmbeddedCheckout that records calls
type fakeCheckout struct {
	mu        sync.Mutex
	token     SessionToken
	mounts    []string
	destroyed int
	mountErr  error
	done      chan struct{}
}

func (c *fakeCheckout) Mount(anchor Anchor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mountErr != nil {
		return c.mountErr
	}
	c.mounts = append(c.mounts, anchor.AnchorID())
	return nil
}

func (c *fakeCheckout) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed++
}

func (c *fakeCheckout) Done() <-chan struct{} {
	return c.done
}

func (c *fakeCheckout) Destroyed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

func (c *fakeCheckout) Mounts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.mounts...)
}

// fakeRuntime is a PaymentRuntime that records every call
type fakeRuntime struct {
	mu        sync.Mutex
	inits     []SessionToken
	checkouts []*fakeCheckout
	initErr   error
	mountErr  error
}

func (r *fakeRuntime) InitEmbeddedCheckout(ctx context.Context, token SessionToken) (EmbeddedCheckout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inits = append(r.inits, token)
	if r.initErr != nil {
		return nil, r.initErr
	}
	c := &fakeCheckout{token: token, mountErr: r.mountErr, done: make(chan struct{})}
	r.checkouts = append(r.checkouts, c)
	return c, nil
}

func (r *fakeRuntime) Inits() []SessionToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SessionToken(nil), r.inits...)
}

func (r *fakeRuntime) Checkouts() []*fakeCheckout {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fakeCheckout(nil), r.checkouts...)
}

// staticProvider always returns the same runtime or error
type staticProvider struct {
	runtime PaymentRuntime
	err     error
	loads   int
	mu      sync.Mutex
}

func (p *staticProvider) Load(ctx context.Context) (PaymentRuntime, error) {
	p.mu.Lock()
	p.loads++
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.runtime, nil
}

// fakeObserver lets tests drive visibility entries by hand
type fakeObserver struct {
	mu        sync.Mutex
	callbacks map[int]func(VisibilityEntry)
	next      int
	options   []ObserveOptions
	detaches  int
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{callbacks: make(map[int]func(VisibilityEntry))}
}

func (o *fakeObserver) Observe(anchor Anchor, opts ObserveOptions, fn func(VisibilityEntry)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.next
	o.next++
	o.callbacks[id] = fn
	o.options = append(o.options, opts)
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if _, ok := o.callbacks[id]; ok {
			delete(o.callbacks, id)
			o.detaches++
		}
	}
}

// Emit delivers an entry to every attached callback
func (o *fakeObserver) Emit(entry VisibilityEntry) {
	o.mu.Lock()
	fns := make([]func(VisibilityEntry), 0, len(o.callbacks))
	for _, fn := range o.callbacks {
		fns = append(fns, fn)
	}
	o.mu.Unlock()
	for _, fn := range fns {
		fn(entry)
	}
}

func (o *fakeObserver) Attached() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.callbacks)
}

// manualScheduler queues idle work until Flush
type manualScheduler struct {
	mu    sync.Mutex
	queue []func()
}

func (s *manualScheduler) RequestIdle(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, fn)
}

func (s *manualScheduler) Flush() int {
	s.mu.Lock()
	queue := s.queue
	s.queue = nil
	s.mu.Unlock()
	for _, fn := range queue {
		fn()
	}
	return len(queue)
}

// recordingAnalytics collects pushed events
type recordingAnalytics struct {
	mu     sync.Mutex
	events []AnalyticsEvent
}

func (r *recordingAnalytics) Push(event AnalyticsEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingAnalytics) Events() []AnalyticsEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AnalyticsEvent(nil), r.events...)
}

// recordingTelemetry collects exceptions and breadcrumbs
type recordingTelemetry struct {
	mu          sync.Mutex
	exceptions  []error
	reports     []ExceptionReport
	breadcrumbs []Breadcrumb
}

func (r *recordingTelemetry) CaptureException(ctx context.Context, err error, report ExceptionReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exceptions = append(r.exceptions, err)
	r.reports = append(r.reports, report)
}

func (r *recordingTelemetry) AddBreadcrumb(ctx context.Context, crumb Breadcrumb) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breadcrumbs = append(r.breadcrumbs, crumb)
}

func (r *recordingTelemetry) Exceptions() ([]error, []ExceptionReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.exceptions...), append([]ExceptionReport(nil), r.reports...)
}

var errBoom = errors.New("boom")
