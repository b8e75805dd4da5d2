package checkout

import (
	"context"
	"sync"
)

// RuntimeProvider hands out the shared payment runtime
type RuntimeProvider interface {
	Load(ctx context.Context) (PaymentRuntime, error)
}

// LoadStatus represents the state of the runtime singleton
type LoadStatus int

const (
	// LoadNotStarted means no caller asked for the runtime yet.
	LoadNotStarted LoadStatus = iota
	// LoadInFlight means the bootstrap is running and callers are waiting.
	LoadInFlight
	// LoadReady means the runtime is available.
	LoadReady
	// LoadFailed means the bootstrap failed; the failure is terminal until Reset.
	LoadFailed
)

// RuntimeLoader lazily loads the payment runtime once per process and
// memoizes the outcome. Concurrent callers share the same in-flight load;
// a failed load is not retried until Reset is called (a fresh page load).
type RuntimeLoader struct {
	mu        sync.Mutex
	bootstrap RuntimeBootstrap
	lookup    RuntimeLookup
	key       string
	telemetry TelemetrySink

	status  LoadStatus
	runtime PaymentRuntime
	err     error
	done    chan struct{}

	bootstraps int
}

// LoaderOption configures a RuntimeLoader
type LoaderOption func(*RuntimeLoader)

// WithLoaderTelemetry reports load success and failure to a telemetry sink
func WithLoaderTelemetry(sink TelemetrySink) LoaderOption {
	return func(l *RuntimeLoader) {
		l.telemetry = sink
	}
}

// WithPublishableKey sets the key the runtime is constructed with
func WithPublishableKey(key string) LoaderOption {
	return func(l *RuntimeLoader) {
		l.key = key
	}
}

// NewRuntimeLoader creates a loader. lookup constructs the runtime when its
// script is already present; bootstrap performs the one-time load.
func NewRuntimeLoader(bootstrap RuntimeBootstrap, lookup RuntimeLookup, opts ...LoaderOption) *RuntimeLoader {
	l := &RuntimeLoader{
		bootstrap: bootstrap,
		lookup:    lookup,
		telemetry: NopTelemetry{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the shared runtime, starting the bootstrap on first use.
// Cancelling ctx abandons the wait but never the shared load itself.
func (l *RuntimeLoader) Load(ctx context.Context) (PaymentRuntime, error) {
	l.mu.Lock()
	switch l.status {
	case LoadReady:
		rt := l.runtime
		l.mu.Unlock()
		return rt, nil
	case LoadFailed:
		err := l.err
		l.mu.Unlock()
		return nil, err
	case LoadNotStarted:
		if l.lookup != nil {
			if rt := l.lookup(l.key); rt != nil {
				l.runtime = rt
				l.status = LoadReady
				l.mu.Unlock()
				return rt, nil
			}
		}
		l.status = LoadInFlight
		l.done = make(chan struct{})
		l.bootstraps++
		go l.run(context.WithoutCancel(ctx), l.done)
	}
	done := l.done
	l.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ErrCancelled
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status == LoadReady {
		return l.runtime, nil
	}
	if l.err != nil {
		return nil, l.err
	}
	// Reset raced with the load; the outcome belongs to the previous page.
	return nil, NewCheckoutError(ErrKindRuntimeLoad, "payment runtime load was reset", nil)
}

// run performs the bootstrap and publishes the outcome to every waiter
func (l *RuntimeLoader) run(ctx context.Context, done chan struct{}) {
	var (
		rt  PaymentRuntime
		err error
	)
	if l.bootstrap == nil {
		err = NewCheckoutError(ErrKindRuntimeLoad, "no payment runtime bootstrap configured", nil)
	} else if bootErr := l.bootstrap(ctx); bootErr != nil {
		err = WrapError(ErrKindRuntimeLoad, "failed to load payment runtime script", bootErr)
	} else if l.lookup != nil {
		if rt = l.lookup(l.key); rt == nil {
			err = NewCheckoutError(ErrKindRuntimeLoad, "payment runtime not present after load", nil)
		}
	} else {
		err = NewCheckoutError(ErrKindRuntimeLoad, "payment runtime not present after load", nil)
	}

	l.mu.Lock()
	// A Reset during the load detaches this run from the loader
	if l.done == done {
		if err != nil {
			l.status = LoadFailed
			l.err = err
		} else {
			l.status = LoadReady
			l.runtime = rt
		}
	}
	close(done)
	l.mu.Unlock()

	if err != nil {
		l.telemetry.CaptureException(ctx, err, ExceptionReport{
			Tags: map[string]string{"component": "RuntimeLoader", "action": "load_runtime"},
		})
		return
	}
	l.telemetry.AddBreadcrumb(ctx, Breadcrumb{
		Category: "runtime",
		Message:  "payment runtime loaded successfully",
		Level:    LevelInfo,
	})
}

// Status returns the current singleton state
func (l *RuntimeLoader) Status() LoadStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Bootstraps returns how many times the bootstrap has been started
func (l *RuntimeLoader) Bootstraps() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bootstraps
}

// Reset forgets the memoized outcome, as a fresh page load would.
func (l *RuntimeLoader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = LoadNotStarted
	l.runtime = nil
	l.err = nil
	l.done = nil
}

// ============================================================================
// Process-wide default
// ============================================================================

var (
	defaultLoaderMu sync.RWMutex
	defaultLoader   *RuntimeLoader
)

// SetDefaultRuntimeLoader installs the process-wide loader used by
// orchestrators that were not given one explicitly.
func SetDefaultRuntimeLoader(l *RuntimeLoader) {
	defaultLoaderMu.Lock()
	defer defaultLoaderMu.Unlock()
	defaultLoader = l
}

// DefaultRuntimeLoader returns the process-wide loader, or nil
func DefaultRuntimeLoader() *RuntimeLoader {
	defaultLoaderMu.RLock()
	defer defaultLoaderMu.RUnlock()
	return defaultLoader
}
