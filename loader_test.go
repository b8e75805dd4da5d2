package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// runtimeHost simulates the process the runtime script is injected into
type runtimeHost struct {
	mu      sync.Mutex
	runtime PaymentRuntime
}

func (h *runtimeHost) lookup(string) PaymentRuntime {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runtime
}

func (h *runtimeHost) install(rt PaymentRuntime) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runtime = rt
}

func TestRuntimeLoaderSharesInFlightLoad(t *testing.T) {
	host := &runtimeHost{}
	rt := &fakeRuntime{}
	gate := make(chan struct{})

	loader := NewRuntimeLoader(func(ctx context.Context) error {
		<-gate
		host.install(rt)
		return nil
	}, host.lookup)

	const callers = 10
	var wg sync.WaitGroup
	results := make(chan PaymentRuntime, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := loader.Load(context.Background())
			if err != nil {
				errs <- err
				return
			}
			results <- got
		}()
	}

	eventually(t, func() bool { return loader.Status() == LoadInFlight }, "load in flight")
	close(gate)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("Unexpected error: %v", err)
	}
	count := 0
	for got := range results {
		if got != rt {
			t.Fatal("Expected every caller to receive the same runtime")
		}
		count++
	}
	if count != callers {
		t.Fatalf("Expected %d results, got %d", callers, count)
	}
	if loader.Bootstraps() != 1 {
		t.Fatalf("Expected a single bootstrap, got %d", loader.Bootstraps())
	}
	if loader.Status() != LoadReady {
		t.Fatalf("Expected ready, got %d", loader.Status())
	}
}

func TestRuntimeLoaderUsesPresentRuntime(t *testing.T) {
	rt := &fakeRuntime{}
	bootstrapped := false
	loader := NewRuntimeLoader(func(ctx context.Context) error {
		bootstrapped = true
		return nil
	}, func(string) PaymentRuntime { return rt })

	got, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != rt {
		t.Fatal("Expected the present runtime")
	}
	if bootstrapped || loader.Bootstraps() != 0 {
		t.Fatal("Expected no bootstrap when the runtime is already present")
	}
}

func TestRuntimeLoaderFailureIsTerminal(t *testing.T) {
	telemetry := &recordingTelemetry{}
	loader := NewRuntimeLoader(func(ctx context.Context) error {
		return errors.New("script error")
	}, func(string) PaymentRuntime { return nil }, WithLoaderTelemetry(telemetry))

	_, err := loader.Load(context.Background())
	if KindOf(err) != ErrKindRuntimeLoad {
		t.Fatalf("Expected runtime_load_error, got %v", err)
	}
	if UserMessage(err) != MessageInitFailed {
		t.Fatalf("Expected %q, got %q", MessageInitFailed, UserMessage(err))
	}

	// Later callers observe the same failure without a new bootstrap
	_, again := loader.Load(context.Background())
	if again != err {
		t.Fatalf("Expected the memoized failure, got %v", again)
	}
	if loader.Bootstraps() != 1 {
		t.Fatalf("Expected one bootstrap, got %d", loader.Bootstraps())
	}

	eventually(t, func() bool {
		errs, _ := telemetry.Exceptions()
		return len(errs) == 1
	}, "failure reported")
	_, reports := telemetry.Exceptions()
	if reports[0].Tags["action"] != "load_runtime" {
		t.Fatalf("Unexpected tags: %v", reports[0].Tags)
	}
}

func TestRuntimeLoaderMissingRuntimeAfterLoad(t *testing.T) {
	loader := NewRuntimeLoader(func(ctx context.Context) error { return nil }, func(string) PaymentRuntime { return nil })

	_, err := loader.Load(context.Background())
	var ce *CheckoutError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected CheckoutError, got %v", err)
	}
	if ce.Kind != ErrKindRuntimeLoad || ce.Message != "payment runtime not present after load" {
		t.Fatalf("Unexpected error: %v", ce)
	}
	if loader.Status() != LoadFailed {
		t.Fatalf("Expected failed status, got %d", loader.Status())
	}
}

func TestRuntimeLoaderWaiterCancellation(t *testing.T) {
	host := &runtimeHost{}
	rt := &fakeRuntime{}
	gate := make(chan struct{})
	loader := NewRuntimeLoader(func(ctx context.Context) error {
		<-gate
		host.install(rt)
		return nil
	}, host.lookup)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := loader.Load(ctx)
		errCh <- err
	}()

	eventually(t, func() bool { return loader.Status() == LoadInFlight }, "load in flight")
	cancel()

	select {
	case err := <-errCh:
		if !IsCancelled(err) {
			t.Fatalf("Expected cancellation, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected the waiter to return on cancellation")
	}

	// The shared load keeps going for other callers
	close(gate)
	got, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != rt {
		t.Fatal("Expected the loaded runtime")
	}
	if loader.Bootstraps() != 1 {
		t.Fatalf("Expected one bootstrap, got %d", loader.Bootstraps())
	}
}

func TestRuntimeLoaderReset(t *testing.T) {
	attempts := 0
	rt := &fakeRuntime{}
	host := &runtimeHost{}
	loader := NewRuntimeLoader(func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return errors.New("blocked by extension")
		}
		host.install(rt)
		return nil
	}, host.lookup)

	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatal("Expected first load to fail")
	}

	loader.Reset()
	if loader.Status() != LoadNotStarted {
		t.Fatalf("Expected not started after reset, got %d", loader.Status())
	}

	got, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != rt {
		t.Fatal("Expected the runtime after a fresh load")
	}
	if loader.Bootstraps() != 2 {
		t.Fatalf("Expected two bootstraps, got %d", loader.Bootstraps())
	}
}

func TestRuntimeLoaderWithoutBootstrap(t *testing.T) {
	loader := NewRuntimeLoader(nil, nil)
	if _, err := loader.Load(context.Background()); KindOf(err) != ErrKindRuntimeLoad {
		t.Fatalf("Expected runtime_load_error, got %v", err)
	}
}

func TestRuntimeLoaderPublishableKey(t *testing.T) {
	host := &runtimeHost{}
	rt := &fakeRuntime{}
	var keys []string
	loader := NewRuntimeLoader(func(ctx context.Context) error {
		host.install(rt)
		return nil
	}, func(key string) PaymentRuntime {
		keys = append(keys, key)
		return host.lookup(key)
	}, WithPublishableKey("pk_test_123"))

	if _, err := loader.Load(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Expected a lookup before and after the bootstrap, got %d", len(keys))
	}
	for _, key := range keys {
		if key != "pk_test_123" {
			t.Fatalf("Expected the runtime to be constructed with pk_test_123, got %q", key)
		}
	}
}
