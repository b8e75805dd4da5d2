package checkout

import (
	"sync"
	"time"
)

const (
	// VisibilityThreshold is the visible fraction at which the form counts as seen
	VisibilityThreshold = 0.5
	// VisibilityRootMargin grows the viewport before measuring visibility
	VisibilityRootMargin = 50
)

// TimerScheduler defers work with a zero-delay timer. It is the fallback
// when the host offers no idle-scheduling facility.
type TimerScheduler struct{}

func (TimerScheduler) RequestIdle(fn func()) {
	time.AfterFunc(0, fn)
}

// VisibilityTracker fires a callback once, the first time an anchor
// becomes sufficiently visible. One tracker serves one orchestration attempt.
type VisibilityTracker struct {
	observer  VisibilityObserver
	scheduler IdleScheduler

	mu    sync.Mutex
	fired bool
}

// NewVisibilityTracker creates a tracker. A nil scheduler falls back to TimerScheduler.
func NewVisibilityTracker(observer VisibilityObserver, scheduler IdleScheduler) *VisibilityTracker {
	if scheduler == nil {
		scheduler = TimerScheduler{}
	}
	return &VisibilityTracker{
		observer:  observer,
		scheduler: scheduler,
	}
}

// Fired reports whether the callback has run
func (t *VisibilityTracker) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Observe watches anchor and invokes onCrossed at an idle point after its
// visible fraction first reaches VisibilityThreshold. The observer is
// detached once the callback runs. Calling stop before that prevents the
// callback entirely.
func (t *VisibilityTracker) Observe(anchor Anchor, onCrossed func()) (stop func()) {
	if t.observer == nil {
		return func() {}
	}

	var (
		mu        sync.Mutex
		stopped   bool
		scheduled bool
		detach    func()
		detached  bool
	)

	release := func() {
		mu.Lock()
		d := detach
		if d == nil {
			// Observe has not returned yet; detach once it does
			detached = true
		}
		detach = nil
		mu.Unlock()
		if d != nil {
			d()
		}
	}

	fire := func() {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		stopped = true
		mu.Unlock()

		t.mu.Lock()
		if t.fired {
			t.mu.Unlock()
			release()
			return
		}
		t.fired = true
		t.mu.Unlock()

		release()
		onCrossed()
	}

	d := t.observer.Observe(anchor, ObserveOptions{
		Threshold:  VisibilityThreshold,
		RootMargin: VisibilityRootMargin,
	}, func(entry VisibilityEntry) {
		if !entry.Intersecting || entry.Ratio < VisibilityThreshold {
			return
		}
		mu.Lock()
		if stopped || scheduled {
			mu.Unlock()
			return
		}
		scheduled = true
		mu.Unlock()
		t.scheduler.RequestIdle(fire)
	})

	mu.Lock()
	if detached {
		mu.Unlock()
		if d != nil {
			d()
		}
	} else {
		detach = d
		mu.Unlock()
	}

	return func() {
		mu.Lock()
		stopped = true
		mu.Unlock()
		release()
	}
}
