package runtime

import (
	"sync"

	checkout "github.com/aprskavec/stripe-framer"
)

// Viewport is an in-process visibility observer. Scroll reports a new
// visible fraction for every observed anchor.
type Viewport struct {
	mu        sync.Mutex
	observers map[int]observation
	nextID    int
}

type observation struct {
	anchor string
	opts   checkout.ObserveOptions
	fn     func(checkout.VisibilityEntry)
}

// NewViewport creates an empty viewport
func NewViewport() *Viewport {
	return &Viewport{observers: make(map[int]observation)}
}

func (v *Viewport) Observe(anchor checkout.Anchor, opts checkout.ObserveOptions, fn func(checkout.VisibilityEntry)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextID
	v.nextID++
	v.observers[id] = observation{anchor: anchor.AnchorID(), opts: opts, fn: fn}
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.observers, id)
	}
}

// Scroll delivers a visibility ratio to the observers of anchor
func (v *Viewport) Scroll(anchor string, ratio float64) {
	v.mu.Lock()
	var fns []func(checkout.VisibilityEntry)
	for _, o := range v.observers {
		if o.anchor == anchor {
			fns = append(fns, o.fn)
		}
	}
	v.mu.Unlock()

	for _, fn := range fns {
		fn(checkout.VisibilityEntry{Intersecting: ratio > 0, Ratio: ratio})
	}
}

// Observers returns how many observations are attached
func (v *Viewport) Observers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.observers)
}

// IdleQueue is an IdleScheduler that runs work when Drain is called
type IdleQueue struct {
	mu    sync.Mutex
	queue []func()
}

func (q *IdleQueue) RequestIdle(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, fn)
}

// Drain runs every queued callback and returns how many ran
func (q *IdleQueue) Drain() int {
	q.mu.Lock()
	queue := q.queue
	q.queue = nil
	q.mu.Unlock()
	for _, fn := range queue {
		fn()
	}
	return len(queue)
}
