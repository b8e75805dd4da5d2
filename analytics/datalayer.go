// Package analytics holds the process-wide analytics queue that checkout
// widgets append events to.
package analytics

import (
	"sync"

	checkout "github.com/aprskavec/stripe-framer"
)

// DataLayer is an append-only event queue. Pushes never block: subscribers
// that fall behind miss events rather than stall the caller.
type DataLayer struct {
	mu          sync.RWMutex
	events      []checkout.AnalyticsEvent
	subscribers map[int]chan checkout.AnalyticsEvent
	nextID      int
}

// NewDataLayer creates an empty queue
func NewDataLayer() *DataLayer {
	return &DataLayer{subscribers: make(map[int]chan checkout.AnalyticsEvent)}
}

var _ checkout.AnalyticsSink = (*DataLayer)(nil)

// Push appends an event
func (d *DataLayer) Push(event checkout.AnalyticsEvent) {
	if event == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.events = append(d.events, event)
	for _, ch := range d.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Events returns a copy of every event pushed so far
func (d *DataLayer) Events() []checkout.AnalyticsEvent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]checkout.AnalyticsEvent(nil), d.events...)
}

// Named returns the events with the given tag
func (d *DataLayer) Named(name string) []checkout.AnalyticsEvent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []checkout.AnalyticsEvent
	for _, e := range d.events {
		if e.Name() == name {
			out = append(out, e)
		}
	}
	return out
}

// Subscribe delivers events pushed after the call on a channel with the
// given buffer. cancel stops delivery and closes the channel.
func (d *DataLayer) Subscribe(buffer int) (events <-chan checkout.AnalyticsEvent, cancel func()) {
	ch := make(chan checkout.AnalyticsEvent, buffer)

	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.subscribers[id] = ch
	d.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, id)
			d.mu.Unlock()
			close(ch)
		})
	}
}

var (
	defaultMu    sync.RWMutex
	defaultLayer = NewDataLayer()
)

// Default returns the process-wide queue
func Default() *DataLayer {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLayer
}

// SetDefault replaces the process-wide queue
func SetDefault(d *DataLayer) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLayer = d
}
