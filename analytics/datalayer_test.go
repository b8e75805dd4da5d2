package analytics

import (
	"sync"
	"testing"

	checkout "github.com/aprskavec/stripe-framer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataLayerPush(t *testing.T) {
	d := NewDataLayer()
	d.Push(checkout.AnalyticsEvent{"event": checkout.EventBeginCheckout})
	d.Push(nil)
	d.Push(checkout.AnalyticsEvent{"event": checkout.EventGenerateLead})

	events := d.Events()
	require.Len(t, events, 2)
	assert.Equal(t, checkout.EventBeginCheckout, events[0].Name())
	assert.Len(t, d.Named(checkout.EventGenerateLead), 1)
	assert.Empty(t, d.Named(checkout.EventViewUpsell))
}

func TestDataLayerSubscribe(t *testing.T) {
	d := NewDataLayer()
	d.Push(checkout.AnalyticsEvent{"event": "before"})

	events, cancel := d.Subscribe(4)
	d.Push(checkout.AnalyticsEvent{"event": "after"})

	got := <-events
	assert.Equal(t, "after", got.Name())

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)

	// Pushing after cancel is safe
	d.Push(checkout.AnalyticsEvent{"event": "late"})
	assert.Len(t, d.Events(), 3)
}

func TestDataLayerSlowSubscriber(t *testing.T) {
	d := NewDataLayer()
	_, cancel := d.Subscribe(1)
	defer cancel()

	for i := 0; i < 5; i++ {
		d.Push(checkout.AnalyticsEvent{"event": "tick"})
	}
	assert.Len(t, d.Events(), 5)
}

func TestDataLayerConcurrentPush(t *testing.T) {
	d := NewDataLayer()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Push(checkout.AnalyticsEvent{"event": "tick"})
		}()
	}
	wg.Wait()
	assert.Len(t, d.Events(), 20)
}

func TestDefault(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	replacement := NewDataLayer()
	SetDefault(replacement)
	assert.Same(t, replacement, Default())
}

func TestLeadEvent(t *testing.T) {
	event := LeadEvent("a@x.com", "es", "email_capture_step", "lead_created", true)
	assert.Equal(t, checkout.EventGenerateLead, event.Name())
	details := event["lead_details"].(map[string]interface{})
	assert.Equal(t, "email_capture_step", details["source"])
	assert.Equal(t, true, details["has_fbclid"])
}
