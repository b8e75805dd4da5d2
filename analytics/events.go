package analytics

import (
	checkout "github.com/aprskavec/stripe-framer"
)

// LeadEvent builds the generate_lead event pushed after an email capture
func LeadEvent(email, locale, source, status string, hasClickID bool) checkout.AnalyticsEvent {
	return checkout.AnalyticsEvent{
		"event": checkout.EventGenerateLead,
		"lead_details": map[string]interface{}{
			"email":      email,
			"locale":     locale,
			"source":     source,
			"status":     status,
			"has_fbclid": hasClickID,
		},
	}
}
