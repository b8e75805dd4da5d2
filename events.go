package checkout

// Analytics event tags
const (
	EventBeginCheckout = "begin_checkout"
	EventViewUpsell    = "view_upsell"
	EventGenerateLead  = "generate_lead"
)

// VisibilityEvent builds the event emitted when a variant's payment form
// first becomes visible. Upsell variants report upsell details; base
// offers report checkout details.
func VisibilityEvent(variant Variant, buyer BuyerContext, pagePath, attemptID string) AnalyticsEvent {
	name := variant.Event
	if name == "" {
		name = EventBeginCheckout
		if variant.Kind.IsUpsell() {
			name = EventViewUpsell
		}
	}

	items := make([]map[string]interface{}, 0, len(variant.Items))
	for _, item := range variant.Items {
		items = append(items, map[string]interface{}{
			"item_id":       item.ID,
			"item_name":     item.Name,
			"price":         item.Price,
			"quantity":      item.Quantity,
			"item_category": item.Category,
		})
	}

	event := AnalyticsEvent{
		"event":    name,
		"event_id": attemptID,
		"ecommerce": map[string]interface{}{
			"currency": variant.Currency,
			"value":    variant.Value(),
			"items":    items,
		},
	}

	if variant.Kind.IsUpsell() {
		event["upsell_details"] = map[string]interface{}{
			"has_previous_session": buyer.SessionRef != "",
			"has_customer_id":      buyer.CustomerRef != "",
			"has_email":            buyer.HasEmail(),
			"locale":               buyer.Locale,
		}
		return event
	}

	details := map[string]interface{}{
		"funnel_type": string(variant.Kind),
		"locale":      buyer.Locale,
		"has_email":   buyer.HasEmail(),
		"page_path":   pagePath,
	}
	if variant.CombinedFlow {
		details["combined_flow"] = true
	}
	event["checkout_details"] = details
	return event
}
