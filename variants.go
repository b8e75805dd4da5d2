package checkout

// Default session backends
const (
	DefaultBaseEndpoint   = "https://ce-stripe-form-3iw4kbqopa-uc.a.run.app"
	DefaultUpsellEndpoint = "https://ce-stripe-upsell-form-3iw4kbqopa-uc.a.run.app"
)

var baseOfferItem = LineItem{
	ID:       "captain_english_pro",
	Name:     "Captain English Pro - 3 Day Trial",
	Price:    5.0,
	Quantity: 1,
	Category: "subscription",
}

var upsellItem = LineItem{
	ID:       "captain_english_upsell",
	Name:     "Captain English Upsell Package",
	Price:    20.0,
	Quantity: 1,
	Category: "upsell",
}

// OptionA is the direct checkout funnel
func OptionA() Variant {
	return Variant{
		Kind:      FunnelOptionA,
		Component: "StripeCheckout",
		Endpoint:  DefaultBaseEndpoint,
		Currency:  "USD",
		Items:     []LineItem{baseOfferItem},
		Event:     EventBeginCheckout,
	}
}

// OptionB is the email-first funnel's checkout
func OptionB() Variant {
	v := OptionA()
	v.Kind = FunnelOptionB
	return v
}

// CombinedFlow is the single widget that captures the email and then shows
// the checkout. It is attributed to option_a.
func CombinedFlow() Variant {
	v := OptionA()
	v.Component = "EmailAndCheckout"
	v.CombinedFlow = true
	return v
}

// Upsell is the post-purchase one-time offer
func Upsell() Variant {
	return Variant{
		Kind:        FunnelUpsell,
		Component:   "UpsellStripeCheckout",
		Endpoint:    DefaultUpsellEndpoint,
		Currency:    "USD",
		Items:       []LineItem{upsellItem},
		Event:       EventViewUpsell,
		SuccessPath: "/thank-you-upsell",
	}
}

// BaseVariantForPath returns the base-offer variant for a page path
func BaseVariantForPath(path string) Variant {
	if KindForPath(path) == FunnelOptionB {
		return OptionB()
	}
	return OptionA()
}
