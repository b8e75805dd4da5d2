package identity

import (
	"context"

	checkout "github.com/aprskavec/stripe-framer"
)

// Visit is everything a checkout widget needs to know about the page
// request it is rendered for
type Visit struct {
	Buyer    checkout.BuyerContext
	Kind     checkout.FunnelKind
	PagePath string
}

// ResolveVisit derives the visit for a navigation. An empty kind is
// inferred from the page path.
func ResolveVisit(nav Navigation, kind checkout.FunnelKind, opts ...Option) Visit {
	s := New(nav, opts...)
	if kind == "" {
		kind = checkout.KindForPath(s.PagePath())
	}
	return Visit{
		Buyer:    s.Buyer(kind),
		Kind:     kind,
		PagePath: s.PagePath(),
	}
}

type visitKey struct{}

// WithVisit returns a context carrying v
func WithVisit(ctx context.Context, v Visit) context.Context {
	return context.WithValue(ctx, visitKey{}, v)
}

// VisitFromContext returns the visit stored by WithVisit
func VisitFromContext(ctx context.Context) (Visit, bool) {
	v, ok := ctx.Value(visitKey{}).(Visit)
	return v, ok
}
