package stdlib

import (
	"net/http"
	"time"

	checkout "github.com/aprskavec/stripe-framer"
	"github.com/aprskavec/stripe-framer/identity"
)

// BuyerMiddlewareOptions is the options for the BuyerMiddleware.
type BuyerMiddlewareOptions struct {
	RootDomain string
	Funnel     checkout.FunnelKind
	Clock      func() time.Time
}

// Options is the type for the options for the BuyerMiddleware.
type Options func(*BuyerMiddlewareOptions)

// WithRootDomain is an option for the BuyerMiddleware to set the attribution cookie domain.
func WithRootDomain(domain string) Options {
	return func(options *BuyerMiddlewareOptions) {
		options.RootDomain = domain
	}
}

// WithFunnel is an option for the BuyerMiddleware to pin the funnel instead of inferring it from the path.
func WithFunnel(kind checkout.FunnelKind) Options {
	return func(options *BuyerMiddlewareOptions) {
		options.Funnel = kind
	}
}

// WithClock is an option for the BuyerMiddleware to set the time source.
func WithClock(clock func() time.Time) Options {
	return func(options *BuyerMiddlewareOptions) {
		options.Clock = clock
	}
}

// identityOptions converts middleware options to identity options
func (o *BuyerMiddlewareOptions) identityOptions() []identity.Option {
	var opts []identity.Option
	if o.RootDomain != "" {
		opts = append(opts, identity.WithRootDomain(o.RootDomain))
	}
	if o.Clock != nil {
		opts = append(opts, identity.WithClock(o.Clock))
	}
	return opts
}

// BuyerMiddleware derives the buyer context of every page request and
// stores it on the request context. The attribution cookie is written on
// the response when the URL carries a click id.
func BuyerMiddleware(opts ...Options) func(http.Handler) http.Handler {
	options := &BuyerMiddlewareOptions{}
	for _, opt := range opts {
		opt(options)
	}
	identityOpts := options.identityOptions()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			visit := identity.ResolveVisit(identity.FromRequest(w, r), options.Funnel, identityOpts...)
			next.ServeHTTP(w, r.WithContext(identity.WithVisit(r.Context(), visit)))
		})
	}
}

// VisitFrom returns the visit the middleware stored on r
func VisitFrom(r *http.Request) (identity.Visit, bool) {
	return identity.VisitFromContext(r.Context())
}
