package echo

import (
	"time"

	"github.com/labstack/echo/v4"

	checkout "github.com/aprskavec/stripe-framer"
	"github.com/aprskavec/stripe-framer/identity"
)

// VisitKey is the echo context key the visit is stored under
const VisitKey = "checkout.visit"

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

// WithFunnel is an option for the BuyerMiddleware to pin the funnel.
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

// BuyerMiddleware derives the buyer context of every page request
func BuyerMiddleware(opts ...Options) echo.MiddlewareFunc {
	options := &BuyerMiddlewareOptions{}
	for _, opt := range opts {
		opt(options)
	}

	var identityOpts []identity.Option
	if options.RootDomain != "" {
		identityOpts = append(identityOpts, identity.WithRootDomain(options.RootDomain))
	}
	if options.Clock != nil {
		identityOpts = append(identityOpts, identity.WithClock(options.Clock))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			visit := identity.ResolveVisit(identity.FromRequest(c.Response(), req), options.Funnel, identityOpts...)
			c.Set(VisitKey, visit)
			c.SetRequest(req.WithContext(identity.WithVisit(req.Context(), visit)))
			return next(c)
		}
	}
}

// VisitFrom returns the visit stored by BuyerMiddleware
func VisitFrom(c echo.Context) (identity.Visit, bool) {
	visit, ok := c.Get(VisitKey).(identity.Visit)
	return visit, ok
}
