package gin

import (
	"time"

	"github.com/gin-gonic/gin"

	checkout "github.com/aprskavec/stripe-framer"
	"github.com/aprskavec/stripe-framer/identity"
)

// VisitKey is the gin context key the visit is stored under
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

// BuyerMiddleware derives the buyer context of every page request. The
// visit is available through VisitFrom and on the request context.
func BuyerMiddleware(opts ...Options) gin.HandlerFunc {
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

	return func(c *gin.Context) {
		visit := identity.ResolveVisit(identity.FromRequest(c.Writer, c.Request), options.Funnel, identityOpts...)
		c.Set(VisitKey, visit)
		c.Request = c.Request.WithContext(identity.WithVisit(c.Request.Context(), visit))
		c.Next()
	}
}

// VisitFrom returns the visit stored by BuyerMiddleware
func VisitFrom(c *gin.Context) (identity.Visit, bool) {
	value, ok := c.Get(VisitKey)
	if !ok {
		return identity.Visit{}, false
	}
	visit, ok := value.(identity.Visit)
	return visit, ok
}
