// Package identity derives the buyer's attribution and locale signals from
// the current navigation: the page URL and its cookies.
package identity

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	checkout "github.com/aprskavec/stripe-framer"
	"golang.org/x/text/language"
)

const (
	// ClickIDParam is the query parameter carrying the ad click id
	ClickIDParam = "fbclid"
	// AttributionCookie stores the derived attribution token
	AttributionCookie = "_fbc"
	// BrowserCookie is the externally-set browser reference. It is never written.
	BrowserCookie = "_fbp"

	// AttributionMaxAge is how long the attribution token is kept
	AttributionMaxAge = 7 * 24 * time.Hour

	// DefaultRootDomain scopes the attribution cookie
	DefaultRootDomain = "captainenglish.com"

	attributionSource  = "fb"
	attributionVersion = "1"
)

// SupportedLocales are the locales that may prefix a page path. Pages
// without one of them use the default locale ("").
var SupportedLocales = []language.Tag{
	language.Spanish,
	language.Arabic,
	language.Hindi,
	language.French,
	language.German,
	language.Italian,
	language.Portuguese,
	language.Russian,
	language.Japanese,
	language.Korean,
	language.Chinese,
}

var supportedLocales = func() map[string]language.Tag {
	m := make(map[string]language.Tag, len(SupportedLocales))
	for _, tag := range SupportedLocales {
		m[tag.String()] = tag
	}
	return m
}()

// IsSupportedLocale reports whether code exactly matches a supported locale
func IsSupportedLocale(code string) bool {
	_, ok := supportedLocales[code]
	return ok
}

// Navigation is the page being served: its URL, cookies and user agent
type Navigation struct {
	URL       *url.URL
	Jar       CookieJar
	UserAgent string
}

// FromRequest builds a Navigation for an incoming page request. Cookies
// written while deriving signals are sent on w.
func FromRequest(w http.ResponseWriter, r *http.Request) Navigation {
	return Navigation{
		URL:       r.URL,
		Jar:       NewRequestJar(w, r),
		UserAgent: r.UserAgent(),
	}
}

// BrowserSignals are the opaque attribution identifiers forwarded to the backend
type BrowserSignals struct {
	// ClickAttribution is the attribution token, "source.version.timestamp.id"
	ClickAttribution string
	// BrowserRef is the browser reference cookie value
	BrowserRef string
}

// Signals derives identity signals for one navigation. Derivation is
// memoized: the attribution cookie is written at most once per Signals.
type Signals struct {
	nav        Navigation
	rootDomain string
	now        func() time.Time

	once    sync.Once
	browser BrowserSignals
}

// Option configures Signals
type Option func(*Signals)

// WithRootDomain sets the domain the attribution cookie is scoped to
func WithRootDomain(domain string) Option {
	return func(s *Signals) {
		s.rootDomain = strings.TrimPrefix(domain, ".")
	}
}

// WithClock overrides the time source used for attribution tokens
func WithClock(now func() time.Time) Option {
	return func(s *Signals) {
		s.now = now
	}
}

// New creates Signals for a navigation
func New(nav Navigation, opts ...Option) *Signals {
	s := &Signals{
		nav:        nav,
		rootDomain: DefaultRootDomain,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.nav.URL == nil {
		s.nav.URL = &url.URL{Path: "/"}
	}
	if s.nav.Jar == nil {
		s.nav.Jar = NewMemoryJar(nil)
	}
	return s
}

func (s *Signals) query(name string) string {
	return strings.TrimSpace(s.nav.URL.Query().Get(name))
}

// ClickID returns the raw ad click id: from the URL when present, otherwise
// recovered from the stored attribution token. "" means absent.
func (s *Signals) ClickID() string {
	if id := s.query(ClickIDParam); id != "" {
		return id
	}
	token, ok := s.nav.Jar.Cookie(AttributionCookie)
	if !ok {
		return ""
	}
	parts := strings.SplitN(token, ".", 4)
	if len(parts) != 4 {
		return ""
	}
	return parts[3]
}

// BrowserSignals returns the attribution token and browser reference. When
// the URL carries a click id, a fresh token is written to the attribution
// cookie, overwriting any prior value.
func (s *Signals) BrowserSignals() BrowserSignals {
	s.once.Do(func() {
		if id := s.query(ClickIDParam); id != "" {
			token := AttributionToken(id, s.now())
			s.nav.Jar.SetCookie(&http.Cookie{
				Name:   AttributionCookie,
				Value:  token,
				Path:   "/",
				Domain: "." + s.rootDomain,
				MaxAge: int(AttributionMaxAge.Seconds()),
			})
			s.browser.ClickAttribution = token
		} else if token, ok := s.nav.Jar.Cookie(AttributionCookie); ok {
			s.browser.ClickAttribution = token
		}
		if ref, ok := s.nav.Jar.Cookie(BrowserCookie); ok {
			s.browser.BrowserRef = ref
		}
	})
	return s.browser
}

// Locale returns the first path segment if it is a supported locale, else ""
func (s *Signals) Locale() string {
	return LocaleForPath(s.nav.URL.Path)
}

// Email returns the email carried in the URL, if any. Upsell pages may
// receive it as customer_email.
func (s *Signals) Email() string {
	if email := s.query("email"); email != "" {
		return email
	}
	return s.query("customer_email")
}

// UpsellRefs returns the previous session and customer references passed
// to a post-purchase page
func (s *Signals) UpsellRefs() (sessionRef, customerRef string) {
	return s.query("session_id"), s.query("customer_id")
}

// PagePath returns the path of the current page
func (s *Signals) PagePath() string {
	return s.nav.URL.Path
}

// Buyer assembles the buyer context for a funnel
func (s *Signals) Buyer(kind checkout.FunnelKind) checkout.BuyerContext {
	browser := s.BrowserSignals()
	buyer := checkout.BuyerContext{
		Email:     s.Email(),
		Locale:    s.Locale(),
		ClickID:   browser.ClickAttribution,
		BrowserID: browser.BrowserRef,
		UserAgent: s.nav.UserAgent,
	}
	if kind.IsUpsell() {
		buyer.SessionRef, buyer.CustomerRef = s.UpsellRefs()
	}
	return buyer
}

// AttributionToken formats the attribution token for a click id
func AttributionToken(clickID string, at time.Time) string {
	return strings.Join([]string{
		attributionSource,
		attributionVersion,
		strconv.FormatInt(at.UnixMilli(), 10),
		clickID,
	}, ".")
}

// LocaleForPath returns the locale prefix of a path, or ""
func LocaleForPath(path string) string {
	segment := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(segment, '/'); i >= 0 {
		segment = segment[:i]
	}
	if IsSupportedLocale(segment) {
		return segment
	}
	return ""
}

// LocalePath prefixes path with the locale segment. The default locale has none.
func LocalePath(locale, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if locale == "" {
		return path
	}
	return "/" + locale + path
}

// LocaleURL builds an absolute URL on siteURL for a locale-relative path
func LocaleURL(siteURL, locale, path string, query url.Values) string {
	u := strings.TrimRight(siteURL, "/") + LocalePath(locale, path)
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

// SuccessRedirect returns a redirect builder producing absolute locale URLs
// on siteURL
func SuccessRedirect(siteURL string) checkout.RedirectBuilder {
	return func(locale, path string) string {
		return LocaleURL(siteURL, locale, path, nil)
	}
}
