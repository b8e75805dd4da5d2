// Package config loads checkout settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	checkout "github.com/aprskavec/stripe-framer"
	"github.com/aprskavec/stripe-framer/telemetry"
	"github.com/caarlos0/env/v11"
)

// Config is the checkout configuration
type Config struct {
	// BackendURL is the session endpoint of the base offer
	BackendURL string `env:"CHECKOUT_BACKEND_URL" envDefault:"https://ce-stripe-form-3iw4kbqopa-uc.a.run.app"`
	// UpsellBackendURL is the session endpoint of the post-purchase offer
	UpsellBackendURL string `env:"CHECKOUT_UPSELL_BACKEND_URL" envDefault:"https://ce-stripe-upsell-form-3iw4kbqopa-uc.a.run.app"`
	// LeadURL is the lead endpoint. Defaults to BackendURL.
	LeadURL string `env:"CHECKOUT_LEAD_URL"`

	// PublishableKey is the key the payment runtime is constructed with
	PublishableKey string `env:"CHECKOUT_PUBLISHABLE_KEY"`

	// RootDomain scopes the attribution cookie
	RootDomain string `env:"CHECKOUT_ROOT_DOMAIN" envDefault:"captainenglish.com"`
	// SiteURL is where redirects point
	SiteURL string `env:"CHECKOUT_SITE_URL" envDefault:"https://captainenglish.com"`

	// SessionTimeout bounds every backend call
	SessionTimeout time.Duration `env:"CHECKOUT_SESSION_TIMEOUT" envDefault:"10s"`

	// Tracing is opt-in: set an endpoint to export spans
	ServiceName  string `env:"CHECKOUT_SERVICE_NAME" envDefault:"checkout"`
	OTelEndpoint string `env:"CHECKOUT_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"CHECKOUT_OTEL_ENABLED" envDefault:"true"`
}

// Load reads the configuration from the process environment
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom reads the configuration from the given variables only
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks if the config is usable
func (c Config) Validate() error {
	if c.BackendURL == "" {
		return ErrMissingBackendURL
	}
	if c.UpsellBackendURL == "" {
		return ErrMissingUpsellURL
	}
	if c.PublishableKey != "" && !strings.HasPrefix(c.PublishableKey, "pk_") {
		return ErrInvalidPublishableKey
	}
	if c.RootDomain == "" {
		return ErrMissingRootDomain
	}
	u, err := url.Parse(c.SiteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidSiteURL
	}
	if c.SessionTimeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// Variant returns the built-in variant for a funnel, pointed at the
// configured backend
func (c Config) Variant(kind checkout.FunnelKind) checkout.Variant {
	switch kind {
	case checkout.FunnelUpsell:
		return checkout.Upsell().WithEndpoint(c.UpsellBackendURL)
	case checkout.FunnelOptionB:
		return checkout.OptionB().WithEndpoint(c.BackendURL)
	default:
		return checkout.OptionA().WithEndpoint(c.BackendURL)
	}
}

// LoaderOptions returns the runtime loader settings derived from the config
func (c Config) LoaderOptions() []checkout.LoaderOption {
	return []checkout.LoaderOption{checkout.WithPublishableKey(c.PublishableKey)}
}

// LeadEndpoint returns the lead endpoint
func (c Config) LeadEndpoint() string {
	if c.LeadURL != "" {
		return c.LeadURL
	}
	return c.BackendURL
}

// Tracing returns the tracing settings
func (c Config) Tracing() telemetry.TracingConfig {
	return telemetry.TracingConfig{
		ServiceName: c.ServiceName,
		Endpoint:    c.OTelEndpoint,
		Enabled:     c.OTelEnabled,
	}
}
