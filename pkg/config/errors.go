package config

import "errors"

// Config validation errors
var (
	ErrMissingBackendURL     = errors.New("config: backend url is required")
	ErrMissingUpsellURL      = errors.New("config: upsell backend url is required")
	ErrInvalidPublishableKey = errors.New("config: publishable key must start with pk_")
	ErrMissingRootDomain     = errors.New("config: root domain is required")
	ErrInvalidSiteURL        = errors.New("config: site url must be an absolute http(s) url")
	ErrInvalidTimeout        = errors.New("config: session timeout must be positive")
)
