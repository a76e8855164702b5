package ecommerce

import (
	"errors"
	"time"
)

const (
	// DefaultAPIPathPrefix is the REST namespace under the store base URL
	DefaultAPIPathPrefix = "/wp-json/wc"
	// DefaultAPIVersion is used when a store does not name one
	DefaultAPIVersion = "v3"
	// DefaultUserAgent identifies the sync engine to the platform
	DefaultUserAgent = "commercesync/1.0"
	// defaultMaxResponseSize caps a single page body (10MB)
	defaultMaxResponseSize = 10 * 1024 * 1024
)

// Errors for REST client configuration
var (
	ErrRESTConfigInvalidTimeout = errors.New("ecommerce: request timeout must be positive")
	ErrRESTConfigInvalidLimit   = errors.New("ecommerce: max response size must be positive")
)

// RESTConfig holds configuration for the commerce REST client
type RESTConfig struct {
	// APIPathPrefix is joined between the store base URL and the API version
	APIPathPrefix string
	// DefaultAPIVersion is used for stores without an API version
	DefaultAPIVersion string
	// RequestTimeout bounds one page fetch
	RequestTimeout time.Duration
	// MaxResponseSize caps the bytes read from one response
	MaxResponseSize int64
	// UserAgent is sent on every request
	UserAgent string
}

// DefaultRESTConfig returns the client defaults
func DefaultRESTConfig() RESTConfig {
	return RESTConfig{
		APIPathPrefix:     DefaultAPIPathPrefix,
		DefaultAPIVersion: DefaultAPIVersion,
		RequestTimeout:    30 * time.Second,
		MaxResponseSize:   defaultMaxResponseSize,
		UserAgent:         DefaultUserAgent,
	}
}

// applyDefaults fills zero fields
func (c *RESTConfig) applyDefaults() {
	if c.APIPathPrefix == "" {
		c.APIPathPrefix = DefaultAPIPathPrefix
	}
	if c.DefaultAPIVersion == "" {
		c.DefaultAPIVersion = DefaultAPIVersion
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.MaxResponseSize == 0 {
		c.MaxResponseSize = defaultMaxResponseSize
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// Validate checks the configuration after defaults are applied
func (c *RESTConfig) Validate() error {
	c.applyDefaults()
	if c.RequestTimeout < 0 {
		return ErrRESTConfigInvalidTimeout
	}
	if c.MaxResponseSize < 0 {
		return ErrRESTConfigInvalidLimit
	}
	return nil
}
