package jibgateway

import (
	"net/http"
	"time"
)

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	secret     string
	secretFile string
	httpClient *http.Client
	timeout    time.Duration
}

// WithSecret sets the gateway's bearer secret.
func WithSecret(secret string) Option {
	return func(c *clientConfig) { c.secret = secret }
}

// WithSecretFile reads the bearer secret from path at creation time.
func WithSecretFile(path string) Option {
	return func(c *clientConfig) { c.secretFile = path }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithTimeout bounds each request. Pushes can be slow; the default is two
// minutes.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}
