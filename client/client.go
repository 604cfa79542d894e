package client

import (
	"net/http"
)

// ClientOption configures the HTTP client returned by NewHTTPClient
type ClientOption func(*clientConfig)

type clientConfig struct {
	base   http.RoundTripper
	client *http.Client
}

// WithHTTPClient sets a custom base HTTP client (for timeouts, TLS config, etc.)
// The transport from this client will be wrapped with auth handling.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) {
		if client == nil {
			return
		}
		if client.Transport != nil {
			c.base = client.Transport
		}
		c.client.Timeout = client.Timeout
		c.client.CheckRedirect = client.CheckRedirect
		c.client.Jar = client.Jar
	}
}

// WithTransport sets a custom base transport (for connection pooling, proxies, etc.)
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *clientConfig) {
		c.base = transport
	}
}

// NewHTTPClient returns a client whose requests carry the signed-in user's ID token.
// Requests fail while nobody is signed in.
func NewHTTPClient(tokens TokenSource, opts ...ClientOption) *http.Client {
	cfg := &clientConfig{
		base:   http.DefaultTransport,
		client: &http.Client{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.client.Transport = &AuthTransport{Base: cfg.base, Tokens: tokens}
	return cfg.client
}
