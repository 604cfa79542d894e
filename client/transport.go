package client

import (
	"context"
	"fmt"
	"net/http"
)

// TokenSource yields the current user's ID token.
type TokenSource interface {
	IDToken(ctx context.Context) (string, error)
}

// AuthTransport wraps an http.RoundTripper to add Authorization headers
type AuthTransport struct {
	Base   http.RoundTripper
	Tokens TokenSource
}

// RoundTrip implements http.RoundTripper
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.Tokens.IDToken(req.Context())
	if err != nil {
		return nil, fmt.Errorf("no id token for request: %w", err)
	}
	if token != "" {
		// Clone the request to avoid mutating the original
		req2 := req.Clone(req.Context())
		req2.Header.Set("Authorization", "Bearer "+token)
		req = req2
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	return base.RoundTrip(req)
}
