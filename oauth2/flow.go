// Package oauth2 provides authkit.NativePrompt implementations that obtain Google
// and Apple identity tokens through the authorization-code flow.
//
// A Flow opens the provider's consent page through a Receiver (the native sheet
// on a device, a LoopbackReceiver on a desktop or in tests), waits for the
// redirect, exchanges the code and returns the id_token from the token response.
package oauth2

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"golang.org/x/oauth2"

	"github.com/pinged/authkit"
)

// Callback is what the provider sent back to the redirect URL.
type Callback struct {
	Code             string
	State            string
	IDToken          string
	Error            string
	ErrorDescription string
}

// Receiver presents an authorization URL to the user and waits for the redirect.
// authURL is called with the redirect URL the receiver listens on (or "" to keep
// the configured one) and returns the page to present.
type Receiver interface {
	Receive(ctx context.Context, state string, authURL func(redirectURL string) string) (*Callback, error)
}

// FlowOption configures a Flow
type FlowOption func(*Flow)

// WithEndpoint replaces the provider's endpoints.
func WithEndpoint(ep oauth2.Endpoint) FlowOption {
	return func(f *Flow) { f.config.Endpoint = ep }
}

// WithScopes replaces the requested scopes.
func WithScopes(scopes ...string) FlowOption {
	return func(f *Flow) { f.config.Scopes = scopes }
}

// WithHTTPClient sets the client used for the code exchange.
func WithHTTPClient(c *http.Client) FlowOption {
	return func(f *Flow) { f.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FlowOption {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

var (
	_ authkit.NativePrompt = (*Flow)(nil)
	_ Receiver             = (*LoopbackReceiver)(nil)
)

// Flow is an authorization-code flow that yields an OpenID Connect id_token.
type Flow struct {
	Provider authkit.OAuthProvider

	config     oauth2.Config
	receiver   Receiver
	httpClient *http.Client
	logger     *slog.Logger

	// provider specific
	pkce         bool
	extraParams  func(req authkit.PromptRequest) []oauth2.AuthCodeOption
	cancelErrors []string
}

func newFlow(provider authkit.OAuthProvider, cfg oauth2.Config, receiver Receiver, opts []FlowOption) *Flow {
	f := &Flow{
		Provider:     provider,
		config:       cfg,
		receiver:     receiver,
		logger:       slog.Default(),
		cancelErrors: []string{"access_denied"},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Config returns a copy of the underlying oauth2 configuration.
func (f *Flow) Config() oauth2.Config {
	return f.config
}

// Prompt implements authkit.NativePrompt. It returns authkit.ErrCancelled if the
// user declines consent.
func (f *Flow) Prompt(ctx context.Context, req authkit.PromptRequest) (string, error) {
	if f.receiver == nil {
		return "", fmt.Errorf("%s: no receiver configured", f.Provider)
	}
	state, err := randomState()
	if err != nil {
		return "", err
	}

	cfg := f.config
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	var verifier string
	if f.pkce {
		verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	if f.extraParams != nil {
		opts = append(opts, f.extraParams(req)...)
	}

	cb, err := f.receiver.Receive(ctx, state, func(redirectURL string) string {
		if redirectURL != "" {
			cfg.RedirectURL = redirectURL
		}
		return cfg.AuthCodeURL(state, opts...)
	})
	if err != nil {
		return "", fmt.Errorf("%s: waiting for redirect: %w", f.Provider, err)
	}
	if cb.State != state {
		return "", &authkit.ProviderError{Code: "auth/invalid-credential", Err: errors.New("oauth state mismatch")}
	}
	if cb.Error != "" {
		if slices.Contains(f.cancelErrors, cb.Error) {
			f.logger.Info("consent declined", "provider", string(f.Provider), "error", cb.Error)
			return "", authkit.ErrCancelled
		}
		return "", &authkit.ProviderError{
			Code: "auth/invalid-credential",
			Err:  fmt.Errorf("%s: %s %s", f.Provider, cb.Error, cb.ErrorDescription),
		}
	}
	if cb.Code == "" {
		if cb.IDToken != "" {
			return cb.IDToken, nil
		}
		return "", &authkit.ProviderError{Code: "auth/invalid-credential", Err: errors.New("redirect carried no code")}
	}

	if f.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	}
	var exOpts []oauth2.AuthCodeOption
	if verifier != "" {
		exOpts = append(exOpts, oauth2.VerifierOption(verifier))
	}
	token, err := cfg.Exchange(ctx, cb.Code, exOpts...)
	if err != nil {
		f.logger.Warn("code exchange failed", "provider", string(f.Provider), "error", err)
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return "", &authkit.ProviderError{Code: "auth/invalid-credential", Err: err}
		}
		return "", &authkit.ProviderError{Code: "network-request-failed", Err: err}
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		idToken = cb.IDToken
	}
	if idToken == "" {
		return "", fmt.Errorf("%s: no id_token in token response", f.Provider)
	}
	return idToken, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
