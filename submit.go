package authkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// PromptRequest is passed to a NativePrompt.
type PromptRequest struct {
	Provider OAuthProvider
	// NonceHash is set for Apple; the prompt must forward it unchanged.
	NonceHash string
}

// NativePrompt is a platform sign-in sheet (Google, Apple) that yields an identity
// token. It returns ErrCancelled when the user dismisses it.
type NativePrompt interface {
	Prompt(ctx context.Context, req PromptRequest) (idToken string, err error)
}

// SubmitterOption configures a Submitter
type SubmitterOption func(*Submitter)

// WithGooglePrompt enables SignInWithGoogle.
func WithGooglePrompt(p NativePrompt) SubmitterOption {
	return func(s *Submitter) { s.google = p }
}

// WithApplePrompt enables SignInWithApple.
func WithApplePrompt(p NativePrompt) SubmitterOption {
	return func(s *Submitter) { s.apple = p }
}

// WithInFlightHook registers fn to be called when the in-flight flag flips.
func WithInFlightHook(fn func(inFlight bool)) SubmitterOption {
	return func(s *Submitter) { s.onInFlight = fn }
}

// WithSubmitterLogger sets the logger.
func WithSubmitterLogger(logger *slog.Logger) SubmitterOption {
	return func(s *Submitter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Submitter turns credential requests into identity provider calls.
//
// It never writes the Session: a successful call is observed through the
// SessionStore's subscription. The in-flight flag is a signal for the UI to
// disable resubmission; the Submitter does not reject overlapping calls.
type Submitter struct {
	provider   IdentityProvider
	google     NativePrompt
	apple      NativePrompt
	onInFlight func(bool)
	logger     *slog.Logger
	newNonce   func() (raw, hashed string, err error)

	inFlight atomic.Int32
}

// NewSubmitter creates a Submitter for provider.
func NewSubmitter(provider IdentityProvider, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		provider: provider,
		logger:   slog.Default(),
		newNonce: NewNonce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InFlight reports whether a provider call is outstanding.
func (s *Submitter) InFlight() bool {
	return s.inFlight.Load() > 0
}

// Submit validates req (email/password only) and sends it to the provider.
//
// It returns nil on success, FieldErrors when validation fails (no provider call is
// made), or a *ProviderError.
func (s *Submitter) Submit(ctx context.Context, req Request) error {
	switch r := req.(type) {
	case EmailPassword:
		if errs := ValidateEmailPassword(r); errs != nil {
			return errs
		}
		defer s.begin()()
		return s.submitEmail(ctx, r)
	case OAuthToken:
		defer s.begin()()
		return s.submitToken(ctx, r)
	case *EmailPassword:
		return s.Submit(ctx, *r)
	case *OAuthToken:
		return s.Submit(ctx, *r)
	}
	return fmt.Errorf("unsupported credential request %T", req)
}

// SignInWithGoogle runs the Google prompt and submits the resulting token.
// A dismissed Google prompt is reported as a generic failure.
func (s *Submitter) SignInWithGoogle(ctx context.Context) error {
	defer s.begin()()
	if s.google == nil {
		return &ProviderError{Code: "auth/operation-not-allowed", Err: errors.New("google prompt not configured")}
	}
	idToken, err := s.google.Prompt(ctx, PromptRequest{Provider: ProviderGoogle})
	if err == nil && idToken == "" {
		err = errors.New("no id_token in google response")
	}
	if err != nil {
		s.logger.Error("google sign-in failed", "error", err)
		if errors.Is(err, ErrCancelled) {
			return &ProviderError{Err: fmt.Errorf("google sign-in was cancelled or failed: %v", err)}
		}
		return asProviderError(err)
	}
	return s.submitToken(ctx, OAuthToken{Provider: ProviderGoogle, IDToken: idToken})
}

// SignInWithApple generates a nonce, runs the Apple prompt with its hash and submits
// the token with the same raw nonce. It returns ErrCancelled, without a normalized
// alert, if the user dismisses the prompt.
func (s *Submitter) SignInWithApple(ctx context.Context) error {
	defer s.begin()()
	if s.apple == nil {
		return ErrAppleUnavailable
	}

	raw, hashed, err := s.newNonce()
	if err != nil {
		return &ProviderError{Code: "auth/internal-error", Err: err}
	}

	idToken, err := s.apple.Prompt(ctx, PromptRequest{Provider: ProviderApple, NonceHash: hashed})
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			s.logger.Info("apple sign-in cancelled")
			return ErrCancelled
		}
		s.logger.Error("apple sign-in failed", "error", err)
		return asProviderError(err)
	}
	return s.submitToken(ctx, OAuthToken{Provider: ProviderApple, IDToken: idToken, Nonce: raw})
}

// SignOut asks the provider to end the session.
func (s *Submitter) SignOut(ctx context.Context) error {
	defer s.begin()()
	if err := s.provider.SignOut(ctx); err != nil {
		return asProviderError(err)
	}
	return nil
}

func (s *Submitter) submitEmail(ctx context.Context, r EmailPassword) error {
	var err error
	if r.Mode == ModeSignUp {
		_, err = s.provider.SignUp(ctx, r.Email, r.Password)
	} else {
		_, err = s.provider.SignIn(ctx, r.Email, r.Password)
	}
	if err != nil {
		pe := asProviderError(err)
		s.logger.Warn("email authentication failed", "mode", r.Mode.String(), "code", pe.Code)
		return pe
	}
	return nil
}

func (s *Submitter) submitToken(ctx context.Context, r OAuthToken) error {
	if _, err := s.provider.SignInWithCredential(ctx, r.Provider, r.IDToken, r.Nonce); err != nil {
		pe := asProviderError(err)
		s.logger.Warn("credential sign-in failed", "provider", string(r.Provider), "code", pe.Code)
		return pe
	}
	return nil
}

// begin raises the in-flight flag and returns the function that lowers it.
func (s *Submitter) begin() (end func()) {
	if s.inFlight.Add(1) == 1 && s.onInFlight != nil {
		s.onInFlight(true)
	}
	return func() {
		if s.inFlight.Add(-1) == 0 && s.onInFlight != nil {
			s.onInFlight(false)
		}
	}
}

func asProviderError(err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		return &ProviderError{Code: coded.ErrorCode(), Err: err}
	}
	return &ProviderError{Err: err}
}
