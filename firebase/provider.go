// Package firebase adapts the Firebase Authentication REST backend (Identity
// Toolkit) to authkit's IdentityProvider and AuthStateSource.
//
// The Provider owns session persistence: the signed-in user is written to a
// client.CredentialStore and restored from it when the first subscriber attaches.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"github.com/pinged/authkit"
	"github.com/pinged/authkit/client"
)

// DefaultRequestURI is sent as requestUri on assertion sign-in; the backend only
// needs a syntactically valid URL for token (not code) assertions.
const DefaultRequestURI = "http://localhost"

// Config selects the Firebase project to talk to.
type Config struct {
	APIKey    string
	ProjectID string
	// Endpoint overrides the Identity Toolkit base URL (emulator, tests).
	Endpoint string
	// HTTPClient replaces the default transport. The API key is still attached.
	HTTPClient *http.Client
}

// Validate reports missing required configuration.
func (c Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("firebase: api key is required"))
	}
	if c.ProjectID == "" {
		errs = append(errs, errors.New("firebase: project id is required"))
	}
	return errors.Join(errs...)
}

// Option configures a Provider
type Option func(*Provider)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRequestURI overrides DefaultRequestURI.
func WithRequestURI(uri string) Option {
	return func(p *Provider) { p.requestURI = uri }
}

var (
	_ authkit.Backend    = (*Provider)(nil)
	_ client.TokenSource = (*Provider)(nil)
)

// Provider is a Firebase Authentication client for a single project.
type Provider struct {
	svc        *identitytoolkit.Service
	projectID  string
	store      client.CredentialStore
	logger     *slog.Logger
	requestURI string
	now        func() time.Time

	mu       sync.Mutex
	current  *client.StoredSession
	restored bool
	subs     map[int]*subscriber
	nextID   int
}

// New creates a Provider. Missing configuration is an error.
func New(ctx context.Context, cfg Config, store client.CredentialStore, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = client.NewMemoryStore()
	}

	svcOpts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.HTTPClient != nil {
		base := cfg.HTTPClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc := *cfg.HTTPClient
		hc.Transport = &apiKeyTransport{key: cfg.APIKey, base: base}
		svcOpts = append(svcOpts, option.WithHTTPClient(&hc))
	}
	if cfg.Endpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := identitytoolkit.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("firebase: failed to create identity toolkit client: %w", err)
	}

	p := &Provider{
		svc:        svc,
		projectID:  cfg.ProjectID,
		store:      store,
		logger:     slog.Default(),
		requestURI: DefaultRequestURI,
		now:        time.Now,
		subs:       make(map[int]*subscriber),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// SubscribeAuthState implements authkit.AuthStateSource. The persisted user (or nil)
// is delivered first, asynchronously; every later sign-in and sign-out follows in
// order. A failure to restore the persisted session is reported through onError.
func (p *Provider) SubscribeAuthState(onUser func(*authkit.User), onError func(error)) func() {
	sub := newSubscriber(onUser, onError)
	go sub.run()

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = sub
	if err := p.restoreLocked(); err != nil {
		sub.push(event{err: fmt.Errorf("firebase: restore session: %w", err)})
	} else {
		sub.push(event{user: userFromSession(p.current)})
	}
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
		sub.close()
	}
}

// SignIn signs in with email and password.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*authkit.User, error) {
	resp, err := p.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, providerError(err)
	}
	return p.signedIn(resp.IdToken, resp.RefreshToken, resp.LocalId, resp.Email, "password")
}

// SignUp creates an email/password account and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*authkit.User, error) {
	resp, err := p.svc.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return nil, providerError(err)
	}
	return p.signedIn(resp.IdToken, resp.RefreshToken, resp.LocalId, resp.Email, "password")
}

// SignInWithCredential exchanges a Google or Apple identity token for a Firebase
// session. rawNonce must be the nonce whose hash was given to the Apple prompt.
func (p *Provider) SignInWithCredential(ctx context.Context, provider authkit.OAuthProvider, idToken, rawNonce string) (*authkit.User, error) {
	postBody := url.Values{}
	postBody.Set("id_token", idToken)
	postBody.Set("providerId", string(provider))
	if rawNonce != "" {
		postBody.Set("nonce", rawNonce)
	}

	resp, err := p.svc.Relyingparty.VerifyAssertion(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyAssertionRequest{
		PostBody:          postBody.Encode(),
		RequestUri:        p.requestURI,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, providerError(err)
	}
	if resp.ErrorMessage != "" {
		return nil, &authkit.ProviderError{Code: codeForMessage(resp.ErrorMessage), Err: errors.New(resp.ErrorMessage)}
	}
	if resp.NeedConfirmation {
		return nil, &authkit.ProviderError{Code: "auth/account-exists-with-different-credential"}
	}
	providerID := resp.ProviderId
	if providerID == "" {
		providerID = string(provider)
	}
	return p.signedIn(resp.IdToken, resp.RefreshToken, resp.LocalId, resp.Email, providerID)
}

// SignOut forgets the persisted session and reports a nil user.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.RemoveCredential(p.projectID); err != nil {
		return fmt.Errorf("firebase: failed to remove session: %w", err)
	}
	if err := p.store.Save(); err != nil {
		return fmt.Errorf("firebase: failed to save credentials: %w", err)
	}
	p.current = nil
	p.restored = true
	p.broadcastLocked(nil)
	p.logger.Info("signed out", "project", p.projectID)
	return nil
}

// CurrentUser returns the signed-in user, or nil.
func (p *Provider) CurrentUser() *authkit.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.restoreLocked(); err != nil {
		return nil
	}
	return userFromSession(p.current)
}

// IDToken implements client.TokenSource for the signed-in user. Refreshing an
// expired token is left to the backend SDKs; an expired token is reported as
// auth/id-token-expired.
func (p *Provider) IDToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.restoreLocked(); err != nil {
		return "", err
	}
	if p.current == nil {
		return "", &authkit.ProviderError{Code: "auth/no-current-user"}
	}
	if p.current.ExpiredAt(p.now()) {
		return "", &authkit.ProviderError{Code: "auth/id-token-expired"}
	}
	return p.current.IDToken, nil
}

// Close ends every subscription.
func (p *Provider) Close() {
	p.mu.Lock()
	subs := p.subs
	p.subs = make(map[int]*subscriber)
	p.mu.Unlock()
	for _, s := range subs {
		s.close()
	}
}

func (p *Provider) signedIn(idToken, refreshToken, localID, email, providerID string) (*authkit.User, error) {
	claims, err := parseIDToken(idToken)
	if err != nil {
		return nil, &authkit.ProviderError{Code: "auth/internal-error", Err: err}
	}

	now := p.now()
	sess := &client.StoredSession{
		UserID:       localID,
		Email:        email,
		ProviderID:   providerID,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresAt:    claims.expiry(now.Add(time.Hour)),
		CreatedAt:    now,
	}
	if sess.UserID == "" {
		sess.UserID = claims.UserID
	}
	if sess.Email == "" {
		sess.Email = claims.Email
	}
	if sess.UserID == "" {
		return nil, &authkit.ProviderError{Code: "auth/internal-error", Err: errors.New("backend returned no user id")}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.SetCredential(p.projectID, sess); err != nil {
		p.logger.Warn("failed to persist session", "error", err)
	} else if err := p.store.Save(); err != nil {
		p.logger.Warn("failed to save credentials", "error", err)
	}
	p.current = sess
	p.restored = true

	user := userFromSession(sess)
	p.broadcastLocked(user)
	p.logger.Info("signed in", "user_id", user.ID, "provider", providerID)
	return user, nil
}

func (p *Provider) restoreLocked() error {
	if p.restored {
		return nil
	}
	sess, err := p.store.GetCredential(p.projectID)
	if err != nil {
		return err
	}
	p.current = sess
	p.restored = true
	return nil
}

func (p *Provider) broadcastLocked(u *authkit.User) {
	for _, s := range p.subs {
		var uc *authkit.User
		if u != nil {
			c := *u
			uc = &c
		}
		s.push(event{user: uc})
	}
}

func userFromSession(sess *client.StoredSession) *authkit.User {
	if sess == nil {
		return nil
	}
	return &authkit.User{ID: sess.UserID, Email: sess.Email, ProviderID: sess.ProviderID}
}

// apiKeyTransport adds the key query parameter when a custom HTTP client is used.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	q := req.URL.Query()
	q.Set("key", t.key)
	req.URL.RawQuery = q.Encode()
	return t.base.RoundTrip(req)
}
