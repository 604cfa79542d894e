package oauth2_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	oauth2lib "golang.org/x/oauth2"

	"github.com/pinged/authkit"
	"github.com/pinged/authkit/oauth2"
)

// mockTokenServer serves the provider's token endpoint.
type mockTokenServer struct {
	server *httptest.Server

	mu      sync.Mutex
	form    url.Values
	idToken string
	fail    bool
}

func newMockTokenServer(t *testing.T) *mockTokenServer {
	m := &mockTokenServer{idToken: "provider-id-token"}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		m.mu.Lock()
		m.form = r.PostForm
		fail := m.fail
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "mock_access_token",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     m.idToken,
		})
	}))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockTokenServer) endpoint() oauth2lib.Endpoint {
	return oauth2lib.Endpoint{
		AuthURL:   "https://provider.example.com/auth",
		TokenURL:  m.server.URL + "/token",
		AuthStyle: oauth2lib.AuthStyleInParams,
	}
}

func (m *mockTokenServer) lastForm() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.form
}

// consent simulates the user's browser: it records the authorization URL and
// delivers the given callback values to the redirect URL.
type consent struct {
	mu       sync.Mutex
	authURL  *url.URL
	values   url.Values
	post     bool
	badState bool
}

func (c *consent) open(ctx context.Context, authURL string) error {
	u, err := url.Parse(authURL)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.authURL = u
	c.mu.Unlock()

	q := u.Query()
	redirect := q.Get("redirect_uri")
	if c.badState {
		resp, err := http.Get(redirect + "?" + url.Values{"state": {"forged"}, "code": {"evil"}}.Encode())
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			return errors.New("forged callback was accepted")
		}
	}

	vals := url.Values{"state": {q.Get("state")}}
	for k, v := range c.values {
		vals[k] = v
	}
	var resp *http.Response
	if c.post {
		resp, err = http.PostForm(redirect, vals)
	} else {
		resp, err = http.Get(redirect + "?" + vals.Encode())
	}
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *consent) query() url.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authURL.Query()
}

func TestGooglePrompt(t *testing.T) {
	t.Run("returns id token", func(t *testing.T) {
		tokens := newMockTokenServer(t)
		c := &consent{values: url.Values{"code": {"good-code"}}}
		flow := oauth2.NewGooglePrompt("web-client", "secret", "", &oauth2.LoopbackReceiver{Open: c.open},
			oauth2.WithEndpoint(tokens.endpoint()))

		idToken, err := flow.Prompt(context.Background(), authkit.PromptRequest{Provider: authkit.ProviderGoogle})
		require.NoError(t, err)
		assert.Equal(t, "provider-id-token", idToken)

		q := c.query()
		assert.Equal(t, "web-client", q.Get("client_id"))
		assert.Equal(t, "openid profile email", q.Get("scope"))
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.NotEmpty(t, q.Get("code_challenge"))
		assert.Empty(t, q.Get("nonce"))

		form := tokens.lastForm()
		assert.Equal(t, "good-code", form.Get("code"))
		assert.NotEmpty(t, form.Get("code_verifier"))
		assert.Equal(t, q.Get("redirect_uri"), form.Get("redirect_uri"))
	})

	t.Run("declined consent is a cancellation", func(t *testing.T) {
		tokens := newMockTokenServer(t)
		c := &consent{values: url.Values{"error": {"access_denied"}}}
		flow := oauth2.NewGooglePrompt("web-client", "secret", "", &oauth2.LoopbackReceiver{Open: c.open},
			oauth2.WithEndpoint(tokens.endpoint()))

		_, err := flow.Prompt(context.Background(), authkit.PromptRequest{})
		assert.ErrorIs(t, err, authkit.ErrCancelled)
	})

	t.Run("provider error", func(t *testing.T) {
		tokens := newMockTokenServer(t)
		c := &consent{values: url.Values{"error": {"invalid_client"}, "error_description": {"unknown client"}}}
		flow := oauth2.NewGooglePrompt("web-client", "secret", "", &oauth2.LoopbackReceiver{Open: c.open},
			oauth2.WithEndpoint(tokens.endpoint()))

		_, err := flow.Prompt(context.Background(), authkit.PromptRequest{})
		var pe *authkit.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "auth/invalid-credential", pe.Code)
	})

	t.Run("failed exchange", func(t *testing.T) {
		tokens := newMockTokenServer(t)
		tokens.fail = true
		c := &consent{values: url.Values{"code": {"stale"}}}
		flow := oauth2.NewGooglePrompt("web-client", "secret", "", &oauth2.LoopbackReceiver{Open: c.open},
			oauth2.WithEndpoint(tokens.endpoint()))

		_, err := flow.Prompt(context.Background(), authkit.PromptRequest{})
		var pe *authkit.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "auth/invalid-credential", pe.Code)
	})
}

func TestApplePrompt(t *testing.T) {
	t.Run("form post with nonce", func(t *testing.T) {
		tokens := newMockTokenServer(t)
		tokens.idToken = "apple-id-token"
		c := &consent{values: url.Values{"code": {"apple-code"}}, post: true}
		flow := oauth2.NewApplePrompt("com.pinged.web", "client-secret-jwt", "", &oauth2.LoopbackReceiver{Open: c.open},
			oauth2.WithEndpoint(tokens.endpoint()))

		idToken, err := flow.Prompt(context.Background(), authkit.PromptRequest{
			Provider:  authkit.ProviderApple,
			NonceHash: "hashed-nonce",
		})
		require.NoError(t, err)
		assert.Equal(t, "apple-id-token", idToken)

		q := c.query()
		assert.Equal(t, "hashed-nonce", q.Get("nonce"))
		assert.Equal(t, "form_post", q.Get("response_mode"))
		assert.Equal(t, "name email", q.Get("scope"))
		assert.Empty(t, q.Get("code_challenge"))
	})

	t.Run("user cancelled", func(t *testing.T) {
		tokens := newMockTokenServer(t)
		c := &consent{values: url.Values{"error": {"user_cancelled_authorize"}}, post: true}
		flow := oauth2.NewApplePrompt("com.pinged.web", "secret", "", &oauth2.LoopbackReceiver{Open: c.open},
			oauth2.WithEndpoint(tokens.endpoint()))

		_, err := flow.Prompt(context.Background(), authkit.PromptRequest{NonceHash: "h"})
		assert.ErrorIs(t, err, authkit.ErrCancelled)
	})
}

func TestLoopbackReceiver_IgnoresForgedState(t *testing.T) {
	tokens := newMockTokenServer(t)
	c := &consent{values: url.Values{"code": {"good-code"}}, badState: true}
	flow := oauth2.NewGooglePrompt("web-client", "secret", "", &oauth2.LoopbackReceiver{Open: c.open},
		oauth2.WithEndpoint(tokens.endpoint()))

	idToken, err := flow.Prompt(context.Background(), authkit.PromptRequest{})
	require.NoError(t, err)
	assert.Equal(t, "provider-id-token", idToken)
	assert.Equal(t, "good-code", tokens.lastForm().Get("code"))
}

func TestLoopbackReceiver_ContextDeadline(t *testing.T) {
	tokens := newMockTokenServer(t)
	flow := oauth2.NewGooglePrompt("web-client", "secret", "", &oauth2.LoopbackReceiver{
		Open: func(context.Context, string) error { return nil },
	}, oauth2.WithEndpoint(tokens.endpoint()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := flow.Prompt(ctx, authkit.PromptRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoopbackReceiver_RequiresOpen(t *testing.T) {
	flow := oauth2.NewGooglePrompt("web-client", "secret", "", &oauth2.LoopbackReceiver{})
	_, err := flow.Prompt(context.Background(), authkit.PromptRequest{})
	assert.Error(t, err)
}

// nonceCheckingProvider accepts an Apple credential only if the raw nonce hashes
// to the value the prompt forwarded.
type nonceCheckingProvider struct {
	forwarded func() string
	gotNonce  string
}

func (p *nonceCheckingProvider) SignIn(context.Context, string, string) (*authkit.User, error) {
	return nil, errors.New("unused")
}

func (p *nonceCheckingProvider) SignUp(context.Context, string, string) (*authkit.User, error) {
	return nil, errors.New("unused")
}

func (p *nonceCheckingProvider) SignInWithCredential(_ context.Context, _ authkit.OAuthProvider, _, rawNonce string) (*authkit.User, error) {
	p.gotNonce = rawNonce
	if authkit.HashNonce(rawNonce) != p.forwarded() {
		return nil, &authkit.ProviderError{Code: "auth/missing-or-invalid-nonce"}
	}
	return &authkit.User{ID: "apple-user"}, nil
}

func (p *nonceCheckingProvider) SignOut(context.Context) error { return nil }

func TestApplePrompt_WithSubmitter(t *testing.T) {
	tokens := newMockTokenServer(t)
	c := &consent{values: url.Values{"code": {"apple-code"}}, post: true}
	flow := oauth2.NewApplePrompt("com.pinged.web", "secret", "", &oauth2.LoopbackReceiver{Open: c.open},
		oauth2.WithEndpoint(tokens.endpoint()))

	provider := &nonceCheckingProvider{forwarded: func() string { return c.query().Get("nonce") }}
	sub := authkit.NewSubmitter(provider, authkit.WithApplePrompt(flow))

	require.NoError(t, sub.SignInWithApple(context.Background()))
	assert.NotEmpty(t, provider.gotNonce)
	assert.NotEqual(t, provider.gotNonce, c.query().Get("nonce"))
}
