package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) IDToken(ctx context.Context) (string, error) {
	return s.token, s.err
}

func TestNewHTTPClient_AddsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	httpClient := NewHTTPClient(staticTokens{token: "id-token-123"}, WithHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	if httpClient.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", httpClient.Timeout)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/me", nil)
	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer id-token-123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer id-token-123")
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("original request was mutated")
	}
}

func TestNewHTTPClient_FailsWithoutToken(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	signedOut := errors.New("no user signed in")
	httpClient := NewHTTPClient(staticTokens{err: signedOut})

	_, err := httpClient.Get(server.URL)
	if !errors.Is(err, signedOut) {
		t.Errorf("Get() error = %v, want %v", err, signedOut)
	}
	if calls != 0 {
		t.Errorf("server called %d times, want 0", calls)
	}
}

type countingTransport struct {
	calls int
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls++
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusOK)
	return rec.Result(), nil
}

func TestNewHTTPClient_WithTransport(t *testing.T) {
	base := &countingTransport{}
	httpClient := NewHTTPClient(staticTokens{token: "t"}, WithTransport(base))

	resp, err := httpClient.Get("http://example.invalid/")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()
	if base.calls != 1 {
		t.Errorf("base transport calls = %d, want 1", base.calls)
	}
}
