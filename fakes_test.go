package authkit

import (
	"context"
	"sync"
)

// fakeSource is an in-memory AuthStateSource
type fakeSource struct {
	mu            sync.Mutex
	subscribes    int
	unsubscribes  int
	onUser        func(*User)
	onError       func(error)
	emitOnSubFunc func(onUser func(*User), onError func(error))
}

func (f *fakeSource) SubscribeAuthState(onUser func(*User), onError func(error)) func() {
	f.mu.Lock()
	f.subscribes++
	f.onUser = onUser
	f.onError = onError
	hook := f.emitOnSubFunc
	f.mu.Unlock()
	if hook != nil {
		hook(onUser, onError)
	}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribes++
	}
}

func (f *fakeSource) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes - f.unsubscribes
}

func (f *fakeSource) emit(u *User) {
	f.mu.Lock()
	fn := f.onUser
	f.mu.Unlock()
	fn(u)
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	fn := f.onError
	f.mu.Unlock()
	fn(err)
}

// fakeProvider records every call made against it
type fakeProvider struct {
	mu    sync.Mutex
	calls []providerCall
	err   error

	// observed while the call is running
	inFlightDuringCall bool
	submitter          *Submitter
}

type providerCall struct {
	method   string
	email    string
	password string
	provider OAuthProvider
	idToken  string
	nonce    string
}

func (f *fakeProvider) record(c providerCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.submitter != nil {
		f.inFlightDuringCall = f.submitter.InFlight()
	}
	return f.err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) SignIn(ctx context.Context, email, password string) (*User, error) {
	if err := f.record(providerCall{method: "SignIn", email: email, password: password}); err != nil {
		return nil, err
	}
	return &User{ID: "uid-" + email, Email: email, ProviderID: "password"}, nil
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password string) (*User, error) {
	if err := f.record(providerCall{method: "SignUp", email: email, password: password}); err != nil {
		return nil, err
	}
	return &User{ID: "uid-" + email, Email: email, ProviderID: "password"}, nil
}

func (f *fakeProvider) SignInWithCredential(ctx context.Context, provider OAuthProvider, idToken, rawNonce string) (*User, error) {
	if err := f.record(providerCall{method: "SignInWithCredential", provider: provider, idToken: idToken, nonce: rawNonce}); err != nil {
		return nil, err
	}
	return &User{ID: "uid-oauth", ProviderID: string(provider)}, nil
}

func (f *fakeProvider) SignOut(ctx context.Context) error {
	return f.record(providerCall{method: "SignOut"})
}

// fakeNavigator records Replace calls and moves its location accordingly
type fakeNavigator struct {
	location string
	replaces []string
}

func (n *fakeNavigator) CurrentLocation() string { return n.location }

func (n *fakeNavigator) Replace(path string) {
	n.replaces = append(n.replaces, path)
	n.location = path
}

// fakePrompt returns a canned token or error and remembers the request
type fakePrompt struct {
	idToken string
	err     error
	got     []PromptRequest
}

func (p *fakePrompt) Prompt(ctx context.Context, req PromptRequest) (string, error) {
	p.got = append(p.got, req)
	return p.idToken, p.err
}

// codedError mimics an SDK error that exposes its code
type codedError struct{ code string }

func (e codedError) Error() string     { return "sdk error " + e.code }
func (e codedError) ErrorCode() string { return e.code }
