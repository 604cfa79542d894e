package authkit

import "context"

// User is the signed-in account as reported by the identity provider.
type User struct {
	ID         string
	Email      string
	ProviderID string // "password", "google.com", "apple.com"
}

// AuthStateSource is a push-based stream of "current user" changes.
//
// onUser is called with nil when nobody is signed in. onError reports a failure of
// the stream itself; after it fires no further emissions are expected. The returned
// function releases the subscription.
type AuthStateSource interface {
	SubscribeAuthState(onUser func(*User), onError func(error)) (unsubscribe func())
}

// IdentityProvider is the credential side of the identity backend. Failures must
// carry a provider error code (see ProviderError).
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (*User, error)
	SignUp(ctx context.Context, email, password string) (*User, error)
	SignInWithCredential(ctx context.Context, provider OAuthProvider, idToken, rawNonce string) (*User, error)
	SignOut(ctx context.Context) error
}

// Backend is what a full identity provider adapter (e.g. firebase.Provider) offers.
type Backend interface {
	AuthStateSource
	IdentityProvider
}
