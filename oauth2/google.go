package oauth2

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/pinged/authkit"
)

// NewGooglePrompt creates the Google sign-in prompt. clientID is the web client ID
// registered for the Firebase project, so the resulting id_token is accepted by
// verifyAssertion.
func NewGooglePrompt(clientID, clientSecret, redirectURL string, receiver Receiver, opts ...FlowOption) *Flow {
	f := newFlow(authkit.ProviderGoogle, oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     google.Endpoint,
	}, receiver, opts)
	f.pkce = true
	return f
}
