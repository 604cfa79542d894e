package oauth2

import (
	"golang.org/x/oauth2"

	"github.com/pinged/authkit"
)

// AppleEndpoint is Sign in with Apple's OAuth 2.0 endpoint.
var AppleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://appleid.apple.com/auth/authorize",
	TokenURL:  "https://appleid.apple.com/auth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// NewApplePrompt creates the Apple sign-in prompt. The SHA-256 nonce hash from
// the PromptRequest is sent as the nonce parameter so it ends up in the id_token.
// clientSecret is the signed client secret JWT for serviceID.
func NewApplePrompt(serviceID, clientSecret, redirectURL string, receiver Receiver, opts ...FlowOption) *Flow {
	f := newFlow(authkit.ProviderApple, oauth2.Config{
		ClientID:     serviceID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"name", "email"},
		Endpoint:     AppleEndpoint,
	}, receiver, opts)
	f.cancelErrors = append(f.cancelErrors, "user_cancelled_authorize")
	f.extraParams = func(req authkit.PromptRequest) []oauth2.AuthCodeOption {
		params := []oauth2.AuthCodeOption{
			// required by Apple whenever scopes are requested
			oauth2.SetAuthURLParam("response_mode", "form_post"),
		}
		if req.NonceHash != "" {
			params = append(params, oauth2.SetAuthURLParam("nonce", req.NonceHash))
		}
		return params
	}
	return f
}
