package firebase

import (
	"errors"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/pinged/authkit"
)

// restCodes maps Identity Toolkit REST error messages to the client SDK's codes.
var restCodes = map[string]string{
	"EMAIL_NOT_FOUND":             "auth/user-not-found",
	"INVALID_PASSWORD":            "auth/wrong-password",
	"INVALID_LOGIN_CREDENTIALS":   "auth/invalid-credential",
	"INVALID_IDP_RESPONSE":        "auth/invalid-credential",
	"USER_DISABLED":               "auth/user-disabled",
	"TOO_MANY_ATTEMPTS_TRY_LATER": "auth/too-many-requests",
	"EMAIL_EXISTS":                "auth/email-already-in-use",
	"INVALID_EMAIL":               "auth/invalid-email",
	"WEAK_PASSWORD":               "auth/weak-password",
	"DUPLICATE_LOCAL_ID":          "auth/uid-already-exists",
	"TOKEN_EXPIRED":               "auth/id-token-expired",
	"INVALID_ID_TOKEN":            "auth/invalid-user-token",
	"USER_NOT_FOUND":              "auth/user-not-found",
	"OPERATION_NOT_ALLOWED":       "auth/operation-not-allowed",
	"PASSWORD_LOGIN_DISABLED":     "auth/operation-not-allowed",
	"INSUFFICIENT_PERMISSION":     "auth/insufficient-permission",
	"PROJECT_NOT_FOUND":           "auth/project-not-found",
	"CONFIGURATION_NOT_FOUND":     "auth/configuration-not-found",
	"MISSING_OR_INVALID_NONCE":    "auth/missing-or-invalid-nonce",
	"INVALID_API_KEY":             "auth/invalid-api-key",
	"INTERNAL_ERROR":              "auth/internal-error",
}

// networkCode is reported for failures that never reached the backend.
const networkCode = "network-request-failed"

// codeForMessage converts a REST message such as
// "WEAK_PASSWORD : Password should be at least 6 characters" to an auth code.
func codeForMessage(msg string) string {
	name, _, _ := strings.Cut(msg, " : ")
	name = strings.TrimSpace(name)
	if code, ok := restCodes[name]; ok {
		return code
	}
	if name == "" {
		return "auth/internal-error"
	}
	return "auth/" + strings.ReplaceAll(strings.ToLower(name), "_", "-")
}

// providerError converts an Identity Toolkit call failure to an authkit.ProviderError.
func providerError(err error) *authkit.ProviderError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &authkit.ProviderError{Code: codeForMessage(gerr.Message), Err: err}
	}
	// never reached the backend: DNS, refused connection, TLS, deadlines
	return &authkit.ProviderError{Code: networkCode, Err: err}
}
