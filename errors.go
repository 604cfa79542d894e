package authkit

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCancelled is returned when the user dismisses a native sign-in prompt.
	// It is not a failure: callers reset their UI and show nothing.
	ErrCancelled = errors.New("sign-in cancelled by user")

	// ErrAppleUnavailable is returned when Apple sign-in is requested on a device
	// without an Apple prompt.
	ErrAppleUnavailable = errors.New("apple sign-in is not available on this device")
)

// NormalizedError is the title/message pair shown to the user for a failed action.
type NormalizedError struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

const (
	DefaultErrorTitle   = "Unknown Error"
	DefaultErrorMessage = "Something went wrong, please try again."

	authCodePrefix = "auth/"
)

var errorTable = map[string]NormalizedError{
	// Credentials & access
	"auth/invalid-credential": {"Login Failed", "Invalid email or password. Please try again."},
	"auth/user-not-found":     {"Account Not Found", "No account exists with this email address."},
	"auth/wrong-password":     {"Wrong Password", "The password you entered is incorrect."},
	"auth/user-disabled":      {"Account Disabled", "This account has been disabled by an administrator."},
	"auth/too-many-requests":  {"Too Many Attempts", "Access to this account has been temporarily disabled due to many failed login attempts. Reset your password or try again later."},

	// Registration & updates
	"auth/email-already-exists": {"Email in Use", "This email is already registered. Please sign in instead."},
	"auth/email-already-in-use": {"Email in Use", "This email is already registered. Please sign in instead."},
	"auth/invalid-email":        {"Invalid Email", "The email address format is not valid."},
	"auth/weak-password":        {"Weak Password", "The password is too weak. Please use at least 6 characters."},
	"auth/uid-already-exists":   {"ID Conflict", "A user with this unique identifier already exists."},

	// Sessions & tokens
	"auth/id-token-expired":       {"Session Expired", "Your login session has expired. Please sign in again."},
	"auth/id-token-revoked":       {"Access Revoked", "Your session has been revoked. Please sign in again."},
	"auth/session-cookie-expired": {"Session Expired", "Your session cookie has expired."},

	// Administrative & config
	"auth/operation-not-allowed":   {"Action Restricted", "This sign-in method is not enabled for this project."},
	"auth/claims-too-large":        {"Data Limit Exceeded", "The profile data is too large to save."},
	"auth/insufficient-permission": {"Permission Denied", "You do not have permission to perform this action."},
	"auth/project-not-found":       {"Configuration Error", "No Firebase project was found for the current configuration."},
	"auth/internal-error":          {"Server Error", "The authentication server encountered an unexpected error."},

	// Network
	"network-request-failed": {"No Connection", "Please check your internet connection and try again."},
}

var appleUnavailable = NormalizedError{"Not Available", "Apple Sign-In is only available on iOS devices."}

// Normalize maps a provider error code to a user facing title and message.
// It never fails: unknown codes get a generic message with a family-specific title.
func Normalize(code string) NormalizedError {
	if ne, ok := errorTable[code]; ok {
		return ne
	}
	title := DefaultErrorTitle
	if strings.HasPrefix(code, authCodePrefix) {
		title = "Authentication Error"
	} else if strings.Contains(code, "network") {
		title = "Connection Error"
	}
	return NormalizedError{Title: title, Message: DefaultErrorMessage}
}

// NormalizeError normalizes any error returned by a submission or provider call.
// Errors without a code get the generic default.
func NormalizeError(err error) NormalizedError {
	if errors.Is(err, ErrAppleUnavailable) {
		return appleUnavailable
	}
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		return Normalize(coded.ErrorCode())
	}
	return Normalize("")
}

// ProviderError is a failure reported by the identity backend.
type ProviderError struct {
	Code string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity provider: %s: %v", e.Code, e.Err)
	}
	return "identity provider: " + e.Code
}

func (e *ProviderError) Unwrap() error     { return e.Err }
func (e *ProviderError) ErrorCode() string { return e.Code }

// Alert returns the normalized title/message for this error.
func (e *ProviderError) Alert() NormalizedError { return Normalize(e.Code) }

// Field names used in FieldError.
const (
	FieldEmail        = "email"
	FieldPassword     = "password"
	FieldConfirmation = "confirmation"
)

// Reason is the category of a local validation failure.
type Reason string

const (
	ReasonRequired      Reason = "required"
	ReasonInvalidFormat Reason = "invalid_format"
	ReasonTooShort      Reason = "too_short"
	ReasonMismatch      Reason = "mismatch"
)

// FieldError is a single field-scoped validation failure.
type FieldError struct {
	Field  string `json:"field"`
	Reason Reason `json:"reason"`
}

// Message is the inline text for the failure.
func (f FieldError) Message() string {
	switch f.Reason {
	case ReasonRequired:
		return "Please fill in all fields."
	case ReasonInvalidFormat:
		return "Please enter a valid email address."
	case ReasonTooShort:
		return fmt.Sprintf("Password must be at least %d characters long.", MinPasswordLength)
	case ReasonMismatch:
		return "Passwords do not match."
	}
	return DefaultErrorMessage
}

// FieldErrors is returned by Submit when local validation rejects a request.
// No provider call is made in that case.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + string(f.Reason)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// For returns the error for a field, if any.
func (fe FieldErrors) For(field string) (FieldError, bool) {
	for _, f := range fe {
		if f.Field == field {
			return f, true
		}
	}
	return FieldError{}, false
}
