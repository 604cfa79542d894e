package authkit

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf16"
)

// MinPasswordLength is the shortest password accepted before calling the provider.
const MinPasswordLength = 6

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Mode selects between signing in to an existing account and creating one.
type Mode int

const (
	ModeSignIn Mode = iota
	ModeSignUp
)

func (m Mode) String() string {
	if m == ModeSignUp {
		return "signup"
	}
	return "signin"
}

// OAuthProvider names an external identity provider by its Firebase provider ID.
type OAuthProvider string

const (
	ProviderGoogle OAuthProvider = "google.com"
	ProviderApple  OAuthProvider = "apple.com"
)

// Request is a single credential submission. It is one of EmailPassword or OAuthToken.
type Request interface {
	credential()
}

// EmailPassword carries user-entered credentials. Confirmation is only checked in
// ModeSignUp.
type EmailPassword struct {
	Email        string
	Password     string
	Confirmation string
	Mode         Mode
}

// OAuthToken carries an identity token obtained from a native Google or Apple prompt.
// Nonce is the raw nonce whose hash was given to the prompt (Apple only).
type OAuthToken struct {
	Provider OAuthProvider
	IDToken  string
	Nonce    string
}

func (EmailPassword) credential() {}
func (OAuthToken) credential()    {}

// ValidateEmailPassword runs the local checks in order: required fields, email format,
// password length, and (for sign up) confirmation. It stops at the first failing
// category and reports at most one error per field. A nil result means the request
// may be sent to the provider.
func ValidateEmailPassword(req EmailPassword) FieldErrors {
	var errs FieldErrors
	if strings.TrimSpace(req.Email) == "" {
		errs = append(errs, FieldError{Field: FieldEmail, Reason: ReasonRequired})
	}
	if strings.TrimSpace(req.Password) == "" {
		errs = append(errs, FieldError{Field: FieldPassword, Reason: ReasonRequired})
	}
	if len(errs) > 0 {
		return errs
	}

	if !emailRegex.MatchString(req.Email) || strings.IndexFunc(req.Email, unicode.IsSpace) >= 0 {
		return FieldErrors{{Field: FieldEmail, Reason: ReasonInvalidFormat}}
	}

	if passwordLength(req.Password) < MinPasswordLength {
		return FieldErrors{{Field: FieldPassword, Reason: ReasonTooShort}}
	}

	if req.Mode == ModeSignUp && req.Password != req.Confirmation {
		return FieldErrors{{Field: FieldConfirmation, Reason: ReasonMismatch}}
	}
	return nil
}

// passwordLength counts UTF-16 code units, so a character outside the Basic
// Multilingual Plane counts as two.
func passwordLength(password string) int {
	n := 0
	for _, r := range password {
		n += utf16.RuneLen(r)
	}
	return n
}
