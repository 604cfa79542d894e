package firebase

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// idTokenClaims are the Firebase ID token claims the client reads. The token is
// not verified here; that is the backend's job.
type idTokenClaims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Firebase struct {
		SignInProvider string `json:"sign_in_provider"`
	} `json:"firebase"`
	jwt.RegisteredClaims
}

func parseIDToken(token string) (*idTokenClaims, error) {
	claims := &idTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("malformed id token: %w", err)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}

func (c *idTokenClaims) expiry(fallback time.Time) time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return fallback
}
