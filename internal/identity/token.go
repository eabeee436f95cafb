package identity

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// accessClaims are the access-token claims the client relies on. Tokens are
// parsed without verification: the store stays the authority through
// GetUser, the claims only drive refresh timing and cookie rehydration.
type accessClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

func parseAccessToken(token string) (*accessClaims, error) {
	claims := &accessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return claims, nil
}

func (c *accessClaims) user() *User {
	if c.Subject == "" {
		return nil
	}
	return &User{ID: c.Subject, Email: c.Email, UserMetadata: c.UserMetadata}
}
