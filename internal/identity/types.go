// Package identity is a client for the hosted session store (a
// GoTrue-compatible REST API). It issues and refreshes sessions, keeps them
// in a pluggable SessionStorage and notifies subscribers of every change.
package identity

import "time"

// User is the account as reported by the session store.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Session is an issued token pair. ExpiresAt is a unix timestamp in seconds.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// Expiry returns the access token expiry, or the zero time when unknown.
func (s *Session) Expiry() time.Time {
	if s == nil || s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// SignUpResult holds what account creation returned. Session is nil when
// the store requires email confirmation before the first sign-in.
type SignUpResult struct {
	User    *User
	Session *Session
}

// Event names the kind of session change.
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// StateChange is delivered to subscribers in the order changes happened.
// Session is nil for EventSignedOut.
type StateChange struct {
	Event   Event
	Session *Session
}
