// Package guard redirects navigation requests based on authentication
// state and route classification.
package guard

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"finora/internal/identity"
)

// Class is the kind of route a path belongs to.
type Class int

const (
	Public Class = iota
	Protected
	AuthOnly
)

func (c Class) String() string {
	switch c {
	case Protected:
		return "protected"
	case AuthOnly:
		return "auth_only"
	default:
		return "public"
	}
}

// Rules lists route prefixes and redirect targets.
type Rules struct {
	Protected     []string
	AuthOnly      []string
	LoginPath     string
	DashboardPath string
}

// DefaultRules returns the application's route table.
func DefaultRules() Rules {
	return Rules{
		Protected:     []string{"/dashboard", "/transactions", "/debts", "/goals", "/subscriptions", "/profile"},
		AuthOnly:      []string{"/login", "/register", "/forgot-password"},
		LoginPath:     "/login",
		DashboardPath: "/dashboard",
	}
}

// MatchPrefix reports whether p is prefix itself or below it, so
// "/debts" matches "/debts" and "/debts/42" but not "/debts-archive".
func MatchPrefix(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// Classify returns the class of p. Protected wins if a path is listed twice.
func (r Rules) Classify(p string) Class {
	for _, prefix := range r.Protected {
		if MatchPrefix(p, prefix) {
			return Protected
		}
	}
	for _, prefix := range r.AuthOnly {
		if MatchPrefix(p, prefix) {
			return AuthOnly
		}
	}
	return Public
}

var excludedPrefixes = []string{"/static/", "/images/"}

var excludedExts = map[string]bool{
	".svg": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".ico": true,
}

// Excluded reports whether p bypasses the guard: static assets, image paths
// and the operational probes.
func Excluded(p string) bool {
	switch p {
	case "/favicon.ico", "/healthz", "/readyz":
		return true
	}
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return excludedExts[strings.ToLower(path.Ext(p))]
}

// Authenticator resolves the user behind a request. It may refresh the
// session, writing cookies to w and mirroring them onto r.
type Authenticator interface {
	Authenticate(w http.ResponseWriter, r *http.Request) (*identity.User, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(w http.ResponseWriter, r *http.Request) (*identity.User, error)

func (f AuthenticatorFunc) Authenticate(w http.ResponseWriter, r *http.Request) (*identity.User, error) {
	return f(w, r)
}

type contextKey struct{}

// WithUser returns ctx carrying user.
func WithUser(ctx context.Context, user *identity.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the user the guard resolved, or nil.
func UserFromContext(ctx context.Context) *identity.User {
	user, _ := ctx.Value(contextKey{}).(*identity.User)
	return user
}

// Guard is the route guard middleware.
type Guard struct {
	auth   Authenticator
	rules  Rules
	logger *slog.Logger
}

// New creates a guard.
func New(auth Authenticator, rules Rules, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{auth: auth, rules: rules, logger: logger.With("component", "guard")}
}

// Middleware returns HTTP middleware enforcing the rules.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		user, err := g.auth.Authenticate(w, r)
		if err != nil {
			// Fail closed: an unreachable store means no user.
			level := slog.LevelWarn
			if s := identity.StatusCode(err); s == http.StatusUnauthorized || s == http.StatusForbidden {
				level = slog.LevelDebug
			}
			g.logger.Log(r.Context(), level, "Session check failed, treating request as unauthenticated",
				"path", r.URL.Path, "error", err)
			user = nil
		}

		switch class := g.rules.Classify(r.URL.Path); {
		case class == Protected && user == nil:
			target := *r.URL
			target.Path = g.rules.LoginPath
			target.RawPath = ""
			target.RawQuery = url.Values{"redirect": {r.URL.Path}}.Encode()
			g.logger.Debug("Redirecting unauthenticated request", "path", r.URL.Path, "route", class.String())
			http.Redirect(w, r, target.RequestURI(), http.StatusTemporaryRedirect)
			return
		case class == AuthOnly && user != nil:
			target := *r.URL
			target.Path = g.rules.DashboardPath
			target.RawPath = ""
			g.logger.Debug("Redirecting authenticated request", "path", r.URL.Path, "user_id", user.ID)
			http.Redirect(w, r, target.RequestURI(), http.StatusTemporaryRedirect)
			return
		}

		if user != nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}
