package http

import (
	"net/http"

	"finora/internal/auth"
	"finora/internal/identity"
	"finora/internal/middleware/guard"
)

// identityClient returns a session store client whose session lives in the
// cookies of this exchange.
func (s *Server) identityClient(w http.ResponseWriter, r *http.Request) *identity.Client {
	cfg := s.identity
	cfg.Storage = identity.NewCookieStorage(w, r, s.secureCookies)
	cfg.Logger = s.logger.Logger
	return identity.NewClient(cfg)
}

// authenticate resolves the request's user for the route guard, validating
// the access token with the store and refreshing it when close to expiry.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*identity.User, error) {
	return s.identityClient(w, r).GetUser(r.Context())
}

// startGateway starts an auth gateway scoped to this exchange. Callers must
// Stop it.
func (s *Server) startGateway(w http.ResponseWriter, r *http.Request) (*auth.Gateway, *identity.Client) {
	client := s.identityClient(w, r)
	gw := auth.New(client, s.repo, s.logger.Logger)
	gw.Start(r.Context())
	return gw, client
}

// currentUser returns the user the guard resolved. Protected routes never
// run without one, so a missing user is answered with 401.
func currentUser(w http.ResponseWriter, r *http.Request) (*identity.User, bool) {
	user := guard.UserFromContext(r.Context())
	if user == nil {
		UnauthorizedError("No autenticado").Write(w)
		return nil, false
	}
	return user, true
}
