// Package identitytest provides an in-process fake of the session store
// REST API for tests.
package identitytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	APIKey         = "test-anon-key"
	ServiceRoleKey = "test-service-role-key"
	signingKey     = "identitytest-secret"
)

type account struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Confirmed *time.Time     `json:"email_confirmed_at,omitempty"`
	Metadata  map[string]any `json:"user_metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	password  string
}

// Server is a fake session store. Zero-value fields use defaults.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	accounts    map[string]*account // by email
	refresh     map[string]string   // refresh token -> user id
	revoked     map[string]bool
	calls       map[string]int
	autoConfirm bool
	tokenTTL    time.Duration
	failStatus  int
}

// NewServer starts a fake store. Sign-ups are confirmed immediately unless
// RequireConfirmation is called.
func NewServer() *Server {
	s := &Server{
		accounts:    make(map[string]*account),
		refresh:     make(map[string]string),
		revoked:     make(map[string]bool),
		calls:       make(map[string]int),
		autoConfirm: true,
		tokenTTL:    time.Hour,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", s.handleToken)
	mux.HandleFunc("POST /auth/v1/signup", s.handleSignUp)
	mux.HandleFunc("GET /auth/v1/user", s.handleUser)
	mux.HandleFunc("POST /auth/v1/logout", s.handleLogout)
	mux.HandleFunc("POST /auth/v1/recover", s.handleRecover)
	mux.HandleFunc("GET /auth/v1/admin/users/{id}", s.handleAdminUser)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		fail := s.failStatus
		s.mu.Unlock()

		if r.Header.Get("apikey") == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "No API key found in request"})
			return
		}
		if fail != 0 {
			writeJSON(w, fail, map[string]any{"code": fail, "msg": "upstream failure"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	return s
}

// RequireConfirmation makes new accounts unconfirmed and sign-up return
// the bare user.
func (s *Server) RequireConfirmation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoConfirm = false
}

// SetTokenTTL changes the lifetime of issued access tokens.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = d
}

// FailWith makes every request answer with status. Zero restores service.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
}

// Calls returns how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns the number of requests served.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// AddUser registers an account and returns its id.
func (s *Server) AddUser(email, password string, confirmed bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(email, password, confirmed, nil).ID
}

// DeleteUser removes an account, as an administrator would.
func (s *Server) DeleteUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc := s.byID(id); acc != nil {
		delete(s.accounts, acc.Email)
	}
}

// Session issues a session for an existing account, as a sign-in would.
func (s *Server) Session(email string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[strings.ToLower(email)]
	if acc == nil {
		return nil
	}
	return s.issueLocked(acc)
}

func (s *Server) addLocked(email, password string, confirmed bool, metadata map[string]any) *account {
	acc := &account{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(email),
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
		password:  password,
	}
	if confirmed {
		now := time.Now().UTC()
		acc.Confirmed = &now
	}
	s.accounts[acc.Email] = acc
	return acc
}

func (s *Server) issueLocked(acc *account) map[string]any {
	now := time.Now()
	exp := now.Add(s.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        acc.ID,
		"email":      acc.Email,
		"exp":        exp.Unix(),
		"iat":        now.Unix(),
		"session_id": uuid.NewString(),
	})
	access, _ := token.SignedString([]byte(signingKey))
	refresh := uuid.NewString()
	s.refresh[refresh] = acc.ID

	return map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_in":    int64(s.tokenTTL / time.Second),
		"expires_at":    exp.Unix(),
		"refresh_token": refresh,
		"user":          acc,
	}
}

func (s *Server) byID(id string) *account {
	for _, acc := range s.accounts {
		if acc.ID == id {
			return acc
		}
	}
	return nil
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.URL.Query().Get("grant_type") {
	case "password":
		acc := s.accounts[strings.ToLower(body.Email)]
		if acc == nil || acc.password != body.Password {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "error_code": "invalid_credentials", "msg": "Invalid login credentials"})
			return
		}
		if acc.Confirmed == nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "error_code": "email_not_confirmed", "msg": "Email not confirmed"})
			return
		}
		writeJSON(w, http.StatusOK, s.issueLocked(acc))
	case "refresh_token":
		id, ok := s.refresh[body.RefreshToken]
		acc := s.byID(id)
		if !ok || acc == nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "error_code": "refresh_token_not_found", "msg": "Invalid Refresh Token: Refresh Token Not Found"})
			return
		}
		delete(s.refresh, body.RefreshToken)
		writeJSON(w, http.StatusOK, s.issueLocked(acc))
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type", "error_description": "unsupported grant type"})
	}
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string         `json:"email"`
		Password string         `json:"password"`
		Data     map[string]any `json:"data"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case !strings.Contains(body.Email, "@"):
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "error_code": "validation_failed", "msg": "Unable to validate email address: invalid format"})
		return
	case len(body.Password) < 6:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"code": 422, "error_code": "weak_password", "msg": "Password should be at least 6 characters."})
		return
	case s.accounts[strings.ToLower(body.Email)] != nil:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"code": 422, "error_code": "user_already_exists", "msg": "User already registered"})
		return
	}

	acc := s.addLocked(body.Email, body.Password, s.autoConfirm, body.Data)
	if s.autoConfirm {
		writeJSON(w, http.StatusOK, s.issueLocked(acc))
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) bearerAccount(r *http.Request) *account {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" || s.revoked[raw] {
		return nil
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(signingKey), nil
	})
	if err != nil {
		return nil
	}
	sub, _ := claims.GetSubject()
	return s.byID(sub)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.bearerAccount(r)
	if acc == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "error_code": "bad_jwt", "msg": "invalid JWT: unable to parse or verify signature"})
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bearerAccount(r) == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "error_code": "bad_jwt", "msg": "invalid JWT"})
		return
	}
	s.revoked[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")] = true
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleAdminUser(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+ServiceRoleKey {
		writeJSON(w, http.StatusForbidden, map[string]any{"code": 403, "error_code": "not_admin", "msg": "User not allowed"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.byID(r.PathValue("id"))
	if acc == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"code": 404, "error_code": "user_not_found", "msg": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
