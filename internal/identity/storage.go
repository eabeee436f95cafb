package identity

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
)

// SessionStorage persists the current session between calls.
type SessionStorage interface {
	Load() (*Session, error)
	Save(*Session) error
	Clear() error
}

// MemoryStorage keeps the session in process memory.
type MemoryStorage struct {
	mu      sync.Mutex
	session *Session
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

func (m *MemoryStorage) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.session = &cp
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

// DefaultCookieName is the cookie holding the encoded session.
const DefaultCookieName = "finora-session"

// cookiePayload is what goes into the cookie; the user is rebuilt from the
// access token claims on load so the cookie stays small.
type cookiePayload struct {
	AccessToken  string `json:"a"`
	RefreshToken string `json:"r"`
	ExpiresAt    int64  `json:"e"`
}

// CookieStorage binds a session to one HTTP exchange. Writes go to the
// response and are mirrored onto the request so handlers further down the
// chain observe the refreshed session.
type CookieStorage struct {
	w      http.ResponseWriter
	r      *http.Request
	name   string
	secure bool
}

// NewCookieStorage returns storage bound to w and r.
func NewCookieStorage(w http.ResponseWriter, r *http.Request, secure bool) *CookieStorage {
	return &CookieStorage{w: w, r: r, name: DefaultCookieName, secure: secure}
}

func (c *CookieStorage) Load() (*Session, error) {
	cookie, err := c.r.Cookie(c.name)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	return decodeSessionCookie(cookie.Value)
}

func (c *CookieStorage) Save(s *Session) error {
	value, err := encodeSessionCookie(s)
	if err != nil {
		return err
	}
	c.write(&http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		MaxAge:   60 * 60 * 24 * 30,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (c *CookieStorage) Clear() error {
	c.write(&http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (c *CookieStorage) write(cookie *http.Cookie) {
	// Only the last write of this exchange reaches the browser.
	prefix := c.name + "="
	headers := c.w.Header()
	var kept []string
	for _, v := range headers.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	headers.Del("Set-Cookie")
	for _, v := range kept {
		headers.Add("Set-Cookie", v)
	}
	http.SetCookie(c.w, cookie)

	var parts []string
	for _, existing := range c.r.Cookies() {
		if existing.Name != c.name {
			parts = append(parts, existing.Name+"="+existing.Value)
		}
	}
	if cookie.MaxAge >= 0 && cookie.Value != "" {
		parts = append(parts, c.name+"="+cookie.Value)
	}
	if len(parts) == 0 {
		c.r.Header.Del("Cookie")
	} else {
		c.r.Header.Set("Cookie", strings.Join(parts, "; "))
	}
}

func encodeSessionCookie(s *Session) (string, error) {
	data, err := json.Marshal(cookiePayload{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
	})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeSessionCookie(value string) (*Session, error) {
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		// A tampered or legacy cookie is treated as no session.
		return nil, nil
	}
	var p cookiePayload
	if err := json.Unmarshal(data, &p); err != nil || p.AccessToken == "" {
		return nil, nil
	}
	s := &Session{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresAt:    p.ExpiresAt,
		TokenType:    "bearer",
	}
	if claims, err := parseAccessToken(p.AccessToken); err == nil {
		s.User = claims.user()
		if s.ExpiresAt == 0 && claims.ExpiresAt != nil {
			s.ExpiresAt = claims.ExpiresAt.Unix()
		}
	}
	return s, nil
}
