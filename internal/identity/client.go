package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// refreshMargin is how close to expiry a token is refreshed before use.
const refreshMargin = 10 * time.Second

// Config configures a Client.
type Config struct {
	URL            string
	APIKey         string
	ServiceRoleKey string
	Storage        SessionStorage
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// Client talks to the session store on behalf of one session holder.
type Client struct {
	baseURL    string
	apiKey     string
	serviceKey string
	storage    SessionStorage
	http       *http.Client
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

type subscriber struct {
	ch   chan StateChange
	done chan struct{}
}

// NewClient creates a session store client. Storage defaults to memory.
func NewClient(cfg Config) *Client {
	storage := cfg.Storage
	if storage == nil {
		storage = NewMemoryStorage()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/") + "/auth/v1",
		apiKey:     cfg.APIKey,
		serviceKey: cfg.ServiceRoleKey,
		storage:    storage,
		http:       httpClient,
		logger:     logger.With("component", "identity"),
		now:        time.Now,
		subs:       make(map[int]*subscriber),
	}
}

// Subscribe registers for session changes. Changes are delivered in order;
// a subscriber that stops reading without unsubscribing stalls the client.
// The returned function unsubscribes and may be called more than once.
func (c *Client) Subscribe() (<-chan StateChange, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	sub := &subscriber{ch: make(chan StateChange, 16), done: make(chan struct{})}
	c.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(sub.done)
		})
	}
}

func (c *Client) emit(event Event, session *Session) {
	c.mu.Lock()
	subs := make([]*subscriber, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	change := StateChange{Event: event, Session: session}
	for _, s := range subs {
		select {
		case s.ch <- change:
		case <-s.done:
		}
	}
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"password"}}, c.apiKey, body, &session); err != nil {
		return nil, err
	}
	if err := c.persist(&session); err != nil {
		return nil, err
	}
	c.logger.Debug("Signed in", "user_id", userID(&session))
	c.emit(EventSignedIn, &session)
	return &session, nil
}

// SignUp requests account creation. Metadata is stored on the account.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*SignUpResult, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/signup", nil, c.apiKey, body, &raw); err != nil {
		return nil, err
	}

	// With autoconfirm the store answers with a session, otherwise with the
	// bare user awaiting confirmation.
	var probe struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}

	if probe.AccessToken == "" {
		var user User
		if err := json.Unmarshal(raw, &user); err != nil {
			return nil, fmt.Errorf("decode signup user: %w", err)
		}
		return &SignUpResult{User: &user}, nil
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode signup session: %w", err)
	}
	if err := c.persist(&session); err != nil {
		return nil, err
	}
	c.emit(EventSignedIn, &session)
	return &SignUpResult{User: session.User, Session: &session}, nil
}

// GetSession returns the stored session, refreshing it first when the access
// token is about to expire. A session the store refuses to refresh is
// cleared and reported as absent.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	session, err := c.storage.Load()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if exp := session.Expiry(); exp.IsZero() || exp.Sub(c.now()) > refreshMargin {
		return session, nil
	}

	refreshed, err := c.refresh(ctx, session.RefreshToken)
	if err != nil {
		var ierr *Error
		if errors.As(err, &ierr) && ierr.IsClientError() {
			c.logger.Debug("Refresh rejected, clearing session", "status", ierr.Status, "code", ierr.Code)
			c.clearLocal()
			return nil, nil
		}
		return nil, err
	}
	return refreshed, nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, &Error{Status: http.StatusUnauthorized, Code: "refresh_token_not_found", Message: "missing refresh token"}
	}
	var session Session
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"refresh_token"}}, c.apiKey, body, &session); err != nil {
		return nil, err
	}
	if err := c.persist(&session); err != nil {
		return nil, err
	}
	c.emit(EventTokenRefreshed, &session)
	return &session, nil
}

// GetUser validates the current session with the store and returns its
// user, or nil when there is no session. A token the store rejects clears
// the stored session.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	session, err := c.GetSession(ctx)
	if err != nil || session == nil {
		return nil, err
	}

	var user User
	if err := c.do(ctx, http.MethodGet, "/user", nil, session.AccessToken, nil, &user); err != nil {
		if s := StatusCode(err); s == http.StatusUnauthorized || s == http.StatusForbidden {
			c.clearLocal()
		}
		return nil, err
	}
	return &user, nil
}

// SignOut revokes the session remotely and always clears it locally. The
// remote error, if any, is returned after the local state is gone.
func (c *Client) SignOut(ctx context.Context) error {
	session, _ := c.storage.Load()

	var remoteErr error
	if session != nil && session.AccessToken != "" {
		remoteErr = c.do(ctx, http.MethodPost, "/logout", nil, session.AccessToken, nil, nil)
		// An already revoked token is the desired end state.
		if s := StatusCode(remoteErr); s == http.StatusUnauthorized || s == http.StatusNotFound {
			remoteErr = nil
		}
	}

	c.clearLocal()
	return remoteErr
}

// ResetPasswordForEmail asks the store to send a recovery email.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	var query url.Values
	if redirectTo != "" {
		query = url.Values{"redirect_to": {redirectTo}}
	}
	return c.do(ctx, http.MethodPost, "/recover", query, c.apiKey, map[string]string{"email": email}, nil)
}

// AdminGetUser looks a user up with the service role key.
func (c *Client) AdminGetUser(ctx context.Context, id string) (*User, error) {
	if c.serviceKey == "" {
		return nil, ErrNoServiceRoleKey
	}
	var user User
	if err := c.doWithKey(ctx, http.MethodGet, "/admin/users/"+url.PathEscape(id), nil, c.serviceKey, c.serviceKey, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserExists reports whether the store still holds the account. Like
// AdminGetUser it needs the service role key.
func (c *Client) UserExists(ctx context.Context, id string) (bool, error) {
	_, err := c.AdminGetUser(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case StatusCode(err) == http.StatusNotFound:
		return false, nil
	}
	return false, err
}

func (c *Client) persist(s *Session) error {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = c.now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
	if s.User == nil {
		if claims, err := parseAccessToken(s.AccessToken); err == nil {
			s.User = claims.user()
		}
	}
	if err := c.storage.Save(s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (c *Client) clearLocal() {
	if err := c.storage.Clear(); err != nil {
		c.logger.Warn("Failed to clear session storage", "error", err)
	}
	c.emit(EventSignedOut, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, in, out any) error {
	return c.doWithKey(ctx, method, path, query, c.apiKey, bearer, in, out)
}

func (c *Client) doWithKey(ctx context.Context, method, path string, query url.Values, apiKey, bearer string, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func userID(s *Session) string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}
