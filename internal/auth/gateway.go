// Package auth turns session store responses into application auth state.
//
// A Gateway is scoped to one session holder (typically one HTTP exchange).
// It subscribes to the store's change notifications on Start and applies
// them, in arrival order, from a single reducer goroutine until Stop.
package auth

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"finora/internal/core"
	"finora/internal/identity"
)

// SessionStore is the part of the identity client the gateway uses.
type SessionStore interface {
	Subscribe() (<-chan identity.StateChange, func())
	GetSession(ctx context.Context) (*identity.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*identity.SignUpResult, error)
	SignOut(ctx context.Context) error
}

// ProfileStore reads and creates profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*core.Profile, error)
	CreateProfile(ctx context.Context, p *core.Profile) error
}

// State is a snapshot of the gateway's view of the session holder.
type State struct {
	User    *identity.User
	Profile *core.Profile
	Session *identity.Session
	Loading bool
}

// Authenticated reports whether a user is signed in.
func (s State) Authenticated() bool { return s.User != nil }

type command struct {
	apply func(ctx context.Context, s *State)
	ack   chan struct{}
}

// Gateway wraps a SessionStore and a ProfileStore.
type Gateway struct {
	store    SessionStore
	profiles ProfileStore
	logger   *slog.Logger

	mu    sync.RWMutex
	state State

	started     atomic.Bool
	ctx         context.Context
	cancel      context.CancelFunc
	cmds        chan command
	stop        chan struct{}
	done        chan struct{}
	unsubscribe func()
	stopOnce    sync.Once
}

// New creates a gateway in the loading state.
func New(store SessionStore, profiles ProfileStore, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		store:    store,
		profiles: profiles,
		logger:   logger.With("component", "auth"),
		state:    State{Loading: true},
		cmds:     make(chan command),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start loads the existing session and its profile, then begins applying
// store notifications. Store failures leave the gateway unauthenticated.
// Start must be called at most once.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(context.WithoutCancel(ctx))

	changes, unsubscribe := g.store.Subscribe()
	g.unsubscribe = unsubscribe

	initial := State{}
	session, err := g.store.GetSession(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "Failed to read session, continuing unauthenticated", "error", err)
	}
	if session != nil && session.User != nil {
		initial.Session = session
		initial.User = session.User
		initial.Profile = g.fetchProfile(ctx, session.User.ID)
	}
	g.setState(initial)

	g.started.Store(true)
	go g.run(changes)
}

// Stop unsubscribes from the store and waits for the reducer to exit.
func (g *Gateway) Stop() {
	if !g.started.Load() {
		return
	}
	g.stopOnce.Do(func() {
		g.unsubscribe()
		close(g.stop)
		<-g.done
		g.cancel()
	})
}

// State returns a snapshot of the current state.
func (g *Gateway) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Gateway) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

func (g *Gateway) run(changes <-chan identity.StateChange) {
	defer close(g.done)
	for {
		select {
		case <-g.stop:
			return
		case change := <-changes:
			g.apply(change)
		case cmd := <-g.cmds:
			s := g.State()
			cmd.apply(g.ctx, &s)
			g.setState(s)
			close(cmd.ack)
		}
	}
}

// apply resynchronises state with a notification. The latest notification
// wins and the profile is refetched on every one of them.
func (g *Gateway) apply(change identity.StateChange) {
	if change.Event == identity.EventSignedOut || change.Session == nil || change.Session.User == nil {
		g.setState(State{})
		g.logger.Debug("Session cleared", "event", change.Event)
		return
	}

	next := State{Session: change.Session, User: change.Session.User}
	next.Profile = g.fetchProfile(g.ctx, next.User.ID)
	g.setState(next)
	g.logger.Debug("Session updated", "event", change.Event, "user_id", next.User.ID)
}

// submit runs fn as the single state writer: on the reducer while it runs,
// inline otherwise.
func (g *Gateway) submit(ctx context.Context, fn func(ctx context.Context, s *State)) {
	if g.started.Load() {
		cmd := command{apply: fn, ack: make(chan struct{})}
		select {
		case g.cmds <- cmd:
			<-cmd.ack
			return
		case <-g.done:
		}
	}
	g.mu.Lock()
	fn(ctx, &g.state)
	g.mu.Unlock()
}

func (g *Gateway) fetchProfile(ctx context.Context, userID string) *core.Profile {
	p, err := g.profiles.GetProfile(ctx, userID)
	if err != nil {
		g.logger.WarnContext(ctx, "Profile fetch failed, continuing without profile", "user_id", userID, "error", err)
		return nil
	}
	return p
}

// SignIn checks credentials with the store. On success state follows
// through the store notification, not through this call.
func (g *Gateway) SignIn(ctx context.Context, email, password string) *Error {
	email = strings.TrimSpace(email)
	if _, err := g.store.SignInWithPassword(ctx, email, password); err != nil {
		aerr := Classify(err)
		g.logger.InfoContext(ctx, "Sign-in failed", "kind", aerr.Kind, "error", err)
		return aerr
	}
	return nil
}

// SignUp creates an account and its profile. Passwords shorter than
// MinPasswordLength are refused without contacting the store. A profile
// insert failure after the account exists is logged and not reported: the
// identity is left without a profile.
func (g *Gateway) SignUp(ctx context.Context, email, password, name string) *Error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &Error{Kind: KindWeakPassword, Message: "La contraseña debe tener al menos 8 caracteres."}
	}

	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	var metadata map[string]any
	if name != "" {
		metadata = map[string]any{"name": name}
	}

	res, err := g.store.SignUp(ctx, email, password, metadata)
	if err != nil {
		aerr := Classify(err)
		g.logger.InfoContext(ctx, "Sign-up failed", "kind", aerr.Kind, "error", err)
		return aerr
	}
	if res == nil || res.User == nil {
		return nil
	}

	profile := core.NewProfile(res.User.ID, name)
	if err := g.profiles.CreateProfile(ctx, &profile); err != nil {
		g.logger.ErrorContext(ctx, "Profile creation failed after sign-up",
			"user_id", res.User.ID,
			"orphaned_identity", true,
			"error", err)
		return nil
	}
	g.logger.InfoContext(ctx, "User registered", "user_id", res.User.ID)
	return nil
}

// SignOut ends the session with the store and resets state immediately,
// without waiting for the notification. The store error is returned.
func (g *Gateway) SignOut(ctx context.Context) error {
	err := g.store.SignOut(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "Sign-out request failed, clearing local state", "error", err)
	}
	g.submit(ctx, func(_ context.Context, s *State) {
		*s = State{}
	})
	return err
}

// RefreshProfile refetches the current user's profile. No-op without a user.
func (g *Gateway) RefreshProfile(ctx context.Context) {
	g.submit(ctx, func(ctx context.Context, s *State) {
		if s.User == nil {
			return
		}
		s.Profile = g.fetchProfile(ctx, s.User.ID)
	})
}
