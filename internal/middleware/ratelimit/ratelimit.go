package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter is a fixed-window limiter keyed by client address.
type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	rejected     int64
	now          func() time.Time

	limit           int
	window          time.Duration
	cleanupInterval time.Duration
}

type clientInfo struct {
	windowStart time.Time
	requests    int
}

// Config holds rate limiter configuration
type Config struct {
	Requests        int
	Window          time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig allows 10 attempts per minute, enough for a person
// mistyping a password and too few for guessing one.
func DefaultConfig() Config {
	return Config{
		Requests:        10,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLimiter creates a new rate limiter and starts its cleanup loop.
func NewLimiter(config Config) *Limiter {
	defaults := DefaultConfig()
	if config.Requests <= 0 {
		config.Requests = defaults.Requests
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}

	rl := &Limiter{
		clients:         make(map[string]*clientInfo),
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
		limit:           config.Requests,
		window:          config.Window,
		cleanupInterval: config.CleanupInterval,
	}
	go rl.startCleanup()
	return rl
}

// Allow reports whether key may make another request, and if not, how long
// until its window resets.
func (rl *Limiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, exists := rl.clients[key]
	if !exists || now.Sub(client.windowStart) >= rl.window {
		rl.clients[key] = &clientInfo{windowStart: now, requests: 1}
		return true, 0
	}

	client.requests++
	if client.requests <= rl.limit {
		return true, 0
	}
	atomic.AddInt64(&rl.rejected, 1)
	return false, client.windowStart.Add(rl.window).Sub(now)
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *Limiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key, client := range rl.clients {
		if client.windowStart.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Rejected returns how many requests were refused.
func (rl *Limiter) Rejected() int64 {
	return atomic.LoadInt64(&rl.rejected)
}

// Stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Middleware limits requests by extractKey. When onLimit is nil a plain
// 429 is written.
func (rl *Limiter) Middleware(extractKey func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retryAfter := rl.Allow(extractKey(r))
			if !ok {
				seconds := int(retryAfter.Round(time.Second) / time.Second)
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Demasiados intentos. Intenta de nuevo más tarde.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
