// Package cache holds small in-process caches, such as the category
// catalog, and the loop that expires their entries.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cache is the read-through surface services depend on.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	GetOrLoad(key string, load func() (T, error)) (T, error)
	Delete(key string)
	Size() int
}

// Cleaner is a cache that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically cleans every registered cache.
type Manager struct {
	mu          sync.Mutex
	caches      map[string]Cleaner
	logger      *slog.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
	stopOnce    sync.Once
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		caches:      make(map[string]Cleaner),
		logger:      logger.With("component", "cache"),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a named cache to the cleanup loop.
func (m *Manager) Register(name string, cache Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = cache
}

// StartCleanup begins periodic cleanup of all registered caches.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	go m.cleanup(interval)
}

// CleanNow runs one cleanup pass and returns the number of entries removed.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for name, cache := range m.caches {
		if n := cache.CleanExpired(); n > 0 {
			m.logger.Debug("Expired cache entries removed", "cache", name, "removed", n)
			total += n
		}
	}
	return total
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CleanNow()
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup loop. Safe to call more than once, or without Start.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.cleanupDone
		}
	})
}
