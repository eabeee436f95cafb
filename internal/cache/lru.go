package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// LRUCache is a size-bounded cache whose entries also expire after a TTL.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	now     func() time.Time

	loads singleflight.Group
	// invalidations counts Delete calls; a load that overlaps one is not stored.
	invalidations atomic.Uint64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// NewLRUCache creates a cache holding at most maxSize entries for ttl each.
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		c.misses.Add(1)
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if !c.now().Before(item.expiresAt) {
		c.removeElement(elem)
		c.misses.Add(1)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	c.hits.Add(1)
	return item.data, true
}

func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, data)
}

func (c *LRUCache[T]) setLocked(key string, data T) {
	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	c.items[key] = c.lru.PushFront(item)
	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
			c.evictions.Add(1)
		}
	}
}

// GetOrLoad returns the cached value for key, calling load on a miss.
// Concurrent misses for the same key share one load. Load errors are
// returned and not cached, and a result whose load overlapped a Delete is
// returned without being cached.
func (c *LRUCache[T]) GetOrLoad(key string, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	res, err, _ := c.loads.Do(key, func() (any, error) {
		epoch := c.invalidations.Load()
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.invalidations.Load() == epoch {
			c.setLocked(key, v)
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

func (c *LRUCache[T]) Delete(key string) {
	c.loads.Forget(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidations.Add(1)
	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries and returns how many were removed.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if !now.Before(elem.Value.(*cacheItem[T]).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRUCache[T]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.Size(),
	}
}
