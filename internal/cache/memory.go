package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

// cacheEntry represents a single cache entry with an optional expiry
type cacheEntry struct {
	key       string
	value     []byte
	expiresAt time.Time     // zero means no expiry
	element   *list.Element // For LRU tracking
}

func (e *cacheEntry) isExpired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is an in-process LRU cache with per-entry TTL.
// Thread-safe implementation using sync.RWMutex
type MemoryStore struct {
	mu         sync.RWMutex
	namespace  string
	entries    map[string]*cacheEntry // Key: namespaced key
	lruList    *list.List             // Doubly linked list for LRU tracking
	maxSize    int
	defaultTTL time.Duration
	hits       uint64
	misses     uint64
	now        func() time.Time
}

// NewMemoryStore creates a MemoryStore holding at most maxSize entries
func NewMemoryStore(namespace string, maxSize int, defaultTTL time.Duration) *MemoryStore {
	if maxSize < 1 {
		maxSize = 1
	}
	return &MemoryStore{
		namespace:  namespace,
		entries:    make(map[string]*cacheEntry),
		lruList:    list.New(),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Name returns the backend kind
func (c *MemoryStore) Name() string {
	return "memory"
}

// Get returns a copy of the cached value. Expired entries are removed.
func (c *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keyStr := namespaced(c.namespace, key)
	entry, exists := c.entries[keyStr]

	if !exists || entry.isExpired(c.now()) {
		c.misses++
		if exists {
			c.removeEntry(keyStr)
		}
		return nil, false, nil
	}

	// Move to front (most recently used)
	c.lruList.MoveToFront(entry.element)
	c.hits++

	return cloneBytes(entry.value), true, nil
}

// Set stores a copy of value
func (c *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keyStr := namespaced(c.namespace, key)
	var expiresAt time.Time
	if d := effectiveTTL(ttl, c.defaultTTL); d > 0 {
		expiresAt = c.now().Add(d)
	}

	if entry, exists := c.entries[keyStr]; exists {
		entry.value = cloneBytes(value)
		entry.expiresAt = expiresAt
		c.lruList.MoveToFront(entry.element)
		return nil
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		key:       keyStr,
		value:     cloneBytes(value),
		expiresAt: expiresAt,
	}
	entry.element = c.lruList.PushFront(keyStr)
	c.entries[keyStr] = entry

	return nil
}

// Delete removes a specific cache entry
func (c *MemoryStore) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(namespaced(c.namespace, key))
	return nil
}

// Clear removes every entry in the namespace
func (c *MemoryStore) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := namespaced(c.namespace, "")
	for keyStr := range c.entries {
		if strings.HasPrefix(keyStr, prefix) {
			c.removeEntry(keyStr)
		}
	}
	return nil
}

// Ping always succeeds
func (c *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close drops all entries
func (c *MemoryStore) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.lruList.Init()
	return nil
}

// Stats returns cache statistics
func (c *MemoryStore) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: c.calculateHitRate(),
	}
}

// Stats represents cache statistics
type Stats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func (c *MemoryStore) calculateHitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// removeEntry must be called with lock held
func (c *MemoryStore) removeEntry(keyStr string) {
	if entry, exists := c.entries[keyStr]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, keyStr)
	}
}

// evictLRU must be called with lock held
func (c *MemoryStore) evictLRU() {
	backElement := c.lruList.Back()
	if backElement == nil {
		return
	}
	keyStr := backElement.Value.(string)
	c.lruList.Remove(backElement)
	delete(c.entries, keyStr)
}

// CleanupExpired removes all expired entries and returns how many it removed
func (c *MemoryStore) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for keyStr, entry := range c.entries {
		if entry.isExpired(now) {
			c.removeEntry(keyStr)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker periodically removes expired entries until ctx is done
func (c *MemoryStore) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-ctx.Done():
			return
		}
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
