package cache

import (
	"strings"
	"sync"
	"time"
)

// Cache is an in-memory store with per-item TTL and LRU eviction. The
// web services memoize warehouse reads here (catalog listings, user and
// role inventories) and invalidate by prefix whenever a write lands.
type Cache struct {
	mu          sync.RWMutex
	items       map[string]*item
	lru         *lruList
	maxItems    int
	defaultTTL  time.Duration
	stats       *Stats
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

type item struct {
	key       string
	value     interface{}
	createdAt time.Time
	ttl       time.Duration
	node      *lruNode
}

// Stats tracks cache effectiveness.
type Stats struct {
	mu        sync.RWMutex
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
	ItemCount int64
}

// Config contains cache configuration.
type Config struct {
	MaxItems        int
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible cache defaults.
func DefaultConfig() Config {
	return Config{
		MaxItems:        1024,
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// New creates a cache and starts its expiry sweeper.
func New(config Config) *Cache {
	if config.MaxItems <= 0 {
		config.MaxItems = 1024
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}

	c := &Cache{
		items:       make(map[string]*item),
		lru:         &lruList{},
		maxItems:    config.MaxItems,
		defaultTTL:  config.DefaultTTL,
		stats:       &Stats{},
		stopCleanup: make(chan struct{}),
	}

	go c.cleanupRoutine(config.CleanupInterval)

	return c
}

// Key joins parts into a cache key. Writes invalidate by the leading
// part, so related entries share a prefix ("catalog:ANALYTICS:PUBLIC").
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Get retrieves an item, reporting whether it was present and fresh.
// The item's fields are copied out under the lock; SetWithTTL mutates
// items in place, so they must never be read unlocked.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	it, exists := c.items[key]
	var (
		value   interface{}
		expired bool
	)
	if exists {
		value = it.value
		expired = it.expired()
	}
	c.mu.RUnlock()

	if !exists {
		c.stats.recordMiss()
		return nil, false
	}

	if expired {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur == it {
			c.removeItem(key)
		}
		c.mu.Unlock()
		c.stats.recordExpired()
		c.stats.recordMiss()
		return nil, false
	}

	c.mu.Lock()
	if cur, ok := c.items[key]; ok && cur == it {
		c.lru.moveToFront(it.node)
	}
	c.mu.Unlock()

	c.stats.recordHit()
	return value, true
}

// Set stores a value under the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with an explicit lifetime. A zero TTL means
// the item never expires (it can still be evicted).
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.items[key]; exists {
		existing.value = value
		existing.createdAt = time.Now()
		existing.ttl = ttl
		c.lru.moveToFront(existing.node)
		return
	}

	for len(c.items) >= c.maxItems && c.lru.size > 0 {
		evictKey := c.lru.removeTail()
		c.removeItem(evictKey)
		c.stats.recordEviction()
	}

	it := &item{
		key:       key,
		value:     value,
		createdAt: time.Now(),
		ttl:       ttl,
	}
	it.node = c.lru.addToFront(key)
	c.items[key] = it
	c.stats.updateCount(int64(len(c.items)))
}

// Delete removes an item, reporting whether it existed.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; exists {
		c.removeItem(key)
		return true
	}
	return false
}

// InvalidatePrefix drops every entry whose key starts with prefix and
// returns how many were removed.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []string
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			toRemove = append(toRemove, key)
		}
	}
	for _, key := range toRemove {
		c.removeItem(key)
	}
	return len(toRemove)
}

// Clear removes all items.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*item)
	c.lru = &lruList{}
	c.stats.updateCount(0)
}

// GetStats returns a snapshot of cache statistics.
func (c *Cache) GetStats() Stats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return Stats{
		Hits:      c.stats.Hits,
		Misses:    c.stats.Misses,
		Evictions: c.stats.Evictions,
		Expired:   c.stats.Expired,
		ItemCount: c.stats.ItemCount,
	}
}

// Stop terminates the expiry sweeper.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
}

// removeItem removes an item without locking (caller must hold lock)
func (c *Cache) removeItem(key string) {
	if it, exists := c.items[key]; exists {
		c.lru.remove(it.node)
		delete(c.items, key)
		c.stats.updateCount(int64(len(c.items)))
	}
}

// cleanupRoutine periodically removes expired items
func (c *Cache) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

// cleanupExpired removes all expired items
func (c *Cache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []string
	for key, it := range c.items {
		if it.expired() {
			toRemove = append(toRemove, key)
		}
	}

	for _, key := range toRemove {
		c.removeItem(key)
		c.stats.recordExpired()
	}
}

func (it *item) expired() bool {
	if it.ttl == 0 {
		return false
	}
	return time.Since(it.createdAt) > it.ttl
}

// LRU list methods

type lruList struct {
	head *lruNode
	tail *lruNode
	size int
}

type lruNode struct {
	key  string
	prev *lruNode
	next *lruNode
}

func (l *lruList) addToFront(key string) *lruNode {
	node := &lruNode{key: key}

	if l.head == nil {
		l.head = node
		l.tail = node
	} else {
		node.next = l.head
		l.head.prev = node
		l.head = node
	}

	l.size++
	return node
}

func (l *lruList) moveToFront(node *lruNode) {
	if node == l.head {
		return
	}

	// Remove from current position
	if node.prev != nil {
		node.prev.next = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	}
	if node == l.tail {
		l.tail = node.prev
	}

	// Move to front
	node.prev = nil
	node.next = l.head
	l.head.prev = node
	l.head = node
}

func (l *lruList) remove(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}

	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}

	l.size--
}

func (l *lruList) removeTail() string {
	if l.tail == nil {
		return ""
	}

	key := l.tail.key
	l.remove(l.tail)
	return key
}

// Stats methods

func (s *Stats) recordHit() {
	s.mu.Lock()
	s.Hits++
	s.mu.Unlock()
}

func (s *Stats) recordMiss() {
	s.mu.Lock()
	s.Misses++
	s.mu.Unlock()
}

func (s *Stats) recordEviction() {
	s.mu.Lock()
	s.Evictions++
	s.mu.Unlock()
}

func (s *Stats) recordExpired() {
	s.mu.Lock()
	s.Expired++
	s.mu.Unlock()
}

func (s *Stats) updateCount(items int64) {
	s.mu.Lock()
	s.ItemCount = items
	s.mu.Unlock()
}

// HitRate returns the percentage of lookups served from cache.
func (s *Stats) HitRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}
