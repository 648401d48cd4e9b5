// Package cache implements the two-tier Cache Core (spec component C2):
// a local bounded LRU plus a remote distributed tier, selected and
// composed by Service according to the configured consistency mode.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LocalCache is a bounded in-memory LRU. Per spec section 4.2, local is
// intended for static reference data and carries no TTL unless an entry
// explicitly sets one — a zero or negative ttl passed to Set means
// infinite (the Open Question decision: local is static/infinite-TTL by
// default, not invalidated on writes). Adapted from the teacher's
// MemoryCache (container/list LRU + map + per-item TTL + wildcard
// Clear(pattern)).
type LocalCache struct {
	mu          sync.RWMutex
	items       map[string]*cacheItem
	lruList     *list.List
	maxItems    int
	maxMemory   int64
	currentSize int64

	hits      int64
	misses    int64
	evictions int64

	logger *zap.Logger
}

type cacheItem struct {
	key        string
	value      []byte
	size       int64
	expiry     time.Time
	hasExpiry  bool
	lruElement *list.Element
}

func NewLocalCache(maxItems int, maxMemory int64, logger *zap.Logger) *LocalCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalCache{
		items:     make(map[string]*cacheItem),
		lruList:   list.New(),
		maxItems:  maxItems,
		maxMemory: maxMemory,
		logger:    logger,
	}
}

func (c *LocalCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		c.misses++
		return nil, false, nil
	}

	if item.hasExpiry && time.Now().After(item.expiry) {
		c.removeItem(item)
		c.misses++
		return nil, false, nil
	}

	c.lruList.MoveToFront(item.lruElement)
	c.hits++

	value := make([]byte, len(item.value))
	copy(value, item.value)
	return value, true, nil
}

// Set stores a value. ttl <= 0 means the entry never expires on its own
// (eviction is still possible under memory/item-count pressure).
func (c *LocalCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	itemSize := int64(len(key) + len(value))
	if c.maxMemory > 0 && itemSize > c.maxMemory {
		c.logger.Warn("item too large for local cache",
			zap.String("key", key),
			zap.Int64("size", itemSize),
			zap.Int64("max_memory", c.maxMemory),
		)
		return nil
	}

	if existing, exists := c.items[key]; exists {
		c.removeItem(existing)
	}

	for (c.maxMemory > 0 && c.currentSize+itemSize > c.maxMemory || len(c.items) >= c.maxItems) && c.lruList.Len() > 0 {
		oldest := c.lruList.Back()
		if oldest == nil {
			break
		}
		c.removeItem(oldest.Value.(*cacheItem))
		c.evictions++
	}

	item := &cacheItem{
		key:   key,
		value: make([]byte, len(value)),
		size:  itemSize,
	}
	if ttl > 0 {
		item.hasExpiry = true
		item.expiry = time.Now().Add(ttl)
	}
	copy(item.value, value)

	element := c.lruList.PushFront(item)
	item.lruElement = element

	c.items[key] = item
	c.currentSize += itemSize
	return nil
}

func (c *LocalCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[key]; exists {
		c.removeItem(item)
	}
	return nil
}

// Clear removes every item whose key matches pattern, an exact key or a
// trailing-wildcard prefix (spec section 4.2's "key patterns").
func (c *LocalCache) Clear(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	toDelete := make([]*cacheItem, 0)
	for key, item := range c.items {
		if matchPattern(key, pattern) {
			toDelete = append(toDelete, item)
		}
	}
	for _, item := range toDelete {
		c.removeItem(item)
	}

	c.logger.Info("cleared local cache entries",
		zap.String("pattern", pattern),
		zap.Int("count", len(toDelete)),
	)
	return nil
}

func (c *LocalCache) removeItem(item *cacheItem) {
	if item.lruElement != nil {
		c.lruList.Remove(item.lruElement)
	}
	delete(c.items, item.key)
	c.currentSize -= item.size
}

func (c *LocalCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hitRate := 0.0
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Items:     len(c.items),
		Size:      c.currentSize,
		HitRate:   hitRate,
	}
}

type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Items     int
	Size      int64
	HitRate   float64
}

// matchPattern supports an exact key or a trailing "*" wildcard
// (e.g. "orders:paged:*"), per spec section 4.2's key-pattern rule.
func matchPattern(str, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(str) >= len(prefix) && str[:len(prefix)] == prefix
	}
	return str == pattern
}

func (c *LocalCache) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.cleanupExpired()
			}
		}
	}()
}

func (c *LocalCache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	toRemove := make([]*cacheItem, 0)
	for _, item := range c.items {
		if item.hasExpiry && now.After(item.expiry) {
			toRemove = append(toRemove, item)
		}
	}
	for _, item := range toRemove {
		c.removeItem(item)
	}
	if len(toRemove) > 0 {
		c.logger.Debug("cleaned up expired local cache items", zap.Int("count", len(toRemove)))
	}
}
