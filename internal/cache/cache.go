package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dpup/prefab/logging"
)

// Cache keeps upstream response bodies in memory in front of an optional persistent Store.
// Entries never expire: a run that finds a body reuses it.
type Cache struct {
	entries map[string]*CacheEntry
	store   Store
	mutex   sync.RWMutex

	hits   int
	misses int
}

// CacheEntry represents a cached body with metadata
type CacheEntry struct {
	Key       string
	Data      []byte
	CreatedAt time.Time
	Source    string
}

// NewCache creates a cache backed by store. A nil store keeps everything in memory.
func NewCache(store Store) *Cache {
	return &Cache{
		entries: make(map[string]*CacheEntry),
		store:   store,
	}
}

// Get returns the body stored under key, consulting the persistent store on a memory miss
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mutex.RLock()
	entry, exists := c.entries[key]
	c.mutex.RUnlock()

	if exists {
		c.record(true)
		return entry.Data, true, nil
	}

	if c.store == nil {
		c.record(false)
		return nil, false, nil
	}

	data, found, err := c.store.Get(key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %q from store: %w", key, err)
	}
	if !found {
		c.record(false)
		return nil, false, nil
	}

	logging.Debugw(ctx, "cache: loaded from store", "key", key, "bytes", len(data))
	c.remember(key, data, "store")
	c.record(true)
	return data, true, nil
}

// Set stores data under key in memory and in the persistent store
func (c *Cache) Set(ctx context.Context, key string, data []byte, source string) error {
	if c.store != nil {
		if err := c.store.Put(key, data); err != nil {
			return fmt.Errorf("failed to write %q to store: %w", key, err)
		}
	}
	c.remember(key, data, source)
	logging.Debugw(ctx, "cache: stored", "key", key, "source", source, "bytes", len(data))
	return nil
}

// Close releases the persistent store
func (c *Cache) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := CacheStats{
		TotalEntries: len(c.entries),
		Hits:         c.hits,
		Misses:       c.misses,
	}

	for _, entry := range c.entries {
		if stats.OldestEntry.IsZero() || entry.CreatedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = entry.CreatedAt
		}
		if entry.CreatedAt.After(stats.NewestEntry) {
			stats.NewestEntry = entry.CreatedAt
		}
	}

	return stats
}

func (c *Cache) remember(key string, data []byte, source string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = &CacheEntry{
		Key:       key,
		Data:      data,
		CreatedAt: time.Now(),
		Source:    source,
	}
}

func (c *Cache) record(hit bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

// CacheStats provides cache usage statistics
type CacheStats struct {
	TotalEntries int
	Hits         int
	Misses       int
	OldestEntry  time.Time
	NewestEntry  time.Time
}
