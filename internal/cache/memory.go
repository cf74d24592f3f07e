package cache

import (
	"context"
	"path"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog/log"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache keeps entries in a concurrent map and expires them lazily on read
type MemoryCache struct {
	entries *xsync.Map[string, memoryEntry]
	now     func() time.Time
}

// NewMemoryCache creates an empty cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: xsync.NewMap[string, memoryEntry](),
		now:     time.Now,
	}
}

// Init is a no-op
func (c *MemoryCache) Init(ctx context.Context) error {
	return nil
}

// Get returns a fresh entry
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, ok := c.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.entries.Delete(key)
		log.Debug().Str("key", key).Msg("Cache entry expired")
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores value. A zero ttl never expires.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries.Store(key, entry)
	return nil
}

// InvalidatePattern removes matching keys
func (c *MemoryCache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, err
	}

	removed := 0
	c.entries.Range(func(key string, _ memoryEntry) bool {
		if ok, _ := path.Match(pattern, key); ok {
			c.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed, nil
}

// Close is a no-op
func (c *MemoryCache) Close() error {
	return nil
}
