package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	body      []byte
	expiresAt time.Time
}

// MemoryPageCache implements PageCache in process memory. It is used for
// development and tests; expired entries are dropped lazily on read.
type MemoryPageCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryPageCache creates an in-process page cache.
func NewMemoryPageCache() *MemoryPageCache {
	return &MemoryPageCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryPageCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return entry.body, true, nil
}

func (c *MemoryPageCache) Set(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	copied := make([]byte, len(body))
	copy(copied, body)

	c.mu.Lock()
	c.entries[key] = memoryEntry{body: copied, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryPageCache) Close() error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

var _ PageCache = (*MemoryPageCache)(nil)
