package cache

import (
	"context"
	"sync"
	"time"

	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/core"
)

var _ core.ResponseCache = (*MemoryCache)(nil)

// MemoryCache is a process-local TTL cache used when no REDIS_URL is
// configured. Expired entries are reaped lazily on read.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	now   func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.items, key)
		return nil, false
	}
	return e.value, true
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = memoryEntry{value: value, expiresAt: c.now().Add(ttl)}
}
