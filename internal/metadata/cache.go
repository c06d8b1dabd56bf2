package metadata

import (
	"sync"
	"time"

	"github.com/pickrr/pickrr/internal/request"
)

type cacheKey struct {
	catalogID int64
	kind      request.MediaKind
}

type cacheEntry struct {
	media   *Media
	expires time.Time
}

type cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
	ttl     time.Duration
}

func newCache(ttl time.Duration) *cache {
	return &cache{
		entries: make(map[cacheKey]cacheEntry),
		ttl:     ttl,
	}
}

func (c *cache) get(catalogID int64, kind request.MediaKind) (*Media, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey{catalogID, kind}]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.media, true
}

func (c *cache) set(catalogID int64, kind request.MediaKind, m *Media) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey{catalogID, kind}] = cacheEntry{
		media:   m,
		expires: time.Now().Add(c.ttl),
	}
}
