package websearch

import (
	"sync"
	"time"
)

type cacheEntry struct {
	response Response
	expiry   time.Time
}

// searchCache is an in-memory TTL cache for search responses.
type searchCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newSearchCache() *searchCache {
	return &searchCache{entries: make(map[string]cacheEntry)}
}

func (c *searchCache) set(key string, resp Response, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{response: resp, expiry: time.Now().Add(ttl)}
}

// get returns the cached response with Cached set, or false when missing or
// expired. Expired entries are dropped on access.
func (c *searchCache) get(key string) (Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Response{}, false
	}
	if time.Now().After(entry.expiry) {
		delete(c.entries, key)
		return Response{}, false
	}

	resp := entry.response
	resp.Cached = true
	return resp, true
}

func (c *searchCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *searchCache) clearExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, key)
		}
	}
}
