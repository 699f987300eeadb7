package store

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// volatileCache is a process-lifetime TTL cache.
//
// A read past expiry removes the entry before reporting a miss.
type volatileCache struct {
	mu    sync.Mutex
	cache *gocache.Cache
	ttl   time.Duration
}

func newVolatileCache(ttl time.Duration) *volatileCache {
	return &volatileCache{
		cache: gocache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (c *volatileCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, found := c.cache.Get(key); found {
		return v, true
	}
	c.cache.Delete(key)
	return nil, false
}

// Set stores v for ttl, or the cache default when ttl <= 0.
func (c *volatileCache) Set(key string, v any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Set(key, v, ttl)
}

func (c *volatileCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Delete(key)
}

func (c *volatileCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Flush()
}

// ItemCount includes expired entries that have not been read or cleaned up yet.
func (c *volatileCache) ItemCount() int {
	return c.cache.ItemCount()
}
