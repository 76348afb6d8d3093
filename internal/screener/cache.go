package screener

import (
	"sync"
	"time"

	"confluence-screener/internal/signal"
)

// Cache memoizes screening results for a short TTL so repeated requests
// inside one candle do not re-run the pipeline
type Cache interface {
	Get(key string) (signal.TradableSignal, bool)
	Set(key string, sig signal.TradableSignal)
}

type cachedSignal struct {
	sig       signal.TradableSignal
	expiresAt time.Time
}

// MemoryCache is the default in-process TTL cache
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cachedSignal
	ttl     time.Duration
}

// NewMemoryCache creates a cache with the given TTL
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MemoryCache{
		entries: make(map[string]cachedSignal),
		ttl:     ttl,
	}
}

// Get retrieves a cached signal if present and not expired
func (c *MemoryCache) Get(key string) (signal.TradableSignal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.entries[key]
	if !ok || time.Now().After(cached.expiresAt) {
		return signal.TradableSignal{}, false
	}
	return cached.sig, true
}

// Set stores a signal with the cache TTL
func (c *MemoryCache) Set(key string, sig signal.TradableSignal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cachedSignal{sig: sig, expiresAt: time.Now().Add(c.ttl)}
}

// CleanupExpired removes expired entries; call periodically to bound
// memory
func (c *MemoryCache) CleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, cached := range c.entries {
		if now.After(cached.expiresAt) {
			delete(c.entries, key)
		}
	}
}
