package loanrules

import (
	"sync"
	"time"
)

// CacheConfig controls how long a loaded rule table is served before the
// underlying store is consulted again.
type CacheConfig struct {
	// TTL is the time-to-live for a cached table.
	// Zero means no expiration; only Invalidate forces a refresh.
	TTL time.Duration
}

// DefaultCacheConfig returns the default caching behavior: no TTL, refresh
// only on explicit invalidation (rule tables change rarely and on purpose).
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}

// CachedStore wraps a RuleSetStore and memoizes Load. It exists so the
// HTTP surface can serve rule listings without hitting the database on
// every request.
type CachedStore struct {
	store  RuleSetStore
	config CacheConfig

	mu       sync.RWMutex
	ruleset  *RuleSet
	cachedAt time.Time
	valid    bool
}

// NewCachedStore wraps store with the given cache behavior.
func NewCachedStore(store RuleSetStore, config CacheConfig) *CachedStore {
	return &CachedStore{store: store, config: config}
}

// Load returns the cached table, refreshing from the underlying store on a
// miss or after expiry.
func (c *CachedStore) Load() (*RuleSet, error) {
	c.mu.RLock()
	if c.valid && !c.expired() {
		rs := c.ruleset
		c.mu.RUnlock()
		return rs, nil
	}
	c.mu.RUnlock()

	rs, err := c.store.Load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.ruleset = rs
	c.cachedAt = time.Now()
	c.valid = true
	c.mu.Unlock()

	return rs, nil
}

// Invalidate clears the cache, forcing a refresh on the next Load.
func (c *CachedStore) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.ruleset = nil
	c.mu.Unlock()
}

// IsValid reports whether the cache holds an unexpired table.
func (c *CachedStore) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.valid && !c.expired()
}

// expired must be called with the lock held.
func (c *CachedStore) expired() bool {
	return c.config.TTL > 0 && time.Since(c.cachedAt) > c.config.TTL
}
