package flagrelay

import (
	"sync"
	"time"
)

// CacheConfig is a mutable bag of cache policy parameters plus the handle to
// the underlying response store. Like NetworkConfig, every field is
// independently settable from any goroutine and is re-read on every request.
//
// The store is intended to be a single shared instance: all clients holding
// the same CacheConfig observe the same cache contents.
type CacheConfig struct {
	mu       sync.RWMutex
	useCache bool
	cacheTTL time.Duration
	skipAPI  bool
	store    Cache
}

// NewCacheConfig returns a config with caching disabled, a zero TTL (every
// stored entry is considered stale) and a fresh in-memory store.
func NewCacheConfig() *CacheConfig {
	return &CacheConfig{
		useCache: false,
		cacheTTL: 0,
		skipAPI:  false,
		store:    NewInMemoryCache(),
	}
}

// UseCache reports whether the cache participates in requests at all.
func (cc *CacheConfig) UseCache() bool {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.useCache
}

// SetUseCache enables or disables the cache for subsequent requests.
func (cc *CacheConfig) SetUseCache(v bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.useCache = v
}

// CacheTTL returns the freshness window used for manual validation.
func (cc *CacheConfig) CacheTTL() time.Duration {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.cacheTTL
}

// SetCacheTTL sets the freshness window. Accepted verbatim.
func (cc *CacheConfig) SetCacheTTL(d time.Duration) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cacheTTL = d
}

// SkipAPI reports whether a fresh cached entry short-circuits the network.
func (cc *CacheConfig) SkipAPI() bool {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.skipAPI
}

// SetSkipAPI toggles cache-over-network preference.
func (cc *CacheConfig) SetSkipAPI(v bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.skipAPI = v
}

// Store returns the underlying response cache.
func (cc *CacheConfig) Store() Cache {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.store
}

// SetStore replaces the underlying response cache.
func (cc *CacheConfig) SetStore(store Cache) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.store = store
}

// CacheSettings is an immutable per-request snapshot of a CacheConfig.
type CacheSettings struct {
	UseCache bool
	CacheTTL time.Duration
	SkipAPI  bool
	Store    Cache
}

// Snapshot copies the current field values.
func (cc *CacheConfig) Snapshot() CacheSettings {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return CacheSettings{
		UseCache: cc.useCache,
		CacheTTL: cc.cacheTTL,
		SkipAPI:  cc.skipAPI,
		Store:    cc.store,
	}
}
