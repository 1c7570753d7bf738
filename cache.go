package flagrelay

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"sort"
	"sync"
	"time"
)

// CacheEntry is a stored response: body bytes plus the metadata needed for
// manual freshness validation (the Date response header in particular).
type CacheEntry struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	StoredAt   time.Time
}

// Cache is the response store, keyed by request identity. Implementations
// must be safe for concurrent use; a single instance is typically shared by
// every client in the process.
type Cache interface {
	Lookup(key string) (*CacheEntry, bool)
	Store(key string, entry *CacheEntry)
	Evict(key string)
	Clear()
	Len() int
}

// InMemoryCache is the default store: fnv-sharded maps under RWMutexes.
type InMemoryCache struct {
	shards    []*cacheShard
	numShards int
}

type cacheShard struct {
	mu    sync.RWMutex
	store map[string]*CacheEntry
}

// NewInMemoryCache creates an empty in-memory store.
func NewInMemoryCache() *InMemoryCache {
	numShards := 16
	shards := make([]*cacheShard, numShards)
	for i := range shards {
		shards[i] = &cacheShard{
			store: make(map[string]*CacheEntry),
		}
	}
	return &InMemoryCache{
		shards:    shards,
		numShards: numShards,
	}
}

func (c *InMemoryCache) getShard(key string) *cacheShard {
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return c.shards[hash.Sum32()%uint32(c.numShards)]
}

// Lookup returns the entry for key, if present. Freshness is the caller's
// concern: entries do not expire on their own.
func (c *InMemoryCache) Lookup(key string) (*CacheEntry, bool) {
	shard := c.getShard(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	entry, exists := shard.store[key]
	return entry, exists
}

// Store inserts or replaces the entry for key.
func (c *InMemoryCache) Store(key string, entry *CacheEntry) {
	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	shard.store[key] = entry
}

// Evict removes the entry for key, if present.
func (c *InMemoryCache) Evict(key string) {
	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	delete(shard.store, key)
}

// Clear removes all entries.
func (c *InMemoryCache) Clear() {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*CacheEntry)
		shard.mu.Unlock()
	}
}

// Len returns the total number of stored entries.
func (c *InMemoryCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.store)
		shard.mu.RUnlock()
	}
	return total
}

// cacheKeyForRequest derives the request identity used as the cache key:
// method, full URL and the request headers, so two requests that differ only
// in a credential or an additional header occupy distinct entries. Headers
// must already be merged into the request when the key is computed.
func cacheKeyForRequest(req *http.Request) string {
	h := fnv.New64a()
	h.Write([]byte(req.Method))
	h.Write([]byte{0})
	if req.URL != nil {
		h.Write([]byte(req.URL.String()))
	}

	names := make([]string, 0, len(req.Header))
	for name := range req.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.Write([]byte{0})
		h.Write([]byte(name))
		for _, v := range req.Header[name] {
			h.Write([]byte{1})
			h.Write([]byte(v))
		}
	}

	return fmt.Sprintf("%x", h.Sum64())
}

// entryDate extracts and parses the entry's Date response header. The second
// return is false when the header is missing or matches no supported grammar,
// in which case the entry is treated as not validly cached.
func entryDate(entry *CacheEntry) (time.Time, bool) {
	if entry == nil || entry.Header == nil {
		return time.Time{}, false
	}
	return parseHTTPDate(entry.Header.Get("Date"))
}

// entryIsFresh reports whether the entry's age, measured from its Date
// header, is within ttl.
func entryIsFresh(entry *CacheEntry, ttl time.Duration, now time.Time) bool {
	date, ok := entryDate(entry)
	if !ok {
		return false
	}
	return now.Sub(date) < ttl
}
