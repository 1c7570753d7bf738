package flagrelay

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"sync"
	"time"
)

// dedupEntry represents an in-flight exchange shared between callers. The
// owner runs the network exchange; waiters block on done and receive the
// same outcome.
type dedupEntry struct {
	data    []byte
	err     error
	done    chan struct{}
	mu      sync.Mutex
	waiters int
}

// DeduplicationTracker coalesces concurrent identical operations onto one
// exchange, so a burst of flag fetches costs a single round trip.
type DeduplicationTracker struct {
	mu      sync.Mutex
	entries map[string]*dedupEntry
}

// NewDeduplicationTracker returns an in-memory de-duplication tracker.
func NewDeduplicationTracker() *DeduplicationTracker {
	return &DeduplicationTracker{
		entries: make(map[string]*dedupEntry),
	}
}

// getOrCreate returns an existing entry (owner=false) or creates a new one
// (owner=true).
func (dt *DeduplicationTracker) getOrCreate(key string) (*dedupEntry, bool) {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if entry, exists := dt.entries[key]; exists {
		entry.mu.Lock()
		entry.waiters++
		entry.mu.Unlock()
		return entry, false
	}

	entry := &dedupEntry{
		done:    make(chan struct{}),
		waiters: 1,
	}
	dt.entries[key] = entry
	return entry, true
}

// complete finalizes an entry and releases waiters. The entry lingers
// briefly so immediate duplicates still coalesce, then is dropped.
func (dt *DeduplicationTracker) complete(key string, data []byte, err error) {
	dt.mu.Lock()
	entry, exists := dt.entries[key]
	dt.mu.Unlock()

	if !exists {
		return
	}

	entry.mu.Lock()
	entry.data = data
	entry.err = err
	close(entry.done)
	entry.mu.Unlock()

	time.AfterFunc(100*time.Millisecond, func() {
		dt.mu.Lock()
		delete(dt.entries, key)
		dt.mu.Unlock()
	})
}

// wait blocks until the owning exchange completes or the context cancels.
func (entry *dedupEntry) wait(ctx context.Context) ([]byte, error) {
	select {
	case <-entry.done:
		entry.mu.Lock()
		data := entry.data
		err := entry.err
		entry.mu.Unlock()
		return data, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DeduplicationKeyFunc builds a key identifying identical in-flight operations.
type DeduplicationKeyFunc func(*http.Request) string

// DefaultDeduplicationKeyFunc keys on method, URL and credential header, so
// requests for different environments never coalesce.
func DefaultDeduplicationKeyFunc(req *http.Request) string {
	h := fnv.New64a()
	h.Write([]byte(req.Method))
	if req.URL != nil {
		h.Write([]byte(req.URL.String()))
	}
	h.Write([]byte(req.Header.Get("X-Environment-Key")))
	return fmt.Sprintf("%x", h.Sum64())
}

// DeduplicationCondition decides whether a request is eligible for coalescing.
type DeduplicationCondition func(req *http.Request) bool

// DefaultDeduplicationCondition coalesces only safe idempotent methods.
func DefaultDeduplicationCondition(req *http.Request) bool {
	return req.Method == http.MethodGet || req.Method == http.MethodHead
}
