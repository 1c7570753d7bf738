package flagrelay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the hosted flag API endpoint.
const DefaultBaseURL = "https://edge.api.flagrelay.io/api/v1/"

// DataCallback receives an operation's raw response bytes or its error.
type DataCallback func(data []byte, err error)

// CompletionCallback receives only an operation's terminal error, if any.
type CompletionCallback func(err error)

// updatedAtHeader is an application-specific bookkeeping header carrying the
// unix timestamp of the last flag document change.
const updatedAtHeader = "X-Flags-Updated-At"

// Client is the request orchestrator: it owns the current transport session,
// the base URL and credential, and the table of in-flight operations. It
// consults the injected NetworkConfig and CacheConfig on every call, decides
// the per-request cache policy, issues the exchange, and demultiplexes
// asynchronous completion back to the right caller. It is safe for
// concurrent use.
type Client struct {
	netConfig   *NetworkConfig
	cacheConfig *CacheConfig
	builder     RequestBuilder
	unmarshaler Unmarshaler

	// Scalar state domain. A write excludes all reads for its duration;
	// a configuration change is observed by the next dispatched operation,
	// never by operations already in flight.
	mu             sync.RWMutex
	baseURL        string
	credential     string
	session        *session
	lastFlagUpdate time.Time

	pending     *pendingTable
	completions *completionQueue

	dedup          *DeduplicationTracker
	dedupKeyFunc   DeduplicationKeyFunc
	dedupCondition DeduplicationCondition

	limiter *rate.Limiter
	metrics *MetricsCollector
	debug   *DebugConfig
	logger  Logger
}

// New constructs a Client using the provided functional options.
func New(options ...Option) *Client {
	client := &Client{
		netConfig:      NewNetworkConfig(),
		cacheConfig:    NewCacheConfig(),
		builder:        defaultRequestBuilder{},
		unmarshaler:    jsonUnmarshaler{},
		baseURL:        DefaultBaseURL,
		pending:        newPendingTable(),
		completions:    newCompletionQueue(),
		dedupKeyFunc:   DefaultDeduplicationKeyFunc,
		dedupCondition: DefaultDeduplicationCondition,
		debug:          DefaultDebugConfig(),
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// SetBaseURL replaces the API base URL for subsequent requests. The value is
// stored verbatim; a malformed URL surfaces as a construction error on the
// next request.
func (c *Client) SetBaseURL(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = raw
}

// BaseURL returns the current API base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetCredential replaces the API credential for subsequent requests.
func (c *Client) SetCredential(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credential = key
}

// Credential returns the current API credential.
func (c *Client) Credential() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credential
}

// NetworkConfig returns the live network configuration consulted on every
// dispatch. Mutations apply to the next request.
func (c *Client) NetworkConfig() *NetworkConfig {
	return c.netConfig
}

// CacheConfig returns the live cache configuration consulted on every dispatch.
func (c *Client) CacheConfig() *CacheConfig {
	return c.cacheConfig
}

// LastFlagUpdate returns the most recent flag-document update timestamp seen
// in a response, or the zero time when none was observed.
func (c *Client) LastFlagUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastFlagUpdate
}

// Close stops the completion goroutine after draining queued callbacks.
// Operations still in flight when Close is called will not deliver.
func (c *Client) Close() {
	c.completions.close()
}

// RequestData performs the operation and delivers the raw response bytes.
// The callback fires exactly once, on the client's completion goroutine.
func (c *Client) RequestData(op Operation, fn DataCallback) {
	c.do(op, func(data []byte, err error) bool {
		fn(data, err)
		return false
	})
}

// Request performs the operation and delivers only its terminal error.
func (c *Client) Request(op Operation, fn CompletionCallback) {
	c.do(op, func(data []byte, err error) bool {
		fn(err)
		return err == nil
	})
}

// RequestJSON performs the operation and decodes the response into v. A
// decode failure surfaces as a Decode error wrapping the parse failure; no
// partial value is delivered.
func (c *Client) RequestJSON(op Operation, v interface{}, fn CompletionCallback) {
	c.do(op, func(data []byte, err error) bool {
		if err != nil {
			fn(err)
			return false
		}
		if derr := c.unmarshaler.Unmarshal(data, v); derr != nil {
			fn(&ClientError{
				Type:      ErrorTypeDecode,
				Message:   "response did not match expected shape",
				Cause:     derr,
				Timestamp: time.Now(),
			})
			return false
		}
		fn(nil)
		return true
	})
}

// cachePolicy is the per-request cache directive chosen before dispatch.
type cachePolicy int

const (
	// policyBypass: cache disabled, no read and no write.
	policyBypass cachePolicy = iota
	// policyProtocol: network contacted, opportunistic backfill allowed.
	policyProtocol
	// policyReload: stale entry evicted, full reload forced.
	policyReload
)

// cacheContext carries the request's cache identity into terminal delivery
// so a successful decode can backfill the store.
type cacheContext struct {
	key      string
	settings CacheSettings
	eligible bool
}

// outcomeFunc consumes the terminal result and reports whether the bytes
// decoded successfully and are therefore eligible for cache backfill.
type outcomeFunc func(data []byte, err error) bool

// do is the shared request path: policy decision, dedup, throttle, session
// selection, registration and dispatch.
func (c *Client) do(op Operation, outcome outcomeFunc) {
	start := time.Now()

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}

	c.mu.RLock()
	baseURL := c.baseURL
	credential := c.credential
	c.mu.RUnlock()

	if credential == "" {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeMissingCredential, op.Method, "")
		}
		c.finish(nil, &ClientError{
			Type:      ErrorTypeMissingCredential,
			Message:   "no credential set",
			Cause:     ErrMissingCredential,
			RequestID: requestID,
			Method:    op.Method,
			Timestamp: time.Now(),
		}, outcome, cacheContext{})
		return
	}

	req, err := c.builder.Build(baseURL, credential, op)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeConstruction, op.Method, "")
		}
		c.finish(nil, &ClientError{
			Type:      ErrorTypeConstruction,
			Message:   "could not build request",
			Cause:     err,
			RequestID: requestID,
			Method:    op.Method,
			Timestamp: time.Now(),
		}, outcome, cacheContext{})
		return
	}

	ns := c.netConfig.Snapshot()
	for k, v := range ns.AdditionalHeaders {
		req.Header.Set(k, v)
	}

	endpoint := endpointFromRequest(req)
	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("Starting request", "requestID", requestID, "method", req.Method, "url", req.URL.String())
	}
	if c.metrics != nil {
		c.metrics.RecordRequestStart(req.Method, endpoint)
	}

	cs := c.cacheConfig.Snapshot()
	policy, key, served := c.decideCachePolicy(req, cs, requestID)
	cctx := cacheContext{key: key, settings: cs, eligible: policy != policyBypass}

	if served != nil {
		// Fresh entry with skipAPI: the network is not contacted at all.
		if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
			c.logger.Debug("Serving fresh cache entry, skipping network", "requestID", requestID, "cacheKey", key)
		}
		if c.metrics != nil {
			c.metrics.RecordCacheSkip(req.Method, endpoint)
			c.metrics.RecordRequestEnd(req.Method, endpoint)
			c.metrics.RecordRequest(req.Method, endpoint, served.StatusCode, time.Since(start))
		}
		body := served.Body
		c.completions.deliver(func() {
			outcome(body, nil)
		})
		return
	}

	var dedupKey string
	var dedupOwner bool
	if c.dedup != nil && c.dedupCondition(req) {
		var entry *dedupEntry
		dedupKey = c.dedupKeyFunc(req)
		entry, dedupOwner = c.dedup.getOrCreate(dedupKey)

		if !dedupOwner {
			if c.metrics != nil {
				c.metrics.RecordDeduplicationHit(req.Method, endpoint)
			}
			go func() {
				data, derr := entry.wait(context.Background())
				if c.metrics != nil {
					c.metrics.RecordRequestEnd(req.Method, endpoint)
					c.metrics.RecordRequest(req.Method, endpoint, statusFromError(derr), time.Since(start))
				}
				c.finish(data, derr, outcome, cctx)
			}()
			return
		}
	}

	if c.limiter != nil && !c.limiter.Allow() {
		if c.debug != nil && c.debug.Enabled && c.debug.LogRateLimit && c.logger != nil {
			c.logger.Warn("Rate limit exceeded", "requestID", requestID, "endpoint", endpoint)
		}
		rlErr := &ClientError{
			Type:      ErrorTypeRateLimit,
			Message:   "dispatch rate limit exceeded",
			Cause:     ErrRateLimited,
			RequestID: requestID,
			Method:    req.Method,
			URL:       req.URL.String(),
			Timestamp: time.Now(),
		}
		if dedupOwner {
			c.dedup.complete(dedupKey, nil, rlErr)
		}
		if c.metrics != nil {
			c.metrics.RecordError(ErrorTypeRateLimit, req.Method, endpoint)
			c.metrics.RecordRequestEnd(req.Method, endpoint)
		}
		c.finish(nil, rlErr, outcome, cctx)
		return
	}

	sess := c.sessionForDispatch(ns, requestID)

	id := c.pending.register(func(data []byte, terr error) {
		if dedupOwner {
			c.dedup.complete(dedupKey, data, terr)
		}
		if c.metrics != nil {
			c.metrics.RecordRequestEnd(req.Method, endpoint)
			status := http.StatusOK
			if terr != nil {
				status = statusFromError(terr)
			}
			c.metrics.RecordRequest(req.Method, endpoint, status, time.Since(start))
		}
		c.finish(data, terr, outcome, cctx)
	})

	go c.dispatch(sess, req, id, requestID, start)
}

// decideCachePolicy evaluates the per-request cache policy from the current
// CacheConfig snapshot. The tie-break order is load-bearing:
//
//  1. cache disabled        -> bypass (no read, no write)
//  2. fresh entry + skipAPI -> serve from cache, no network
//  3. fresh entry           -> network with normal caching
//  4. stale/absent + skipAPI-> evict stale entry, force full reload
//  5. stale/absent          -> network with normal caching
//
// An entry whose Date header is missing or unparseable counts as absent.
func (c *Client) decideCachePolicy(req *http.Request, cs CacheSettings, requestID string) (cachePolicy, string, *CacheEntry) {
	if !cs.UseCache || cs.Store == nil {
		req.Header.Set("Cache-Control", "no-store")
		return policyBypass, "", nil
	}

	// The key must be computed after header merging and before any cache
	// directive is stamped on the request, so lookup and backfill agree.
	key := cacheKeyForRequest(req)
	entry, found := cs.Store.Lookup(key)
	fresh := found && entryIsFresh(entry, cs.CacheTTL, time.Now())

	if c.metrics != nil {
		if fresh {
			c.metrics.RecordCacheHit(req.Method, endpointFromRequest(req))
		} else {
			c.metrics.RecordCacheMiss(req.Method, endpointFromRequest(req))
		}
	}

	switch {
	case fresh && cs.SkipAPI:
		return policyProtocol, key, entry
	case fresh:
		return policyProtocol, key, nil
	case cs.SkipAPI:
		if found {
			cs.Store.Evict(key)
			if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
				c.logger.Debug("Evicted stale cache entry", "requestID", requestID, "cacheKey", key)
			}
			if c.metrics != nil {
				c.metrics.RecordStaleEviction(req.Method, endpointFromRequest(req))
			}
		}
		req.Header.Set("Cache-Control", "no-cache")
		return policyReload, key, nil
	default:
		return policyProtocol, key, nil
	}
}

// sessionForDispatch returns the session the next operation binds to,
// rebuilding it when the network configuration changed since the current
// one was constructed. Rebuilding only on a fingerprint change is observably
// equivalent to rebuilding before every dispatch, since the fingerprint
// covers every configurable field. Operations already dispatched keep their
// captured session and complete with the settings they were bound to.
func (c *Client) sessionForDispatch(ns NetworkSettings, requestID string) *session {
	fp := ns.fingerprint()

	c.mu.RLock()
	current := c.session
	c.mu.RUnlock()
	if current != nil && current.fingerprint == fp {
		return current
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.fingerprint != fp {
		c.session = newSession(ns)
		if c.debug != nil && c.debug.Enabled && c.debug.LogSessions && c.logger != nil {
			c.logger.Debug("Rebuilt transport session", "requestID", requestID, "sessionID", c.session.id)
		}
		if c.metrics != nil {
			c.metrics.RecordSessionRebuild()
		}
	}
	return c.session
}

// dispatch runs one exchange on its captured session, streaming body chunks
// into the pending buffer and signaling terminal completion exactly once.
func (c *Client) dispatch(sess *session, req *http.Request, id uint64, requestID string, start time.Time) {
	ctx := context.Background()
	if sess.settings.ResourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, start.Add(sess.settings.ResourceTimeout))
		defer cancel()
	}
	req = req.WithContext(ctx)

	resp, err := sess.httpClient.Do(req)
	if err != nil {
		c.pending.complete(id, &ClientError{
			Type:      ErrorTypeUnhandled,
			Message:   "transport request failed",
			Cause:     err,
			RequestID: requestID,
			Method:    req.Method,
			URL:       req.URL.String(),
			Timestamp: time.Now(),
			Duration:  time.Since(start),
		})
		return
	}
	defer resp.Body.Close()

	c.noteFlagUpdate(resp.Header)

	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			c.pending.appendData(id, buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			c.pending.complete(id, &ClientError{
				Type:      ErrorTypeUnhandled,
				Message:   "reading response body failed",
				Cause:     rerr,
				RequestID: requestID,
				Method:    req.Method,
				URL:       req.URL.String(),
				Timestamp: time.Now(),
				Duration:  time.Since(start),
			})
			return
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.pending.complete(id, &ClientError{
			Type:       ErrorTypeUnhandled,
			Message:    "unexpected response status",
			Cause:      fmt.Errorf("server returned %s", resp.Status),
			RequestID:  requestID,
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Timestamp:  time.Now(),
			Duration:   time.Since(start),
		})
		return
	}

	c.pending.complete(id, nil)
}

// finish delivers the outcome on the completion goroutine and performs the
// opportunistic cache backfill when the bytes decoded successfully.
func (c *Client) finish(data []byte, err error, outcome outcomeFunc, cctx cacheContext) {
	c.completions.deliver(func() {
		cacheable := outcome(data, err)
		if err == nil && cacheable && cctx.eligible {
			c.backfill(cctx, data)
		}
	})
}

// backfill synthesizes a minimal cacheable response for transports and
// backends that do not emit cache-friendly headers themselves. An existing
// fresher entry is never overwritten.
func (c *Client) backfill(cctx cacheContext, data []byte) {
	store := cctx.settings.Store
	if store == nil || cctx.key == "" {
		return
	}
	if existing, found := store.Lookup(cctx.key); found && entryIsFresh(existing, cctx.settings.CacheTTL, time.Now()) {
		return
	}

	now := time.Now()
	hdr := http.Header{}
	hdr.Set("Date", now.UTC().Format(http.TimeFormat))
	hdr.Set("Cache-Control", fmt.Sprintf("max-age=%d", int(cctx.settings.CacheTTL/time.Second)))

	store.Store(cctx.key, &CacheEntry{
		Body:       data,
		StatusCode: http.StatusOK,
		Header:     hdr,
		StoredAt:   now,
	})

	if c.metrics != nil {
		c.metrics.RecordCacheSize("default", store.Len())
	}
}

// noteFlagUpdate consumes the flag-document update timestamp header. A
// missing or malformed value is ignored.
func (c *Client) noteFlagUpdate(hdr http.Header) {
	raw := hdr.Get(updatedAtHeader)
	if raw == "" {
		return
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return
	}
	updated := time.Unix(int64(seconds), 0)

	c.mu.Lock()
	defer c.mu.Unlock()
	if updated.After(c.lastFlagUpdate) {
		c.lastFlagUpdate = updated
	}
}

// statusFromError extracts the HTTP status carried by a terminal error, if any.
func statusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) && clientErr.StatusCode > 0 {
		return clientErr.StatusCode
	}
	return 0
}

// endpointFromRequest extracts a simplified endpoint label for metrics.
func endpointFromRequest(req *http.Request) string {
	if req.URL == nil {
		return "unknown"
	}

	host := req.URL.Host
	path := req.URL.Path

	var builder strings.Builder
	builder.WriteString(host)

	if path != "" && path != "/" {
		builder.WriteString(path)
	} else {
		builder.WriteByte('/')
	}

	return builder.String()
}
