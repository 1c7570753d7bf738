package flagrelay

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Default NetworkConfig values.
const (
	DefaultRequestTimeout        = 60 * time.Second
	DefaultResourceTimeout       = 7 * 24 * time.Hour
	DefaultMaxConnectionsPerHost = 6
)

// NetworkConfig is a mutable bag of transport tuning parameters. Every field
// is independently settable at any time from any goroutine; a change is
// observed by the next dispatched request, never by requests already in
// flight. No field validates its range: zero or negative timeouts are stored
// verbatim and handed to the transport as-is.
type NetworkConfig struct {
	mu                    sync.RWMutex
	requestTimeout        time.Duration
	resourceTimeout       time.Duration
	waitsForConnectivity  bool
	allowsCellularAccess  bool
	maxConnectionsPerHost int
	additionalHeaders     map[string]string
	usePipelining         bool
	shouldSetCookies      bool
}

// NewNetworkConfig returns a config with the documented defaults.
func NewNetworkConfig() *NetworkConfig {
	return &NetworkConfig{
		requestTimeout:        DefaultRequestTimeout,
		resourceTimeout:       DefaultResourceTimeout,
		waitsForConnectivity:  true,
		allowsCellularAccess:  true,
		maxConnectionsPerHost: DefaultMaxConnectionsPerHost,
		additionalHeaders:     map[string]string{},
		usePipelining:         true,
		shouldSetCookies:      true,
	}
}

// RequestTimeout returns the per-request deadline.
func (nc *NetworkConfig) RequestTimeout() time.Duration {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	return nc.requestTimeout
}

// SetRequestTimeout sets the per-request deadline. Accepted verbatim.
func (nc *NetworkConfig) SetRequestTimeout(d time.Duration) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.requestTimeout = d
}

// ResourceTimeout returns the whole-exchange deadline.
func (nc *NetworkConfig) ResourceTimeout() time.Duration {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	return nc.resourceTimeout
}

// SetResourceTimeout sets the whole-exchange deadline. Accepted verbatim.
func (nc *NetworkConfig) SetResourceTimeout(d time.Duration) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.resourceTimeout = d
}

// WaitsForConnectivity reports whether dispatches should wait for
// connectivity rather than failing fast.
func (nc *NetworkConfig) WaitsForConnectivity() bool {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	return nc.waitsForConnectivity
}

// SetWaitsForConnectivity toggles waiting for connectivity.
func (nc *NetworkConfig) SetWaitsForConnectivity(v bool) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.waitsForConnectivity = v
}

// AllowsCellularAccess reports whether metered networks may be used.
func (nc *NetworkConfig) AllowsCellularAccess() bool {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	return nc.allowsCellularAccess
}

// SetAllowsCellularAccess toggles use of metered networks.
func (nc *NetworkConfig) SetAllowsCellularAccess(v bool) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.allowsCellularAccess = v
}

// MaxConnectionsPerHost returns the per-host connection limit.
func (nc *NetworkConfig) MaxConnectionsPerHost() int {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	return nc.maxConnectionsPerHost
}

// SetMaxConnectionsPerHost sets the per-host connection limit.
func (nc *NetworkConfig) SetMaxConnectionsPerHost(n int) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.maxConnectionsPerHost = n
}

// AdditionalHeaders returns a copy of the headers merged into every request.
func (nc *NetworkConfig) AdditionalHeaders() map[string]string {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	out := make(map[string]string, len(nc.additionalHeaders))
	for k, v := range nc.additionalHeaders {
		out[k] = v
	}
	return out
}

// SetAdditionalHeader sets one header merged into every request.
func (nc *NetworkConfig) SetAdditionalHeader(key, value string) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.additionalHeaders[key] = value
}

// SetAdditionalHeaders replaces the full header set.
func (nc *NetworkConfig) SetAdditionalHeaders(headers map[string]string) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.additionalHeaders = make(map[string]string, len(headers))
	for k, v := range headers {
		nc.additionalHeaders[k] = v
	}
}

// UsePipelining reports whether HTTP/2 multiplexing is attempted.
func (nc *NetworkConfig) UsePipelining() bool {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	return nc.usePipelining
}

// SetUsePipelining toggles HTTP/2 multiplexing.
func (nc *NetworkConfig) SetUsePipelining(v bool) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.usePipelining = v
}

// ShouldSetCookies reports whether the session keeps a cookie jar.
func (nc *NetworkConfig) ShouldSetCookies() bool {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	return nc.shouldSetCookies
}

// SetShouldSetCookies toggles the session cookie jar.
func (nc *NetworkConfig) SetShouldSetCookies(v bool) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.shouldSetCookies = v
}

// NetworkSettings is an immutable snapshot of a NetworkConfig, taken once per
// dispatch. Sessions are constructed from a snapshot and retain it so the
// settings bound to an in-flight request cannot change underneath it.
type NetworkSettings struct {
	RequestTimeout        time.Duration     `yaml:"request_timeout"`
	ResourceTimeout       time.Duration     `yaml:"resource_timeout"`
	WaitsForConnectivity  bool              `yaml:"waits_for_connectivity"`
	AllowsCellularAccess  bool              `yaml:"allows_cellular_access"`
	MaxConnectionsPerHost int               `yaml:"max_connections_per_host"`
	AdditionalHeaders     map[string]string `yaml:"headers,omitempty"`
	UsePipelining         bool              `yaml:"use_pipelining"`
	ShouldSetCookies      bool              `yaml:"set_cookies"`
}

// Snapshot copies the current field values.
func (nc *NetworkConfig) Snapshot() NetworkSettings {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	headers := make(map[string]string, len(nc.additionalHeaders))
	for k, v := range nc.additionalHeaders {
		headers[k] = v
	}
	return NetworkSettings{
		RequestTimeout:        nc.requestTimeout,
		ResourceTimeout:       nc.resourceTimeout,
		WaitsForConnectivity:  nc.waitsForConnectivity,
		AllowsCellularAccess:  nc.allowsCellularAccess,
		MaxConnectionsPerHost: nc.maxConnectionsPerHost,
		AdditionalHeaders:     headers,
		UsePipelining:         nc.usePipelining,
		ShouldSetCookies:      nc.shouldSetCookies,
	}
}

// fingerprint encodes every field so the orchestrator can detect whether the
// configuration changed since the current session was built.
func (ns NetworkSettings) fingerprint() string {
	keys := make([]string, 0, len(ns.AdditionalHeaders))
	for k := range ns.AdditionalHeaders {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%d|%d|%t|%t|%d|%t|%t",
		ns.RequestTimeout, ns.ResourceTimeout,
		ns.WaitsForConnectivity, ns.AllowsCellularAccess,
		ns.MaxConnectionsPerHost, ns.UsePipelining, ns.ShouldSetCookies)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, ns.AdditionalHeaders[k])
	}
	return b.String()
}
