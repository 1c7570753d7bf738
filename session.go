package flagrelay

import (
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"
)

var sessionCounter atomic.Uint64

// session is one reusable transport object embedding the network settings
// captured at construction time. Sessions are never mutated after creation:
// when the NetworkConfig changes, the orchestrator builds a new session and
// swaps its reference, while operations already dispatched keep the session
// they were created on.
type session struct {
	id          uint64
	httpClient  *http.Client
	settings    NetworkSettings
	fingerprint string
}

// newSession builds a transport session from a configuration snapshot. This
// is a pure function of its input: two calls with equal snapshots produce
// sessions with identical effective settings (but distinct identities).
func newSession(ns NetworkSettings) *session {
	transport := &http.Transport{
		MaxConnsPerHost:   ns.MaxConnectionsPerHost,
		ForceAttemptHTTP2: ns.UsePipelining,
		Proxy:             http.ProxyFromEnvironment,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   ns.RequestTimeout,
	}

	if ns.ShouldSetCookies {
		// cookiejar.New never fails with a nil options struct.
		if jar, err := cookiejar.New(nil); err == nil {
			client.Jar = jar
		}
	}

	return &session{
		id:          sessionCounter.Add(1),
		httpClient:  client,
		settings:    ns,
		fingerprint: ns.fingerprint(),
	}
}
