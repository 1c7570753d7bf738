// Package flagrelay is a client SDK core for fetching and caching remote
// feature-flag state over HTTP, with a secondary streaming channel for push
// updates. It provides the request/cache orchestration layer:
//
//   - Live-mutable network configuration (timeouts, headers, connection
//     limits) applied to every subsequent request without a restart
//   - Manual cache freshness computed from the response Date header and a
//     configured TTL, with a skip-API mode that serves fresh entries
//     without touching the network
//   - Thread-safe bookkeeping of concurrent asynchronous requests
//     multiplexed over a shared transport session that may be replaced
//     mid-flight
//   - Request de-duplication (merges concurrent identical in-flight fetches)
//   - Optional dispatch rate limiting, Prometheus metrics and lightweight
//     structured debug logging
//
// Design goals:
//   - Small surface area – functional options configure everything
//   - Safe concurrent use of a single *Client instance
//   - Callbacks fire exactly once, serially, on one completion goroutine
//   - Extensibility via pluggable cache store, request builder and decoder
//
// Typical usage:
//
//	client := flagrelay.New(
//	    flagrelay.WithCredential("ser.environment-key"),
//	    flagrelay.WithCacheConfig(cacheCfg),
//	    flagrelay.WithDeduplication(),
//	)
//	var flags []flagrelay.Flag
//	client.RequestJSON(flagrelay.GetFlags(), &flags, func(err error) {
//	    ...
//	})
//
// The client performs no automatic retries: every failure is reported to the
// caller exactly once through the callback, and the caller decides retry
// policy. The streaming channel (Stream) reconnects on its own, sharing the
// same NetworkConfig as the polling client.
package flagrelay
