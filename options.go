package flagrelay

// Option represents a configuration option for New.
type Option func(*Client)

// WithBaseURL sets the initial API base URL.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		c.baseURL = raw
	}
}

// WithCredential sets the initial API credential.
func WithCredential(key string) Option {
	return func(c *Client) {
		c.credential = key
	}
}

// WithNetworkConfig injects a NetworkConfig, typically shared with a Stream
// so that polling and streaming follow identical network policy.
func WithNetworkConfig(nc *NetworkConfig) Option {
	return func(c *Client) {
		if nc != nil {
			c.netConfig = nc
		}
	}
}

// WithCacheConfig injects a CacheConfig. Sharing one CacheConfig between
// clients makes them observe the same cache contents.
func WithCacheConfig(cc *CacheConfig) Option {
	return func(c *Client) {
		if cc != nil {
			c.cacheConfig = cc
		}
	}
}

// WithRequestBuilder replaces the request builder collaborator.
func WithRequestBuilder(b RequestBuilder) Option {
	return func(c *Client) {
		if b != nil {
			c.builder = b
		}
	}
}

// WithUnmarshaler replaces the response decoder used by RequestJSON.
func WithUnmarshaler(u Unmarshaler) Option {
	return func(c *Client) {
		if u != nil {
			c.unmarshaler = u
		}
	}
}

// WithDeduplication enables coalescing of concurrent identical operations.
func WithDeduplication() Option {
	return func(c *Client) {
		c.dedup = NewDeduplicationTracker()
	}
}

// WithDeduplicationKeyFunc sets a custom deduplication key function.
func WithDeduplicationKeyFunc(fn DeduplicationKeyFunc) Option {
	return func(c *Client) {
		c.dedupKeyFunc = fn
	}
}

// WithDeduplicationCondition sets a custom deduplication condition function.
func WithDeduplicationCondition(fn DeduplicationCondition) Option {
	return func(c *Client) {
		c.dedupCondition = fn
	}
}

// WithRateLimit throttles dispatches to eventsPerSecond with the given burst.
func WithRateLimit(eventsPerSecond float64, burst int) Option {
	return func(c *Client) {
		c.limiter = newDispatchLimiter(eventsPerSecond, burst)
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with the default configuration.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithLogger sets a custom logger for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a simple console logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}
