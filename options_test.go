package flagrelay

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type noopBuilder struct{}

func (noopBuilder) Build(baseURL, credential string, op Operation) (*http.Request, error) {
	return http.NewRequest(http.MethodGet, baseURL, nil)
}

type noopUnmarshaler struct{}

func (noopUnmarshaler) Unmarshal(data []byte, v interface{}) error { return nil }

func TestOptionsApply(t *testing.T) {
	nc := NewNetworkConfig()
	cc := NewCacheConfig()
	logger := NewSimpleLogger()

	client := New(
		WithBaseURL("https://example.com/api/v1/"),
		WithCredential("ser.key"),
		WithNetworkConfig(nc),
		WithCacheConfig(cc),
		WithRequestBuilder(noopBuilder{}),
		WithUnmarshaler(noopUnmarshaler{}),
		WithDeduplication(),
		WithRateLimit(10, 2),
		WithLogger(logger),
	)
	defer client.Close()

	assert.Equal(t, "https://example.com/api/v1/", client.BaseURL())
	assert.Equal(t, "ser.key", client.Credential())
	assert.Same(t, nc, client.NetworkConfig())
	assert.Same(t, cc, client.CacheConfig())
	assert.NotNil(t, client.dedup)
	assert.NotNil(t, client.limiter)
	assert.Same(t, logger, client.logger.(*SimpleLogger))
}

func TestNilCollaboratorsIgnored(t *testing.T) {
	client := New(
		WithNetworkConfig(nil),
		WithCacheConfig(nil),
		WithRequestBuilder(nil),
		WithUnmarshaler(nil),
	)
	defer client.Close()

	assert.NotNil(t, client.NetworkConfig())
	assert.NotNil(t, client.CacheConfig())
	assert.NotNil(t, client.builder)
	assert.NotNil(t, client.unmarshaler)
}

func TestWithDebugOptions(t *testing.T) {
	client := New(WithDebug())
	defer client.Close()
	assert.True(t, client.debug.Enabled)

	custom := &DebugConfig{Enabled: true, LogRequests: true}
	withConfig := New(WithDebugConfig(custom))
	defer withConfig.Close()
	assert.Same(t, custom, withConfig.debug)

	gen := func() string { return "fixed-id" }
	withGen := New(WithRequestIDGenerator(gen))
	defer withGen.Close()
	assert.Equal(t, "fixed-id", withGen.debug.RequestIDGen())
}

func TestWithSimpleLogger(t *testing.T) {
	client := New(WithSimpleLogger())
	defer client.Close()

	assert.True(t, client.debug.Enabled)
	assert.IsType(t, &SimpleLogger{}, client.logger)
}

func TestSharedCacheConfigObservedByBothClients(t *testing.T) {
	cc := NewCacheConfig()
	cc.SetUseCache(true)
	cc.SetCacheTTL(time.Minute)

	a := New(WithCacheConfig(cc))
	defer a.Close()
	b := New(WithCacheConfig(cc))
	defer b.Close()

	cc.Store().Store("shared", &CacheEntry{Body: []byte("x")})
	assert.Equal(t, 1, a.CacheConfig().Store().Len())
	assert.Equal(t, 1, b.CacheConfig().Store().Len())
}
