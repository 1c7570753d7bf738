package flagrelay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settingsYAML = `
base_url: https://flags.internal.example.com/api/v1/
network:
  request_timeout: 30000000000
  max_connections_per_host: 2
  headers:
    X-Custom-Tag: canary
  use_pipelining: false
cache:
  enabled: true
  ttl: 60000000000
  skip_api: true
`

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings([]byte(settingsYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://flags.internal.example.com/api/v1/", s.BaseURL)
	assert.Equal(t, 30*time.Second, s.Network.RequestTimeout)
	assert.Equal(t, 2, s.Network.MaxConnectionsPerHost)
	assert.Equal(t, "canary", s.Network.AdditionalHeaders["X-Custom-Tag"])
	assert.False(t, s.Network.UsePipelining)
	assert.True(t, s.Cache.Enabled)
	assert.Equal(t, time.Minute, s.Cache.TTL)
	assert.True(t, s.Cache.SkipAPI)
}

func TestParseSettingsKeepsDefaultsForOmittedFields(t *testing.T) {
	s, err := ParseSettings([]byte("network:\n  request_timeout: 5000000000\n"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, s.Network.RequestTimeout)
	assert.Equal(t, DefaultResourceTimeout, s.Network.ResourceTimeout)
	assert.Equal(t, 6, s.Network.MaxConnectionsPerHost)
	assert.True(t, s.Network.WaitsForConnectivity)
	assert.False(t, s.Cache.Enabled)
}

func TestParseSettingsRejectsMalformedYAML(t *testing.T) {
	_, err := ParseSettings([]byte("network: [not a map"))
	assert.Error(t, err)
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flagrelay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(settingsYAML), 0o600))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, s.Network.RequestTimeout)

	_, err = LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSettingsApply(t *testing.T) {
	s, err := ParseSettings([]byte(settingsYAML))
	require.NoError(t, err)

	nc := NewNetworkConfig()
	cc := NewCacheConfig()
	s.Apply(nc, cc)

	assert.Equal(t, 30*time.Second, nc.RequestTimeout())
	assert.Equal(t, 2, nc.MaxConnectionsPerHost())
	assert.False(t, nc.UsePipelining())
	assert.True(t, cc.UseCache())
	assert.Equal(t, time.Minute, cc.CacheTTL())
	assert.True(t, cc.SkipAPI())

	// Nil targets leave that side untouched.
	s.Apply(nil, nil)
}
