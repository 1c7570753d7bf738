package flagrelay

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the file-based form of the SDK configuration, for deployments
// that tune the client outside code. Durations are YAML integers in
// nanoseconds (Go's native duration encoding); omitted fields keep the
// documented defaults.
type Settings struct {
	BaseURL string          `yaml:"base_url,omitempty"`
	Network NetworkSettings `yaml:"network"`
	Cache   struct {
		Enabled bool          `yaml:"enabled"`
		TTL     time.Duration `yaml:"ttl"`
		SkipAPI bool          `yaml:"skip_api"`
	} `yaml:"cache"`
}

// LoadSettings reads and parses a YAML settings file. Missing network fields
// fall back to the NetworkConfig defaults.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings parses YAML settings bytes.
func ParseSettings(data []byte) (*Settings, error) {
	s := &Settings{
		Network: NewNetworkConfig().Snapshot(),
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return s, nil
}

// Apply pushes the file settings into live configuration objects. Either
// argument may be nil to leave that side untouched.
func (s *Settings) Apply(nc *NetworkConfig, cc *CacheConfig) {
	if nc != nil {
		nc.SetRequestTimeout(s.Network.RequestTimeout)
		nc.SetResourceTimeout(s.Network.ResourceTimeout)
		nc.SetWaitsForConnectivity(s.Network.WaitsForConnectivity)
		nc.SetAllowsCellularAccess(s.Network.AllowsCellularAccess)
		nc.SetMaxConnectionsPerHost(s.Network.MaxConnectionsPerHost)
		nc.SetAdditionalHeaders(s.Network.AdditionalHeaders)
		nc.SetUsePipelining(s.Network.UsePipelining)
		nc.SetShouldSetCookies(s.Network.ShouldSetCookies)
	}
	if cc != nil {
		cc.SetUseCache(s.Cache.Enabled)
		cc.SetCacheTTL(s.Cache.TTL)
		cc.SetSkipAPI(s.Cache.SkipAPI)
	}
}
