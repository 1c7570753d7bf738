package flagrelay

import (
	"sync"
	"testing"
	"time"
)

func TestNetworkConfigDefaults(t *testing.T) {
	nc := NewNetworkConfig()

	if nc.RequestTimeout() != 60*time.Second {
		t.Errorf("RequestTimeout = %v, want 60s", nc.RequestTimeout())
	}
	if nc.ResourceTimeout() != 7*24*time.Hour {
		t.Errorf("ResourceTimeout = %v, want 7d", nc.ResourceTimeout())
	}
	if !nc.WaitsForConnectivity() {
		t.Error("WaitsForConnectivity should default to true")
	}
	if !nc.AllowsCellularAccess() {
		t.Error("AllowsCellularAccess should default to true")
	}
	if nc.MaxConnectionsPerHost() != 6 {
		t.Errorf("MaxConnectionsPerHost = %d, want 6", nc.MaxConnectionsPerHost())
	}
	if len(nc.AdditionalHeaders()) != 0 {
		t.Errorf("AdditionalHeaders should default empty, got %v", nc.AdditionalHeaders())
	}
	if !nc.UsePipelining() {
		t.Error("UsePipelining should default to true")
	}
	if !nc.ShouldSetCookies() {
		t.Error("ShouldSetCookies should default to true")
	}
}

func TestNetworkConfigStoresValuesVerbatim(t *testing.T) {
	nc := NewNetworkConfig()

	nc.SetRequestTimeout(-5 * time.Second)
	if nc.RequestTimeout() != -5*time.Second {
		t.Errorf("negative timeout not stored verbatim: %v", nc.RequestTimeout())
	}
	nc.SetMaxConnectionsPerHost(0)
	if nc.MaxConnectionsPerHost() != 0 {
		t.Errorf("zero connection cap not stored verbatim: %d", nc.MaxConnectionsPerHost())
	}
}

func TestNetworkConfigHeadersCopiedOut(t *testing.T) {
	nc := NewNetworkConfig()
	nc.SetAdditionalHeader("X-A", "1")

	headers := nc.AdditionalHeaders()
	headers["X-A"] = "mutated"
	if nc.AdditionalHeaders()["X-A"] != "1" {
		t.Error("AdditionalHeaders returned internal map, mutation leaked")
	}
}

func TestNetworkConfigConcurrentAccess(t *testing.T) {
	nc := NewNetworkConfig()
	values := map[time.Duration]bool{}
	for i := 1; i <= 8; i++ {
		values[time.Duration(i)*time.Second] = true
	}

	var wg sync.WaitGroup
	for d := range values {
		wg.Add(1)
		go func(d time.Duration) {
			defer wg.Done()
			nc.SetRequestTimeout(d)
			nc.SetAdditionalHeader("X-Worker", d.String())
			_ = nc.Snapshot()
		}(d)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = nc.RequestTimeout()
			_ = nc.AdditionalHeaders()
		}()
	}
	wg.Wait()

	if !values[nc.RequestTimeout()] {
		t.Errorf("final RequestTimeout %v is not one of the written values", nc.RequestTimeout())
	}
}

func TestNetworkSettingsFingerprint(t *testing.T) {
	nc := NewNetworkConfig()
	a := nc.Snapshot().fingerprint()
	b := nc.Snapshot().fingerprint()
	if a != b {
		t.Error("identical settings must produce identical fingerprints")
	}

	nc.SetRequestTimeout(time.Second)
	if nc.Snapshot().fingerprint() == a {
		t.Error("changed settings must change the fingerprint")
	}

	nc.SetRequestTimeout(DefaultRequestTimeout)
	nc.SetAdditionalHeaders(map[string]string{"b": "2", "a": "1"})
	first := nc.Snapshot().fingerprint()
	nc.SetAdditionalHeaders(map[string]string{"a": "1", "b": "2"})
	if nc.Snapshot().fingerprint() != first {
		t.Error("header insertion order must not affect the fingerprint")
	}
}
