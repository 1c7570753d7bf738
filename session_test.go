package flagrelay

import (
	"testing"
	"time"
)

func TestNewSessionReflectsSettings(t *testing.T) {
	nc := NewNetworkConfig()
	nc.SetRequestTimeout(17 * time.Second)
	nc.SetMaxConnectionsPerHost(3)
	nc.SetShouldSetCookies(false)

	sess := newSession(nc.Snapshot())
	if sess.httpClient.Timeout != 17*time.Second {
		t.Errorf("client timeout = %v, want 17s", sess.httpClient.Timeout)
	}
	if sess.httpClient.Jar != nil {
		t.Error("cookie jar must be absent when ShouldSetCookies is false")
	}
	if sess.settings.MaxConnectionsPerHost != 3 {
		t.Errorf("captured MaxConnectionsPerHost = %d, want 3", sess.settings.MaxConnectionsPerHost)
	}

	nc.SetShouldSetCookies(true)
	withJar := newSession(nc.Snapshot())
	if withJar.httpClient.Jar == nil {
		t.Error("cookie jar must be attached when ShouldSetCookies is true")
	}
}

func TestNewSessionIdentities(t *testing.T) {
	ns := NewNetworkConfig().Snapshot()
	a := newSession(ns)
	b := newSession(ns)

	if a.id == b.id {
		t.Error("each constructed session must get a distinct identity")
	}
	if a.fingerprint != b.fingerprint {
		t.Error("equal snapshots must produce equal fingerprints")
	}
}

func TestSessionForDispatchReusesUnchangedSession(t *testing.T) {
	client := New(WithCredential(testCredential))
	defer client.Close()

	ns := client.NetworkConfig().Snapshot()
	first := client.sessionForDispatch(ns, "req-1")
	second := client.sessionForDispatch(ns, "req-2")
	if first != second {
		t.Error("unchanged configuration must reuse the session")
	}
}

func TestSessionForDispatchRebuildsOnConfigChange(t *testing.T) {
	client := New(WithCredential(testCredential))
	defer client.Close()

	first := client.sessionForDispatch(client.NetworkConfig().Snapshot(), "req-1")

	client.NetworkConfig().SetRequestTimeout(5 * time.Second)
	second := client.sessionForDispatch(client.NetworkConfig().Snapshot(), "req-2")

	if first == second {
		t.Fatal("changed configuration must produce a new session")
	}
	if second.httpClient.Timeout != 5*time.Second {
		t.Errorf("rebuilt session timeout = %v, want 5s", second.httpClient.Timeout)
	}
	if first.httpClient.Timeout == second.httpClient.Timeout {
		t.Error("the prior session keeps the settings it was built with")
	}
}
