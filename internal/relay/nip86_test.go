package relay

import "testing"

func TestIsBlockedIPReflectsManagementState(t *testing.T) {
	const ip = "203.0.113.42"

	if IsBlockedIP(ip) {
		t.Fatal("expected an untouched IP to not be blocked")
	}

	mgmtState.mu.Lock()
	mgmtState.blockedIPs[ip] = true
	mgmtState.mu.Unlock()
	t.Cleanup(func() {
		mgmtState.mu.Lock()
		delete(mgmtState.blockedIPs, ip)
		mgmtState.mu.Unlock()
	})

	if !IsBlockedIP(ip) {
		t.Fatal("expected a blocked IP to be reported as blocked")
	}
}

func TestIsBannedEventIsCaseInsensitive(t *testing.T) {
	const storedID = "abcdef0123456789"

	mgmtState.mu.Lock()
	mgmtState.bannedEvents[storedID] = true
	mgmtState.mu.Unlock()
	t.Cleanup(func() {
		mgmtState.mu.Lock()
		delete(mgmtState.bannedEvents, storedID)
		mgmtState.mu.Unlock()
	})

	if !IsBannedEvent("ABCDEF0123456789") {
		t.Fatal("expected a mixed-case lookup to match the lowercase-stored banned id")
	}
}
