package services

import "testing"

func TestAbuseFilterPrefixMatch(t *testing.T) {
	f := NewAbuseFilter([]string{"63.", "185.", " 188. ", ""})

	blocked := []string{"63.1.2.3", "185.0.0.1", "188.255.1.1"}
	for _, addr := range blocked {
		if !f.IsBlocked(addr) {
			t.Errorf("expected %s to be blocked", addr)
		}
	}
	allowed := []string{"10.0.0.1", "163.1.2.3", "18.5.0.1", "", "::1"}
	for _, addr := range allowed {
		if f.IsBlocked(addr) {
			t.Errorf("expected %s to be allowed", addr)
		}
	}
}

func TestAbuseFilterEmptyDenylistAllowsAll(t *testing.T) {
	f := NewAbuseFilter(nil)
	if f.IsBlocked("63.1.2.3") {
		t.Fatal("empty denylist must not block")
	}
	var nilFilter *AbuseFilter
	if nilFilter.IsBlocked("63.1.2.3") {
		t.Fatal("nil filter must not block")
	}
}
