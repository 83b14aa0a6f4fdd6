package queue

import "testing"

func TestLimiterRegistryIsolatesTenants(t *testing.T) {
	reg := newLimiterRegistry(1, 2)

	a := reg.get("tenant-a")
	b := reg.get("tenant-b")
	if a == b {
		t.Fatal("expected distinct limiters per tenant")
	}

	// Drain tenant A's burst entirely.
	for i := 0; i < 2; i++ {
		if !a.Allow() {
			t.Fatalf("expected burst token %d for tenant A", i)
		}
	}
	if a.Allow() {
		t.Error("expected tenant A to be rate limited after burst")
	}

	// Tenant B is unaffected by A's exhaustion.
	if !b.Allow() {
		t.Error("expected tenant B to still have tokens")
	}
}

func TestLimiterRegistryReturnsSameLimiter(t *testing.T) {
	reg := newLimiterRegistry(5, 10)
	if reg.get("t1") != reg.get("t1") {
		t.Fatal("expected the same limiter for repeated lookups")
	}
}
