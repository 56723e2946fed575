package cache

import (
	"testing"
	"time"
)

func TestMemoryTierTTL(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	tier := newMemoryTier(16, 0, func() time.Time { return now })

	tier.put("ns", "k", []byte("v"), 5*time.Second)

	now = base.Add(4 * time.Second)
	if v, ok := tier.get("ns", "k"); !ok || string(v) != "v" {
		t.Fatalf("expected hit at t+4s, got ok=%v v=%q", ok, v)
	}

	now = base.Add(6 * time.Second)
	if _, ok := tier.get("ns", "k"); ok {
		t.Fatalf("expected miss at t+6s")
	}
	if got := tier.len(); got != 0 {
		t.Fatalf("expired entry not removed, len=%d", got)
	}
}

func TestMemoryTierNoExpiry(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	tier := newMemoryTier(16, 0, func() time.Time { return now })

	tier.put("ns", "k", []byte("v"), 0)
	now = base.Add(1000 * time.Hour)
	if _, ok := tier.get("ns", "k"); !ok {
		t.Fatalf("entry with ttl=0 must never expire")
	}
}

func TestMemoryTierLRUEviction(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tier := newMemoryTier(3, 0, func() time.Time { return now })

	tier.put("ns", "a", []byte("1"), 0)
	tier.put("ns", "b", []byte("2"), 0)
	tier.put("ns", "c", []byte("3"), 0)

	// Touch "a" so "b" becomes the LRU victim.
	if _, ok := tier.get("ns", "a"); !ok {
		t.Fatalf("missing a")
	}
	tier.put("ns", "d", []byte("4"), 0)

	if _, ok := tier.get("ns", "b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := tier.get("ns", k); !ok {
			t.Fatalf("expected %s to survive", k)
		}
	}
	if got := tier.len(); got != 3 {
		t.Fatalf("len = %d, want 3", got)
	}
}

func TestMemoryTierEvictsExpiredBeforeLive(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	tier := newMemoryTier(3, 0, func() time.Time { return now })

	tier.put("ns", "short", []byte("1"), time.Second)
	tier.put("ns", "live1", []byte("2"), 0)
	tier.put("ns", "live2", []byte("3"), 0)

	// "short" is expired by now; the insert must claim its slot instead of
	// evicting a live entry.
	now = base.Add(2 * time.Second)
	tier.put("ns", "new", []byte("4"), 0)

	for _, k := range []string{"live1", "live2", "new"} {
		if _, ok := tier.get("ns", k); !ok {
			t.Fatalf("live entry %s was evicted", k)
		}
	}
}

func TestMemoryTierUpdateInPlace(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tier := newMemoryTier(2, 0, func() time.Time { return now })

	tier.put("ns", "k", []byte("old"), 0)
	tier.put("ns", "k", []byte("new"), 0)

	if got := tier.len(); got != 1 {
		t.Fatalf("update created a second entry, len=%d", got)
	}
	if v, _ := tier.get("ns", "k"); string(v) != "new" {
		t.Fatalf("value = %q, want new", v)
	}
}
