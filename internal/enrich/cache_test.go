package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Darkatse/StatusHub/internal/cache"
	"github.com/Darkatse/StatusHub/pkg/logx"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	svc, err := cache.Open(cache.Config{Driver: "none", MemoryCapacity: 16}, logx.Nop())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return NewCache(CacheConfig{MemoryTTL: time.Minute, DurableTTL: time.Hour}, svc, logx.Nop())
}

func TestLookupFetchesOnceWithinTTL(t *testing.T) {
	c := testCache(t)
	calls := 0
	fetch := func(_ context.Context, appID uint32) (*Metadata, error) {
		calls++
		return &Metadata{AppID: appID, Name: "Game"}, nil
	}

	meta, outcome := c.Lookup(context.Background(), 440, fetch)
	if meta == nil || meta.Name != "Game" {
		t.Fatalf("first lookup: %+v", meta)
	}
	if outcome != OutcomeFetched {
		t.Fatalf("first lookup outcome = %q, want fetched", outcome)
	}

	for i := 0; i < 2; i++ {
		meta, outcome = c.Lookup(context.Background(), 440, fetch)
		if meta == nil || meta.Name != "Game" {
			t.Fatalf("cached lookup %d: %+v", i, meta)
		}
		if outcome != OutcomeHit {
			t.Fatalf("cached lookup %d outcome = %q, want hit", i, outcome)
		}
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
}

func TestLookupFailureReturnsNil(t *testing.T) {
	c := testCache(t)
	fetch := func(context.Context, uint32) (*Metadata, error) {
		return nil, errors.New("upstream down")
	}
	meta, outcome := c.Lookup(context.Background(), 440, fetch)
	if meta != nil {
		t.Fatalf("failed lookup returned %+v", meta)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %q, want failed", outcome)
	}
}

func TestLookupFailureIsNotCached(t *testing.T) {
	c := testCache(t)
	calls := 0
	fetch := func(_ context.Context, appID uint32) (*Metadata, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		return &Metadata{AppID: appID, Name: "Game"}, nil
	}

	if meta, _ := c.Lookup(context.Background(), 440, fetch); meta != nil {
		t.Fatalf("first lookup should fail")
	}
	if meta, outcome := c.Lookup(context.Background(), 440, fetch); meta == nil || outcome != OutcomeFetched {
		t.Fatalf("second lookup should fetch after transient failure (outcome %q)", outcome)
	}
	if calls != 2 {
		t.Fatalf("fetch called %d times, want 2", calls)
	}
}

func TestLookupUnlistedAppIsMissing(t *testing.T) {
	c := testCache(t)
	fetch := func(context.Context, uint32) (*Metadata, error) { return nil, nil }
	meta, outcome := c.Lookup(context.Background(), 440, fetch)
	if meta != nil {
		t.Fatalf("unlisted app returned %+v", meta)
	}
	if outcome != OutcomeMissing {
		t.Fatalf("outcome = %q, want missing", outcome)
	}
}

func TestLookupNilFetcher(t *testing.T) {
	c := testCache(t)
	if meta, outcome := c.Lookup(context.Background(), 440, nil); meta != nil || outcome != OutcomeMissing {
		t.Fatalf("nil fetcher returned %+v (outcome %q)", meta, outcome)
	}
}
