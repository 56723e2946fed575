package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Darkatse/StatusHub/internal/config"
	"github.com/Darkatse/StatusHub/pkg/logx"
)

func TestServiceMemoryOnly(t *testing.T) {
	svc, err := Open(Config{Driver: "none", MemoryCapacity: 8}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer svc.Close()
	ctx := context.Background()

	if svc.Durable() {
		t.Fatalf("memory-only service reports durable backend")
	}
	if err := svc.Put(ctx, "ns", "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, ok, err := svc.Get(ctx, "ns", "k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("get: v=%q ok=%v err=%v", v, ok, err)
	}
}

func TestServiceDurableRepopulatesMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	svc, err := Open(Config{Driver: "sqlite", Path: path, MemoryCapacity: 8}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer svc.Close()
	ctx := context.Background()

	if err := svc.Put(ctx, "ns", "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Drop the memory copy; the durable tier must backfill it.
	svc.mem.remove("ns", "k")

	v, ok, err := svc.Get(ctx, "ns", "k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("durable fallback: v=%q ok=%v err=%v", v, ok, err)
	}
	if _, ok := svc.mem.get("ns", "k"); !ok {
		t.Fatalf("memory tier not repopulated after durable hit")
	}
}

func TestServiceRepopulationCappedByDurableExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	svc, err := Open(Config{Driver: "sqlite", Path: path, MemoryCapacity: 8}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer svc.Close()
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }
	svc.mem.now = svc.now
	svc.durable.(*sqliteTier).now = svc.now

	// Durable copy lives 30s; a 10m repopulation request must be clamped.
	if err := svc.Put(ctx, "ns", "k", []byte("v"), 30*time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}
	svc.mem.remove("ns", "k")
	if _, ok, _ := svc.GetTiered(ctx, "ns", "k", 10*time.Minute); !ok {
		t.Fatalf("expected durable hit")
	}

	svc.now = func() time.Time { return base.Add(time.Minute) }
	svc.mem.now = svc.now
	if _, ok := svc.mem.get("ns", "k"); ok {
		t.Fatalf("memory copy outlived the durable expiry")
	}
}

func TestServiceJSONHelpers(t *testing.T) {
	svc, err := Open(Config{Driver: "none", MemoryCapacity: 8}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer svc.Close()
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	in := payload{Name: "x", Count: 3}
	if err := PutJSON(ctx, svc, "ns", "k", in, time.Minute); err != nil {
		t.Fatalf("put json: %v", err)
	}
	out, ok, err := GetJSON[payload](ctx, svc, "ns", "k")
	if err != nil || !ok {
		t.Fatalf("get json: ok=%v err=%v", ok, err)
	}
	if *out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", *out, in)
	}
}

func TestServiceUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestOpenAppliesDefaultCapacity(t *testing.T) {
	svc, err := Open(Config{Driver: "none"}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer svc.Close()
	if svc.mem.capacity != config.DefaultMemoryCapacity {
		t.Fatalf("capacity = %d, want %d", svc.mem.capacity, config.DefaultMemoryCapacity)
	}
}
