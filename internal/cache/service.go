package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Darkatse/StatusHub/internal/config"
	"github.com/Darkatse/StatusHub/pkg/logx"
)

// Config configures the cache service.
//
// Driver values:
//   - "" or "none": memory tier only
//   - "sqlite":     SQLite durable tier at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration

	MemoryCapacity int
	MemoryTTL      time.Duration
}

// Service is the two-tier cache. The zero value is not usable; construct
// with Open.
type Service struct {
	mem     *memoryTier
	durable DurableTier
	log     logx.Logger
	now     func() time.Time
}

// Open initializes the service for the configured driver.
func Open(cfg Config, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.MemoryCapacity <= 0 {
		cfg.MemoryCapacity = config.DefaultMemoryCapacity
	}

	var durable DurableTier
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		durable = nopTier{}
	case "sqlite", "sqlite3":
		st, err := openSQLite(cfg.Path, cfg.BusyTimeout, log)
		if err != nil {
			return nil, err
		}
		durable = st
	default:
		return nil, errors.New("unknown cache driver: " + cfg.Driver)
	}

	now := time.Now
	return &Service{
		mem:     newMemoryTier(cfg.MemoryCapacity, cfg.MemoryTTL, now),
		durable: durable,
		log:     log,
		now:     now,
	}, nil
}

// Durable reports whether a persistent backend is active.
func (s *Service) Durable() bool {
	_, nop := s.durable.(nopTier)
	return !nop
}

func (s *Service) Close() error {
	return s.durable.Close()
}

// Get returns the value for (namespace, key), checking the memory tier
// first and falling back to the durable tier. A durable hit re-populates
// the memory tier.
func (s *Service) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	return s.GetTiered(ctx, namespace, key, s.mem.defaultTTL)
}

// GetTiered is Get with an explicit memory re-population TTL, for callers
// with their own memory-tier policy (e.g. enrichment lookups).
func (s *Service) GetTiered(ctx context.Context, namespace, key string, repopulateTTL time.Duration) ([]byte, bool, error) {
	if v, ok := s.mem.get(namespace, key); ok {
		return v, true, nil
	}

	v, expiresAt, ok, err := s.durable.Get(ctx, namespace, key)
	if err != nil || !ok {
		return nil, false, err
	}

	// Never keep the memory copy alive past the durable expiry.
	ttl := repopulateTTL
	if !expiresAt.IsZero() {
		if remaining := expiresAt.Sub(s.now()); ttl <= 0 || remaining < ttl {
			ttl = remaining
		}
	}
	s.mem.put(namespace, key, v, ttl)
	return v, true, nil
}

// Put stores the value in both tiers with one TTL. ttl <= 0 means no expiry.
func (s *Service) Put(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	return s.PutTiered(ctx, namespace, key, value, ttl, ttl)
}

// PutTiered stores the value with independent memory/durable TTLs. The
// memory tier is written first for latency; the durable write is
// synchronous so readers observe the value in either tier afterwards.
func (s *Service) PutTiered(ctx context.Context, namespace, key string, value []byte, memTTL, durableTTL time.Duration) error {
	s.mem.put(namespace, key, value, memTTL)

	var expiresAt time.Time
	if durableTTL > 0 {
		expiresAt = s.now().Add(durableTTL)
	}
	if err := s.durable.Put(ctx, namespace, key, value, expiresAt); err != nil {
		return fmt.Errorf("durable put %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Invalidate removes the entry from both tiers.
func (s *Service) Invalidate(ctx context.Context, namespace, key string) error {
	s.mem.remove(namespace, key)
	return s.durable.Delete(ctx, namespace, key)
}

// GetJSON decodes a cached JSON value into T.
func GetJSON[T any](ctx context.Context, s *Service, namespace, key string) (*T, bool, error) {
	return GetJSONTiered[T](ctx, s, namespace, key, s.mem.defaultTTL)
}

// GetJSONTiered is GetJSON with an explicit re-population TTL.
func GetJSONTiered[T any](ctx context.Context, s *Service, namespace, key string, repopulateTTL time.Duration) (*T, bool, error) {
	raw, ok, err := s.GetTiered(ctx, namespace, key, repopulateTTL)
	if err != nil || !ok {
		return nil, false, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, fmt.Errorf("decode cache value %s/%s: %w", namespace, key, err)
	}
	return &v, true, nil
}

// PutJSON encodes v as JSON and stores it with one TTL for both tiers.
func PutJSON(ctx context.Context, s *Service, namespace, key string, v any, ttl time.Duration) error {
	return PutJSONTiered(ctx, s, namespace, key, v, ttl, ttl)
}

// PutJSONTiered encodes v as JSON and stores it with independent TTLs.
func PutJSONTiered(ctx context.Context, s *Service, namespace, key string, v any, memTTL, durableTTL time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value %s/%s: %w", namespace, key, err)
	}
	return s.PutTiered(ctx, namespace, key, raw, memTTL, durableTTL)
}
