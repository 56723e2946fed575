// Package enrich resolves external app ids to game metadata, cached in
// both tiers of the cache service with its own TTL policy. Enrichment is
// best-effort everywhere: a failed lookup degrades the notification text,
// never the notification itself.
package enrich

import (
	"context"
	"strconv"
	"time"

	"github.com/Darkatse/StatusHub/internal/cache"
	"github.com/Darkatse/StatusHub/internal/config"
	"github.com/Darkatse/StatusHub/pkg/logx"
)

// Namespace is reserved in the cache service for game metadata.
const Namespace = "steam.game_details"

// Metadata is what the enrichment provider knows about one app.
type Metadata struct {
	AppID            uint32  `json:"app_id"`
	Name             string  `json:"name"`
	ShortDescription string  `json:"short_description,omitempty"`
	CurrentPlayers   *uint32 `json:"current_players,omitempty"`
}

// FetchFunc is the upstream lookup. It must honor ctx cancellation; a
// timeout is treated identically to any other fetch failure.
type FetchFunc func(ctx context.Context, appID uint32) (*Metadata, error)

type CacheConfig struct {
	MemoryTTL  time.Duration // short-lived in-process copies
	DurableTTL time.Duration // long-lived cross-restart copies
}

type Cache struct {
	cfg CacheConfig
	svc *cache.Service
	log logx.Logger
}

func NewCache(cfg CacheConfig, svc *cache.Service, log logx.Logger) *Cache {
	if cfg.MemoryTTL <= 0 {
		cfg.MemoryTTL = config.DefaultSteamMemoryTTL
	}
	if cfg.DurableTTL <= 0 {
		cfg.DurableTTL = config.DefaultSteamDBTTL
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Cache{cfg: cfg, svc: svc, log: log}
}

// Outcome says how a Lookup resolved: from either cache tier, by a fresh
// upstream fetch, upstream knowing nothing about the app, or a failure.
type Outcome string

const (
	OutcomeHit     Outcome = "hit"
	OutcomeFetched Outcome = "fetched"
	OutcomeMissing Outcome = "missing"
	OutcomeFailed  Outcome = "failed"
)

// Lookup checks the memory tier, then the durable tier, and only on a
// double miss invokes fetch. A successful fetch populates both tiers with
// their respective TTLs. Any failure returns nil metadata and OutcomeFailed.
func (c *Cache) Lookup(ctx context.Context, appID uint32, fetch FetchFunc) (*Metadata, Outcome) {
	key := strconv.FormatUint(uint64(appID), 10)

	meta, ok, err := cache.GetJSONTiered[Metadata](ctx, c.svc, Namespace, key, c.cfg.MemoryTTL)
	if err != nil {
		c.log.Warn("enrichment cache read failed",
			logx.Uint64("app_id", uint64(appID)), logx.Err(err))
	}
	if ok {
		return meta, OutcomeHit
	}

	if fetch == nil {
		return nil, OutcomeMissing
	}
	m, err := fetch(ctx, appID)
	if err != nil {
		c.log.Warn("enrichment fetch failed",
			logx.Uint64("app_id", uint64(appID)), logx.Err(err))
		return nil, OutcomeFailed
	}
	if m == nil {
		return nil, OutcomeMissing
	}

	if err := cache.PutJSONTiered(ctx, c.svc, Namespace, key, m, c.cfg.MemoryTTL, c.cfg.DurableTTL); err != nil {
		c.log.Warn("enrichment cache write failed",
			logx.Uint64("app_id", uint64(appID)), logx.Err(err))
	}
	return m, OutcomeFetched
}
