package config

import "time"

// Config is the full StatusHub configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "30m").
// Files may be YAML or JSON; both are decoded strictly, so unknown keys
// are rejected.
type Config struct {
	Watch    WatchConfig    `json:"watch"`
	Ingest   IngestConfig   `json:"ingest"`
	Cache    CacheConfig    `json:"cache,omitempty"`
	State    StateConfig    `json:"state,omitempty"`
	Reminder ReminderConfig `json:"reminder,omitempty"`
	Steam    SteamConfig    `json:"steam,omitempty"`
	Webhook  WebhookConfig  `json:"webhook"`
	Message  MessageConfig  `json:"message,omitempty"`
	Dispatch DispatchConfig `json:"dispatch,omitempty"`
	Logging  LoggingConfig  `json:"logging"`
}

// WatchConfig identifies the single monitored subject.
type WatchConfig struct {
	UserID  uint64 `json:"user_id"`
	GuildID uint64 `json:"guild_id,omitempty"`

	// EmitInitialStatus controls whether the very first observation after a
	// cold start (no recovered state) produces an event. Default false: the
	// first snapshot is captured silently so a restart never fires a bogus
	// "went offline" transition.
	EmitInitialStatus bool `json:"emit_initial_status,omitempty"`

	// TrackActivity also emits events when the activity changes while the
	// status stays the same.
	TrackActivity bool `json:"track_activity,omitempty"`
}

// IngestConfig controls the HTTP endpoint the presence source feeds.
type IngestConfig struct {
	Addr    string `json:"addr"`
	Token   string `json:"token,omitempty"`
	Metrics bool   `json:"metrics,omitempty"`
}

// CacheConfig controls the generic cache service.
//
// Driver values:
//   - "" or "none": memory tier only (no durability across restarts)
//   - "sqlite":     SQLite durable tier at Path
type CacheConfig struct {
	Driver      string            `json:"driver,omitempty"`
	Path        string            `json:"path,omitempty"`
	BusyTimeout string            `json:"busy_timeout,omitempty"`
	Memory      MemoryCacheConfig `json:"memory,omitempty"`
}

type MemoryCacheConfig struct {
	Capacity   int    `json:"capacity,omitempty"`
	DefaultTTL string `json:"default_ttl,omitempty"`
}

// StateConfig controls the persisted last-known-state snapshot.
type StateConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"` // file mirror; empty disables it
}

// ReminderConfig controls periodic repeat notifications while a qualifying
// condition persists.
type ReminderConfig struct {
	Enabled      bool   `json:"enabled"`
	Interval     string `json:"interval,omitempty"`
	PollInterval string `json:"poll_interval,omitempty"`

	// SteamOnly restricts reminders to conditions whose activity carries a
	// recognized external app id.
	SteamOnly bool `json:"steam_only,omitempty"`
}

// SteamConfig controls enrichment lookups against the Steam storefront.
type SteamConfig struct {
	Enabled             bool   `json:"enabled"`
	APIKey              string `json:"api_key,omitempty"`
	Language            string `json:"language,omitempty"`
	DescriptionMaxChars int    `json:"description_max_chars,omitempty"`
	Timeout             string `json:"timeout,omitempty"`
	MemoryTTL           string `json:"memory_ttl,omitempty"`
	DBTTL               string `json:"db_ttl,omitempty"`
}

// WebhookConfig selects and configures the outbound sender.
//
// Mode values: "openclaw_wake" (default), "generic_json", "telegram".
type WebhookConfig struct {
	Mode    string            `json:"mode,omitempty"`
	URL     string            `json:"url,omitempty"`
	Token   string            `json:"token,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Timeout string            `json:"timeout,omitempty"`

	OpenClaw OpenClawConfig       `json:"openclaw,omitempty"`
	Telegram TelegramSenderConfig `json:"telegram,omitempty"`
}

type OpenClawConfig struct {
	// WakeMode: "now" (default) or "next-heartbeat".
	WakeMode string `json:"wake_mode,omitempty"`
}

type TelegramSenderConfig struct {
	Token  string `json:"token,omitempty"`
	ChatID int64  `json:"chat_id,omitempty"`
}

// MessageConfig wraps the composed notification text.
type MessageConfig struct {
	Prefix string `json:"prefix,omitempty"`
	Suffix string `json:"suffix,omitempty"`
}

// DispatchConfig controls the async delivery pipeline.
type DispatchConfig struct {
	Workers       int    `json:"workers,omitempty"`
	QueueSize     int    `json:"queue_size,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	ShutdownGrace string `json:"shutdown_grace,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// Defaults carried over from the reference deployment.
const (
	DefaultWebhookTimeout   = 10 * time.Second
	DefaultSteamTimeout     = 8 * time.Second
	DefaultSteamLanguage    = "schinese"
	DefaultSteamMaxChars    = 240
	DefaultSteamMemoryTTL   = 15 * time.Minute
	DefaultSteamDBTTL       = 24 * time.Hour
	DefaultReminderInterval = 30 * time.Minute
	DefaultReminderPoll     = time.Minute
	DefaultMemoryCapacity   = 256
	DefaultMemoryTTL        = time.Hour
	DefaultDispatchWorkers  = 2
	DefaultDispatchQueue    = 256
	DefaultDispatchRate     = 5
	DefaultShutdownGrace    = 5 * time.Second
)
