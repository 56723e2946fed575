package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the whole config. It is fatal at startup only; the
// watcher uses it to reject bad reloads without touching the running app.
func (c *Config) Validate() error {
	if c.Watch.UserID == 0 {
		return fmt.Errorf("watch.user_id must be greater than 0")
	}

	if strings.TrimSpace(c.Ingest.Addr) == "" {
		return fmt.Errorf("ingest.addr cannot be empty")
	}

	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateReminder(); err != nil {
		return err
	}
	if err := c.validateSteam(); err != nil {
		return err
	}
	if err := c.validateWebhook(); err != nil {
		return err
	}

	if _, err := ParseDurationField("dispatch.shutdown_grace", c.Dispatch.ShutdownGrace); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCache() error {
	driver := strings.ToLower(strings.TrimSpace(c.Cache.Driver))
	switch driver {
	case "", "none":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(c.Cache.Path) == "" {
			return fmt.Errorf("cache.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("cache.driver: unknown driver %q", c.Cache.Driver)
	}
	if _, err := ParseDurationField("cache.busy_timeout", c.Cache.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("cache.memory.default_ttl", c.Cache.Memory.DefaultTTL); err != nil {
		return err
	}
	if c.Cache.Memory.Capacity < 0 {
		return fmt.Errorf("cache.memory.capacity must be >= 0")
	}
	return nil
}

func (c *Config) validateReminder() error {
	if !c.Reminder.Enabled {
		return nil
	}
	if _, err := ParseDurationField("reminder.interval", c.Reminder.Interval); err != nil {
		return err
	}
	if _, err := ParseDurationField("reminder.poll_interval", c.Reminder.PollInterval); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSteam() error {
	if !c.Steam.Enabled {
		return nil
	}
	if c.Steam.APIKey != "" && strings.TrimSpace(c.Steam.APIKey) == "" {
		return fmt.Errorf("steam.api_key cannot be blank when provided")
	}
	if c.Steam.DescriptionMaxChars < 0 {
		return fmt.Errorf("steam.description_max_chars must be >= 0")
	}
	for _, f := range []struct{ path, raw string }{
		{"steam.timeout", c.Steam.Timeout},
		{"steam.memory_ttl", c.Steam.MemoryTTL},
		{"steam.db_ttl", c.Steam.DBTTL},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateWebhook() error {
	mode := strings.ToLower(strings.TrimSpace(c.Webhook.Mode))
	switch mode {
	case "", "openclaw_wake", "generic_json":
		raw := strings.TrimSpace(c.Webhook.URL)
		if raw == "" {
			return fmt.Errorf("webhook.url cannot be empty")
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook.url is not a valid http(s) URL: %s", raw)
		}
	case "telegram":
		if strings.TrimSpace(c.Webhook.Telegram.Token) == "" {
			return fmt.Errorf("webhook.telegram.token is required for the telegram mode")
		}
		if c.Webhook.Telegram.ChatID == 0 {
			return fmt.Errorf("webhook.telegram.chat_id is required for the telegram mode")
		}
	default:
		return fmt.Errorf("webhook.mode: unknown mode %q", c.Webhook.Mode)
	}

	switch strings.TrimSpace(c.Webhook.OpenClaw.WakeMode) {
	case "", "now", "next-heartbeat":
	default:
		return fmt.Errorf("webhook.openclaw.wake_mode must be \"now\" or \"next-heartbeat\"")
	}

	if _, err := ParseDurationField("webhook.timeout", c.Webhook.Timeout); err != nil {
		return err
	}
	return nil
}
