package app

import (
	"context"
	"testing"
	"time"

	"github.com/Darkatse/StatusHub/internal/config"
	"github.com/Darkatse/StatusHub/internal/eventbus"
	"github.com/Darkatse/StatusHub/internal/metrics"
	"github.com/Darkatse/StatusHub/pkg/logx"
)

func baseConfig() *config.Config {
	return &config.Config{
		Watch:   config.WatchConfig{UserID: 1},
		Ingest:  config.IngestConfig{Addr: ":8480"},
		Webhook: config.WebhookConfig{URL: "http://h/wake", Headers: map[string]string{"X": "1"}},
		Logging: config.LoggingConfig{Level: "info", Console: true},
	}
}

func reloadCount(t *testing.T, m *metrics.Metrics) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "statushub_config_reloads_total" {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestObserveBusCountsConfigReloads(t *testing.T) {
	a := &App{
		bus:     eventbus.New(),
		metrics: metrics.New(),
		log:     logx.Nop(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.observeBus(ctx)

	// Let the subscriber register before publishing.
	time.Sleep(20 * time.Millisecond)
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded})

	deadline := time.After(2 * time.Second)
	for reloadCount(t, a.metrics) < 1 {
		select {
		case <-deadline:
			t.Fatalf("reload event never reached the observer")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStructuralChangeDetection(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"none", func(*config.Config) {}, ""},
		{"logging is live", func(c *config.Config) { c.Logging.Level = "debug" }, ""},
		{"message is live", func(c *config.Config) { c.Message.Prefix = "[x]" }, ""},
		{"watch subject", func(c *config.Config) { c.Watch.UserID = 2 }, "watch"},
		{"ingest addr", func(c *config.Config) { c.Ingest.Addr = ":9000" }, "ingest"},
		{"cache driver", func(c *config.Config) { c.Cache.Driver = "sqlite" }, "cache"},
		{"webhook url", func(c *config.Config) { c.Webhook.URL = "http://h/other" }, "webhook"},
		{"webhook header", func(c *config.Config) { c.Webhook.Headers = map[string]string{"X": "2"} }, "webhook"},
		{"dispatch workers", func(c *config.Config) { c.Dispatch.Workers = 8 }, "dispatch"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			old := baseConfig()
			next := baseConfig()
			tc.mutate(next)
			if got := structuralChange(old, next); got != tc.want {
				t.Fatalf("structuralChange = %q, want %q", got, tc.want)
			}
		})
	}
}
