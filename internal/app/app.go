// Package app assembles StatusHub: config, logging, cache, state, the
// tracking loop, reminders, and the dispatch pipeline.
package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/Darkatse/StatusHub/internal/cache"
	"github.com/Darkatse/StatusHub/internal/config"
	"github.com/Darkatse/StatusHub/internal/dispatch"
	"github.com/Darkatse/StatusHub/internal/enrich"
	"github.com/Darkatse/StatusHub/internal/eventbus"
	"github.com/Darkatse/StatusHub/internal/ingest"
	"github.com/Darkatse/StatusHub/internal/metrics"
	"github.com/Darkatse/StatusHub/internal/presence"
	"github.com/Darkatse/StatusHub/internal/reminder"
	"github.com/Darkatse/StatusHub/internal/runtime/supervisor"
	"github.com/Darkatse/StatusHub/internal/state"
	"github.com/Darkatse/StatusHub/internal/tracker"
	"github.com/Darkatse/StatusHub/pkg/logx"
)

const feedBuffer = 256

type App struct {
	manager *config.Manager
	logSvc  *logx.Service
	log     logx.Logger
	bus     eventbus.Bus
	metrics *metrics.Metrics

	cache     *cache.Service
	store     *state.Store
	tracker   *tracker.Tracker
	reminders *reminder.Scheduler
	coord     *dispatch.Coordinator
	server    *ingest.Server

	feed    chan presence.Snapshot
	sup     *supervisor.Supervisor
	lastCfg *config.Config
}

func New(ctx context.Context, configPath string) (*App, error) {
	manager := config.NewManager(configPath)
	cfg, err := manager.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	manager.SetLogger(log.With(logx.String("component", "config")))
	manager.SetValidator(func(_ context.Context, next *config.Config) error {
		return next.Validate()
	})

	bus := eventbus.New()
	m := metrics.New()

	cacheSvc, err := cache.Open(cache.Config{
		Driver:         cfg.Cache.Driver,
		Path:           cfg.Cache.Path,
		BusyTimeout:    config.MustDuration(cfg.Cache.BusyTimeout, 5*time.Second),
		MemoryCapacity: cfg.Cache.Memory.Capacity,
		MemoryTTL:      config.MustDuration(cfg.Cache.Memory.DefaultTTL, config.DefaultMemoryTTL),
	}, log.With(logx.String("component", "cache")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}

	store := state.Open(ctx, state.Config{
		Persist:    cfg.State.Enabled,
		SubjectKey: "discord:" + strconv.FormatUint(cfg.Watch.UserID, 10),
		MirrorPath: cfg.State.Path,
	}, cacheSvc, log.With(logx.String("component", "state")))

	sender, err := dispatch.Build(cfg.Webhook)
	if err != nil {
		cacheSvc.Close()
		logSvc.Close()
		return nil, fmt.Errorf("build sender: %w", err)
	}

	var enrichFn dispatch.EnrichFunc
	if cfg.Steam.Enabled {
		client := enrich.NewClient(enrich.ClientConfig{
			APIKey:              cfg.Steam.APIKey,
			Language:            cfg.Steam.Language,
			DescriptionMaxChars: cfg.Steam.DescriptionMaxChars,
			Timeout:             config.MustDuration(cfg.Steam.Timeout, config.DefaultSteamTimeout),
		})
		enrichCache := enrich.NewCache(enrich.CacheConfig{
			MemoryTTL:  config.MustDuration(cfg.Steam.MemoryTTL, config.DefaultSteamMemoryTTL),
			DurableTTL: config.MustDuration(cfg.Steam.DBTTL, config.DefaultSteamDBTTL),
		}, cacheSvc, log.With(logx.String("component", "enrich")))
		enrichFn = func(ctx context.Context, appID uint32) *enrich.Metadata {
			meta, outcome := enrichCache.Lookup(ctx, appID, client.FetchGameDetails)
			m.EnrichmentLookup(string(outcome))
			return meta
		}
	}

	coord := dispatch.NewCoordinator(dispatch.Config{
		Workers:            cfg.Dispatch.Workers,
		QueueSize:          cfg.Dispatch.QueueSize,
		RatePerSec:         cfg.Dispatch.RatePerSec,
		ShutdownGrace:      config.MustDuration(cfg.Dispatch.ShutdownGrace, config.DefaultShutdownGrace),
		MaxEnrichmentChars: cfg.Steam.DescriptionMaxChars,
	}, sender, enrichFn, bus, m, log.With(logx.String("component", "dispatch")))
	coord.ApplyMessage(cfg.Message)

	trk := tracker.New(tracker.Config{
		UserID:            cfg.Watch.UserID,
		GuildID:           cfg.Watch.GuildID,
		TrackActivity:     cfg.Watch.TrackActivity,
		EmitInitialStatus: cfg.Watch.EmitInitialStatus,
	}, store, log.With(logx.String("component", "tracker")))

	reminders := reminder.New(reminder.Config{
		Enabled:      cfg.Reminder.Enabled,
		Interval:     config.MustDuration(cfg.Reminder.Interval, config.DefaultReminderInterval),
		PollInterval: config.MustDuration(cfg.Reminder.PollInterval, config.DefaultReminderPoll),
		SteamOnly:    cfg.Reminder.SteamOnly,
		UserID:       cfg.Watch.UserID,
		GuildID:      cfg.Watch.GuildID,
	}, store, coord.Handle, log.With(logx.String("component", "reminder")))

	feed := make(chan presence.Snapshot, feedBuffer)
	server := ingest.NewServer(ingest.Config{
		Addr:    cfg.Ingest.Addr,
		Token:   cfg.Ingest.Token,
		Metrics: cfg.Ingest.Metrics,
	}, feed, m.Registry, log.With(logx.String("component", "ingest")))

	return &App{
		manager:   manager,
		logSvc:    logSvc,
		log:       log,
		bus:       bus,
		metrics:   m,
		cache:     cacheSvc,
		store:     store,
		tracker:   trk,
		reminders: reminders,
		coord:     coord,
		server:    server,
		feed:      feed,
		lastCfg:   cfg,
	}, nil
}

// Start launches every component under one supervisor and reports
// readiness to systemd when running under it.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	a.coord.Start(a.sup.Context())

	a.sup.GoRestart("ingest", a.server.Run)
	a.sup.GoRestart("feed", a.consumeFeed)
	a.sup.GoRestart("config-watch", a.manager.Watch)
	a.sup.Go0("config-apply", a.applyReloads)
	a.sup.Go0("bus-observer", a.observeBus)

	if err := a.reminders.Start(a.sup.Context()); err != nil {
		return err
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		a.sup.Go0("watchdog", func(ctx context.Context) {
			t := time.NewTicker(interval / 2)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		})
	}
	a.log.Info("statushub started")
	return nil
}

// consumeFeed is the single tracking loop. Snapshots are observed
// sequentially so state writes and event emission keep their ordering.
func (a *App) consumeFeed(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-a.feed:
			a.metrics.ObserveSnapshot()
			ev := a.tracker.Observe(ctx, snap)
			a.metrics.SetStatus(snap.Status)
			if ev != nil {
				a.coord.Handle(ctx, *ev)
			}
		}
	}
}

// observeBus is the app-level bus subscriber: it turns lifecycle events
// into counters and an audit trail in the log, independent of the
// components that published them.
func (a *App) observeBus(ctx context.Context) {
	events, unsub := a.bus.Subscribe(32)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Type {
			case eventbus.TypeConfigReloaded:
				a.metrics.ConfigReloaded()
			case eventbus.TypeDeliveryFailed:
				a.log.Debug("delivery failure recorded", logx.Any("event_id", e.Data))
			case eventbus.TypeStatusChanged, eventbus.TypeReminderFired:
				if ev, ok := e.Data.(presence.StatusEvent); ok {
					a.log.Debug("event published",
						logx.String("type", e.Type),
						logx.String("event_id", ev.ID))
				}
			}
		}
	}
}

// applyReloads consumes config updates from the watcher. Logging and
// message settings apply live; anything structural needs a restart.
func (a *App) applyReloads(ctx context.Context) {
	updates := a.manager.Subscribe(4)
	defer a.manager.Unsubscribe(updates)

	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			a.coord.ApplyMessage(cfg.Message)
			a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded})
			if section := structuralChange(a.lastCfg, cfg); section != "" {
				a.log.Warn("config section changed but needs a restart to take effect",
					logx.String("section", section))
			}
			a.lastCfg = cfg
			a.log.Info("config reloaded")
		}
	}
}

// structuralChange names the first section whose new value cannot be
// applied without rebuilding services. Logging and message are excluded;
// those apply live.
func structuralChange(old, next *config.Config) string {
	switch {
	case old.Watch != next.Watch:
		return "watch"
	case old.Ingest != next.Ingest:
		return "ingest"
	case old.Cache != next.Cache:
		return "cache"
	case old.State != next.State:
		return "state"
	case old.Reminder != next.Reminder:
		return "reminder"
	case old.Steam != next.Steam:
		return "steam"
	case !webhookEqual(old.Webhook, next.Webhook):
		return "webhook"
	case old.Dispatch != next.Dispatch:
		return "dispatch"
	}
	return ""
}

func webhookEqual(a, b config.WebhookConfig) bool {
	if a.Mode != b.Mode || a.URL != b.URL || a.Token != b.Token ||
		a.Timeout != b.Timeout || a.OpenClaw != b.OpenClaw || a.Telegram != b.Telegram {
		return false
	}
	if len(a.Headers) != len(b.Headers) {
		return false
	}
	for k, v := range a.Headers {
		if b.Headers[k] != v {
			return false
		}
	}
	return true
}

// Stop shuts everything down in dependency order within ctx's deadline.
func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.reminders.Stop()
	// Drain the dispatch queue while its workers are still alive; the
	// supervisor cancel below would kill them mid-queue otherwise.
	a.coord.Stop()
	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	if cerr := a.cache.Close(); cerr != nil && err == nil {
		err = cerr
	}
	a.logSvc.Close()
	return err
}
