package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Darkatse/StatusHub/internal/config"
	"github.com/Darkatse/StatusHub/internal/enrich"
	"github.com/Darkatse/StatusHub/internal/eventbus"
	"github.com/Darkatse/StatusHub/internal/metrics"
	"github.com/Darkatse/StatusHub/internal/presence"
	"github.com/Darkatse/StatusHub/internal/runtime/supervisor"
	"github.com/Darkatse/StatusHub/pkg/logx"
)

// EnrichFunc resolves an external app id to metadata. Best-effort: nil
// means "no enrichment", never an error.
type EnrichFunc func(ctx context.Context, appID uint32) *enrich.Metadata

type Config struct {
	Workers       int
	QueueSize     int
	RatePerSec    int
	ShutdownGrace time.Duration

	// MaxEnrichmentChars caps the enrichment fragment, in runes.
	MaxEnrichmentChars int
}

type messageSettings struct {
	prefix string
	suffix string
}

// Coordinator owns the delivery pipeline: a bounded queue, worker
// goroutines and a shared rate limiter. Handle never blocks the caller;
// when the queue is full the event is dropped and counted.
type Coordinator struct {
	cfg     Config
	sender  Sender
	enrich  EnrichFunc
	bus     eventbus.Bus
	metrics *metrics.Metrics
	log     logx.Logger

	msg atomic.Value // messageSettings

	queue   chan presence.StatusEvent
	limiter *rate.Limiter

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

func NewCoordinator(cfg Config, sender Sender, enrichFn EnrichFunc, bus eventbus.Bus, m *metrics.Metrics, log logx.Logger) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = config.DefaultDispatchWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = config.DefaultDispatchQueue
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = config.DefaultDispatchRate
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = config.DefaultShutdownGrace
	}
	if cfg.MaxEnrichmentChars <= 0 {
		cfg.MaxEnrichmentChars = config.DefaultSteamMaxChars
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Coordinator{
		cfg:     cfg,
		sender:  sender,
		enrich:  enrichFn,
		bus:     bus,
		metrics: m,
		log:     log,
		queue:   make(chan presence.StatusEvent, cfg.QueueSize),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
	c.msg.Store(messageSettings{})
	return c
}

// ApplyMessage swaps the prefix/suffix used for future deliveries. Safe to
// call from the config reload path while workers are running.
func (c *Coordinator) ApplyMessage(m config.MessageConfig) {
	c.msg.Store(messageSettings{prefix: m.Prefix, suffix: m.Suffix})
}

// Start launches the workers under their own supervisor context.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	sup := supervisor.New(runCtx, supervisor.WithLogger(c.log))
	for i := 0; i < c.cfg.Workers; i++ {
		name := fmt.Sprintf("dispatch-worker-%d", i)
		sup.GoRestart(name, c.runWorker)
	}
}

// Handle enqueues the event without blocking. Events that do not fit are
// dropped; publication already happened, delivery is best-effort.
func (c *Coordinator) Handle(ctx context.Context, ev presence.StatusEvent) {
	kind := eventbus.TypeStatusChanged
	if ev.IsReminder {
		kind = eventbus.TypeReminderFired
	}
	if c.bus != nil {
		c.bus.Publish(eventbus.Event{Type: kind, Data: ev})
	}
	c.metrics.EventEmitted(kindLabel(ev))

	select {
	case c.queue <- ev:
	default:
		c.metrics.Delivery("dropped")
		c.log.Warn("dispatch queue full, dropping event",
			logx.String("event_id", ev.ID),
			logx.String("status", string(ev.Current)))
	}
}

// Stop lets in-flight deliveries finish within the shutdown grace, then
// cancels whatever remains.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.mu.Unlock()

	deadline := time.NewTimer(c.cfg.ShutdownGrace)
	defer deadline.Stop()
	drained := make(chan struct{})
	giveUp := make(chan struct{})
	go func() {
		defer close(drained)
		for len(c.queue) > 0 {
			select {
			case <-giveUp:
				return
			case <-time.After(20 * time.Millisecond):
			}
		}
	}()
	select {
	case <-drained:
	case <-deadline.C:
		c.log.Warn("dispatch shutdown grace expired",
			logx.Int("pending", len(c.queue)))
	}
	close(giveUp)
	cancel()
}

func (c *Coordinator) runWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.queue:
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			c.deliver(ctx, ev)
		}
	}
}

func (c *Coordinator) deliver(ctx context.Context, ev presence.StatusEvent) {
	text := c.compose(ctx, ev)

	start := time.Now()
	err := c.sender.Send(ctx, ev, text)
	if err != nil {
		c.metrics.Delivery("error")
		if c.bus != nil {
			c.bus.Publish(eventbus.Event{Type: eventbus.TypeDeliveryFailed, Data: ev.ID})
		}
		c.log.Error("delivery failed",
			logx.String("sender", c.sender.Name()),
			logx.String("event_id", ev.ID),
			logx.Duration("took", time.Since(start)),
			logx.Err(err))
		return
	}

	c.metrics.Delivery("ok")
	if c.bus != nil {
		c.bus.Publish(eventbus.Event{Type: eventbus.TypeDeliveryOK, Data: ev.ID})
	}
	c.log.Debug("delivered",
		logx.String("sender", c.sender.Name()),
		logx.String("event_id", ev.ID),
		logx.Duration("took", time.Since(start)))
}

// compose builds the final text. Enrichment runs here, inside the worker,
// so a slow metadata fetch never delays event publication.
func (c *Coordinator) compose(ctx context.Context, ev presence.StatusEvent) string {
	msg := c.msg.Load().(messageSettings)

	var fragment string
	if c.enrich != nil && ev.Activity != nil && ev.Activity.ExternalAppID != 0 {
		if meta := c.enrich(ctx, ev.Activity.ExternalAppID); meta != nil {
			// The separating space belongs to the fragment, not the
			// composition: absent enrichment leaves the text untouched.
			fragment = " " + enrich.Truncate(formatEnrichment(meta), c.cfg.MaxEnrichmentChars)
		}
	}
	return composeText(msg.prefix, ev.Text(), fragment, msg.suffix)
}

func formatEnrichment(m *enrich.Metadata) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(m.Name)
	if m.CurrentPlayers != nil {
		fmt.Fprintf(&b, ", %d players online", *m.CurrentPlayers)
	}
	b.WriteString("]")
	if m.ShortDescription != "" {
		b.WriteString(" ")
		b.WriteString(m.ShortDescription)
	}
	return b.String()
}

func kindLabel(ev presence.StatusEvent) string {
	if ev.IsReminder {
		return "reminder"
	}
	return "change"
}
