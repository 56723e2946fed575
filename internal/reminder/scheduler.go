// Package reminder re-fires periodic notifications while a qualifying
// condition persists, numbered by how many whole intervals have elapsed
// since the condition started.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Darkatse/StatusHub/internal/presence"
	"github.com/Darkatse/StatusHub/internal/state"
	"github.com/Darkatse/StatusHub/pkg/logx"
)

type Config struct {
	Enabled      bool
	Interval     time.Duration
	PollInterval time.Duration

	// SteamOnly restricts the qualifying condition to activities carrying
	// an external app id.
	SteamOnly bool

	UserID  uint64
	GuildID uint64
}

// EmitFunc hands a synthetic event to the dispatch pipeline.
type EmitFunc func(ctx context.Context, ev presence.StatusEvent)

// Scheduler polls the persisted state on a fixed tick and fires one
// reminder each time the elapsed-interval count grows past the last fired
// sequence.
//
// State machine per active period:
//
//	Idle -> Active(conditionStartedAt, lastFired) -> Idle
//
// A new period (fresh ConditionStartedAt) restarts numbering at 1.
// Sequence 0 is never fired; that slot belongs to the original transition
// event. A long poll gap jumps straight to the current sequence, it does
// not back-fill missed ones.
type Scheduler struct {
	cfg   Config
	store *state.Store
	emit  EmitFunc
	log   logx.Logger
	now   func() time.Time

	c      *cron.Cron
	runCtx context.Context

	mu          sync.Mutex
	activeStart time.Time // zero = Idle
	lastFired   int
}

func New(cfg Config, store *state.Store, emit EmitFunc, log logx.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		cfg:   cfg,
		store: store,
		emit:  emit,
		log:   log,
		now:   time.Now,
	}
}

// Start begins the tick loop. It is a no-op when reminders are disabled.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	s.runCtx = ctx
	s.c = cron.New()
	if _, err := s.c.AddFunc(fmt.Sprintf("@every %s", s.cfg.PollInterval), s.tickNow); err != nil {
		return fmt.Errorf("register reminder tick: %w", err)
	}
	s.c.Start()
	s.log.Info("reminder scheduler started",
		logx.Duration("interval", s.cfg.Interval),
		logx.Duration("poll", s.cfg.PollInterval),
		logx.Bool("steam_only", s.cfg.SteamOnly))
	return nil
}

// Stop halts the tick loop without waiting for an in-flight tick.
func (s *Scheduler) Stop() {
	if s.c != nil {
		s.c.Stop()
	}
}

func (s *Scheduler) tickNow() {
	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	s.tick(ctx)
}

func (s *Scheduler) tick(ctx context.Context) {
	st, ok := s.store.Snapshot()
	if !ok || !s.qualifies(st) {
		s.mu.Lock()
		s.activeStart = time.Time{}
		s.lastFired = 0
		s.mu.Unlock()
		return
	}

	now := s.now()

	s.mu.Lock()
	if !s.activeStart.Equal(st.ConditionStartedAt) {
		// A new qualifying period; sequence numbering restarts.
		s.activeStart = st.ConditionStartedAt
		s.lastFired = 0
	}
	elapsed := now.Sub(st.ConditionStartedAt)
	seq := int(elapsed / s.cfg.Interval)
	if seq < 1 || seq <= s.lastFired {
		s.mu.Unlock()
		return
	}
	s.lastFired = seq
	s.mu.Unlock()

	ev := presence.StatusEvent{
		ID:               uuid.NewString(),
		UserID:           s.cfg.UserID,
		GuildID:          s.cfg.GuildID,
		Previous:         st.Status,
		Current:          st.Status,
		Activity:         st.Activity,
		ObservedAt:       now,
		IsReminder:       true,
		ReminderSequence: seq,
		Elapsed:          elapsed,
	}
	s.log.Info("reminder fired",
		logx.Int("sequence", seq),
		logx.Duration("elapsed", elapsed),
		logx.String("status", string(st.Status)))
	s.emit(ctx, ev)
}

func (s *Scheduler) qualifies(st presence.PersistedState) bool {
	if !st.Status.Active() {
		return false
	}
	if s.cfg.SteamOnly {
		return st.Activity != nil && st.Activity.ExternalAppID != 0
	}
	return true
}
