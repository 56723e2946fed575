// Package tracker turns raw presence snapshots into status events by
// comparing each observation against the last known state.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Darkatse/StatusHub/internal/presence"
	"github.com/Darkatse/StatusHub/internal/state"
	"github.com/Darkatse/StatusHub/pkg/logx"
)

type Config struct {
	UserID  uint64
	GuildID uint64

	// TrackActivity emits events on activity changes even when the status
	// is unchanged.
	TrackActivity bool

	// EmitInitialStatus fires an event for the very first observation on a
	// cold start (no recovered state) instead of capturing it silently.
	EmitInitialStatus bool
}

// Tracker consumes the inbound feed sequentially. Observe is serialized by
// an internal mutex; the write to the state store happens before the event
// is returned, so a crash right after emission cannot lose the new state.
type Tracker struct {
	mu    sync.Mutex
	cfg   Config
	store *state.Store
	log   logx.Logger
}

func New(cfg Config, store *state.Store, log logx.Logger) *Tracker {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Tracker{cfg: cfg, store: store, log: log}
}

// Observe compares the snapshot against the last known state and returns
// at most one event. Repeated identical snapshots return nil and leave the
// persisted condition anchor untouched.
func (t *Tracker) Observe(ctx context.Context, snap presence.Snapshot) *presence.StatusEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	if snap.ObservedAt.IsZero() {
		snap.ObservedAt = time.Now()
	}

	prev, recovered := t.store.Snapshot()
	if !recovered {
		return t.observeInitial(ctx, snap)
	}

	statusChanged := prev.Status != snap.Status
	activityChanged := t.cfg.TrackActivity && !prev.Activity.Equal(snap.Activity)
	if !statusChanged && !activityChanged {
		return nil
	}

	// The qualifying condition changed, so the reminder anchor resets.
	t.store.Commit(ctx, presence.PersistedState{
		Status:             snap.Status,
		Activity:           snap.Activity,
		ObservedAt:         snap.ObservedAt,
		ConditionStartedAt: snap.ObservedAt,
	})

	return t.newEvent(prev.Status, snap)
}

// observeInitial handles the first observation when nothing was recovered.
// Without recovered state there is no transition to report; emitting here
// is opt-in because most deployments only care about changes.
func (t *Tracker) observeInitial(ctx context.Context, snap presence.Snapshot) *presence.StatusEvent {
	t.store.Commit(ctx, presence.PersistedState{
		Status:             snap.Status,
		Activity:           snap.Activity,
		ObservedAt:         snap.ObservedAt,
		ConditionStartedAt: snap.ObservedAt,
	})

	if !t.cfg.EmitInitialStatus {
		t.log.Info("captured initial status without emitting",
			logx.String("status", string(snap.Status)))
		return nil
	}
	return t.newEvent(presence.StatusUnknown, snap)
}

func (t *Tracker) newEvent(prev presence.Status, snap presence.Snapshot) *presence.StatusEvent {
	return &presence.StatusEvent{
		ID:         uuid.NewString(),
		UserID:     t.cfg.UserID,
		GuildID:    t.cfg.GuildID,
		Previous:   prev,
		Current:    snap.Status,
		Activity:   snap.Activity,
		ObservedAt: snap.ObservedAt,
	}
}
