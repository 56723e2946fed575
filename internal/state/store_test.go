package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Darkatse/StatusHub/internal/cache"
	"github.com/Darkatse/StatusHub/internal/presence"
	"github.com/Darkatse/StatusHub/pkg/logx"
)

func memCache(t *testing.T) *cache.Service {
	t.Helper()
	svc, err := cache.Open(cache.Config{Driver: "none", MemoryCapacity: 8}, logx.Nop())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestStoreColdStart(t *testing.T) {
	store := Open(context.Background(), Config{Persist: true, SubjectKey: "discord:1"}, memCache(t), logx.Nop())
	if _, ok := store.Snapshot(); ok {
		t.Fatalf("fresh store must report no recovered state")
	}
}

func TestStoreCommitAndSnapshot(t *testing.T) {
	ctx := context.Background()
	store := Open(ctx, Config{Persist: true, SubjectKey: "discord:1"}, memCache(t), logx.Nop())

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.Commit(ctx, presence.PersistedState{
		Status:             presence.StatusOnline,
		ObservedAt:         at,
		ConditionStartedAt: at,
	})

	st, ok := store.Snapshot()
	if !ok {
		t.Fatalf("expected state after commit")
	}
	if st.Status != presence.StatusOnline || !st.ConditionStartedAt.Equal(at) {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestStoreRecoversFromDurable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	open := func() (*cache.Service, *Store) {
		svc, err := cache.Open(cache.Config{Driver: "sqlite", Path: path, MemoryCapacity: 8}, logx.Nop())
		if err != nil {
			t.Fatalf("open cache: %v", err)
		}
		return svc, Open(ctx, Config{Persist: true, SubjectKey: "discord:1"}, svc, logx.Nop())
	}

	svc, store := open()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.Commit(ctx, presence.PersistedState{
		Status:             presence.StatusDnd,
		Activity:           &presence.ActivityInfo{Name: "Game", ExternalAppID: 440},
		ObservedAt:         at,
		ConditionStartedAt: at,
	})
	_ = svc.Close()

	svc, store = open()
	defer svc.Close()

	st, ok := store.Snapshot()
	if !ok {
		t.Fatalf("expected recovered state after reopen")
	}
	if st.Status != presence.StatusDnd {
		t.Fatalf("status = %q, want dnd", st.Status)
	}
	if st.Activity == nil || st.Activity.ExternalAppID != 440 {
		t.Fatalf("activity not recovered: %+v", st.Activity)
	}
	if !st.ConditionStartedAt.Equal(at) {
		t.Fatalf("condition anchor = %v, want %v", st.ConditionStartedAt, at)
	}
}

func TestStoreRecoversFromMirror(t *testing.T) {
	ctx := context.Background()
	mirror := filepath.Join(t.TempDir(), "state", "last_status.json")

	store := Open(ctx, Config{Persist: true, SubjectKey: "discord:1", MirrorPath: mirror}, memCache(t), logx.Nop())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.Commit(ctx, presence.PersistedState{
		Status:             presence.StatusIdle,
		ObservedAt:         at,
		ConditionStartedAt: at,
	})

	// A second process with a cold memory-only cache falls back to the file.
	store2 := Open(ctx, Config{Persist: true, SubjectKey: "discord:1", MirrorPath: mirror}, memCache(t), logx.Nop())
	st, ok := store2.Snapshot()
	if !ok {
		t.Fatalf("expected state recovered from mirror")
	}
	if st.Status != presence.StatusIdle {
		t.Fatalf("status = %q, want idle", st.Status)
	}
}

func TestStoreDisabledPersistenceWritesNothing(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cache.db")
	mirror := filepath.Join(dir, "last_status.json")

	svc, err := cache.Open(cache.Config{Driver: "sqlite", Path: dbPath, MemoryCapacity: 8}, logx.Nop())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer svc.Close()

	store := Open(ctx, Config{SubjectKey: "discord:1", MirrorPath: mirror}, svc, logx.Nop())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.Commit(ctx, presence.PersistedState{Status: presence.StatusOnline, ObservedAt: at, ConditionStartedAt: at})

	// In-memory tracking still works for the rest of the run.
	if st, ok := store.Snapshot(); !ok || st.Status != presence.StatusOnline {
		t.Fatalf("in-memory state lost: %+v ok=%v", st, ok)
	}

	if _, err := os.Stat(mirror); !os.IsNotExist(err) {
		t.Fatalf("mirror written despite persistence being disabled: %v", err)
	}
	if _, ok, err := cache.GetJSON[presence.PersistedState](ctx, svc, Namespace, "discord:1"); err != nil || ok {
		t.Fatalf("durable row written despite persistence being disabled (ok=%v, err=%v)", ok, err)
	}

	// A persisting store opened over the same backends sees a cold start.
	store2 := Open(ctx, Config{Persist: true, SubjectKey: "discord:1", MirrorPath: mirror}, svc, logx.Nop())
	if _, ok := store2.Snapshot(); ok {
		t.Fatalf("state recovered although nothing was persisted")
	}
}

func TestStoreCorruptMirrorIsNotFatal(t *testing.T) {
	ctx := context.Background()
	mirror := filepath.Join(t.TempDir(), "last_status.json")
	if err := os.WriteFile(mirror, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt mirror: %v", err)
	}

	store := Open(ctx, Config{Persist: true, SubjectKey: "discord:1", MirrorPath: mirror}, memCache(t), logx.Nop())
	if _, ok := store.Snapshot(); ok {
		t.Fatalf("corrupt mirror must yield no recovered state")
	}

	// The store must still accept new commits and rewrite the mirror.
	at := time.Now()
	store.Commit(ctx, presence.PersistedState{Status: presence.StatusOnline, ObservedAt: at, ConditionStartedAt: at})
	raw, err := os.ReadFile(mirror)
	if err != nil {
		t.Fatalf("mirror not rewritten: %v", err)
	}
	if len(raw) == 0 || raw[0] != '{' {
		t.Fatalf("mirror content unexpected: %q", raw)
	}
}
