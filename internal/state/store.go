// Package state persists the last observed status for the monitored
// subject so a restart never replays a transition the previous run already
// reported. The authoritative copy lives in memory behind a mutex; every
// commit writes through the durable cache namespace and, when configured,
// an atomically replaced JSON file mirror for operator inspection.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Darkatse/StatusHub/internal/cache"
	"github.com/Darkatse/StatusHub/internal/presence"
	"github.com/Darkatse/StatusHub/pkg/logx"
)

// Namespace is reserved in the cache service for the status snapshot.
const Namespace = "status.last"

type Config struct {
	// Persist enables the durable cache row and file mirror. When false
	// the store is memory-only: nothing is recovered on open and commits
	// touch no backend, so every run starts cold.
	Persist bool

	// SubjectKey partitions the namespace, e.g. "discord:123456789".
	SubjectKey string

	// MirrorPath is the JSON file mirror; empty disables it.
	MirrorPath string
}

type Store struct {
	mu  sync.Mutex
	cur *presence.PersistedState

	cache      *cache.Service
	persist    bool
	subjectKey string
	mirrorPath string
	log        logx.Logger
}

// Open creates the store and recovers prior state. Recovery failure is
// never fatal: a corrupt or missing record means tracking starts fresh,
// which only risks one redundant notification, not a crash loop.
func Open(ctx context.Context, cfg Config, svc *cache.Service, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Store{
		cache:      svc,
		persist:    cfg.Persist,
		subjectKey: cfg.SubjectKey,
		mirrorPath: cfg.MirrorPath,
		log:        log,
	}
	if s.persist {
		s.cur = s.load(ctx)
	}
	if s.cur != nil {
		s.log.Info("recovered persisted state",
			logx.String("status", string(s.cur.Status)),
			logx.Time("observed_at", s.cur.ObservedAt))
	}
	return s
}

// Snapshot returns a copy of the current state. ok is false before the
// first commit on a cold start with nothing recovered.
func (s *Store) Snapshot() (presence.PersistedState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return presence.PersistedState{}, false
	}
	return *s.cur, true
}

// Commit replaces the authoritative state and writes both persistence
// targets. Each write failure is logged independently; neither blocks the
// other, and the in-memory copy is always updated so tracking for the rest
// of the run stays correct (durability is degraded until the next
// successful save).
func (s *Store) Commit(ctx context.Context, st presence.PersistedState) {
	s.mu.Lock()
	cp := st
	s.cur = &cp
	s.mu.Unlock()

	if !s.persist {
		return
	}

	if err := cache.PutJSON(ctx, s.cache, Namespace, s.subjectKey, &st, 0); err != nil {
		s.log.Warn("failed to write status to durable cache",
			logx.String("key", s.subjectKey), logx.Err(err))
	}

	if s.mirrorPath != "" {
		if err := writeMirror(s.mirrorPath, &st); err != nil {
			s.log.Warn("failed to write state mirror",
				logx.String("path", s.mirrorPath), logx.Err(err))
		}
	}
}

func (s *Store) load(ctx context.Context) *presence.PersistedState {
	st, ok, err := cache.GetJSON[presence.PersistedState](ctx, s.cache, Namespace, s.subjectKey)
	if err != nil {
		s.log.Warn("failed to read status from durable cache",
			logx.String("key", s.subjectKey), logx.Err(err))
	}
	if ok && st.Status.Valid() {
		return st
	}

	if s.mirrorPath == "" {
		return nil
	}
	mst, err := readMirror(s.mirrorPath)
	if err != nil {
		s.log.Warn("failed to read state mirror; starting fresh",
			logx.String("path", s.mirrorPath), logx.Err(err))
		return nil
	}
	return mst
}

func readMirror(path string) (*presence.PersistedState, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st presence.PersistedState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("parse state mirror: %w", err)
	}
	if !st.Status.Valid() {
		return nil, fmt.Errorf("state mirror has invalid status %q", st.Status)
	}
	return &st, nil
}

// writeMirror replaces the mirror atomically (write to temp, then rename)
// so a crash mid-write never leaves a partial file behind.
func writeMirror(path string, st *presence.PersistedState) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
