package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Darkatse/StatusHub/pkg/logx"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
    namespace TEXT NOT NULL,
    key TEXT NOT NULL,
    value BLOB NOT NULL,
    expires_at INTEGER,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (namespace, key)
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
`

// sqliteTier stores entries in a local SQLite database.
// expires_at/updated_at are unix seconds; NULL expires_at means no expiry.
type sqliteTier struct {
	db  *sql.DB
	log logx.Logger
	now func() time.Time

	opCount    atomic.Uint64
	sweepEvery uint64
}

func openSQLite(path string, busyTimeout time.Duration, log logx.Logger) (*sqliteTier, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if busyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(cacheSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	return &sqliteTier{db: db, log: log, now: time.Now, sweepEvery: 64}, nil
}

func (t *sqliteTier) Get(ctx context.Context, namespace, key string) ([]byte, time.Time, bool, error) {
	var (
		value     []byte
		expiresAt sql.NullInt64
	)
	err := t.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("query cache entry: %w", err)
	}

	if expiresAt.Valid && expiresAt.Int64 <= t.now().Unix() {
		// Lazy expiry: the row is dead, drop it on the way out.
		if _, derr := t.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE namespace = ? AND key = ?`,
			namespace, key,
		); derr != nil {
			t.log.Warn("failed to delete expired cache entry",
				logx.String("namespace", namespace), logx.String("key", key), logx.Err(derr))
		}
		return nil, time.Time{}, false, nil
	}

	var exp time.Time
	if expiresAt.Valid {
		exp = time.Unix(expiresAt.Int64, 0)
	}
	return value, exp, true, nil
}

func (t *sqliteTier) Put(ctx context.Context, namespace, key string, value []byte, expiresAt time.Time) error {
	now := t.now().Unix()
	var exp any
	if !expiresAt.IsZero() {
		exp = expiresAt.Unix()
	}

	_, err := t.db.ExecContext(ctx,
		`INSERT INTO cache_entries (namespace, key, value, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET
		     value = excluded.value,
		     expires_at = excluded.expires_at,
		     updated_at = excluded.updated_at`,
		namespace, key, value, exp, now,
	)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}

	if t.opCount.Add(1)%t.sweepEvery == 0 {
		sctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		if _, serr := t.db.ExecContext(sctx,
			`DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`, now,
		); serr != nil {
			t.log.Debug("cache sweep failed", logx.Err(serr))
		}
		cancel()
	}
	return nil
}

func (t *sqliteTier) Delete(ctx context.Context, namespace, key string) error {
	_, err := t.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ? AND key = ?`, namespace, key)
	return err
}

func (t *sqliteTier) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}
