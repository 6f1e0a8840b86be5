// Package store provides SQLite persistence for the bot's relational
// state: memory entries, thoughts, requests and attempts, actions, and
// permission grants.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/ctavolazzi/bot-memory/internal/model"
)

// SQLiteStore implements the bot's relational persistence over SQLite.
// It is safe for concurrent use by multiple processes sharing the same
// working directory: all inserts are transactional and sequence numbers
// are allocated inside the database, never client-side.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memory (
		scope      TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (scope, key)
	);

	CREATE TABLE IF NOT EXISTS thoughts (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		thought_type TEXT NOT NULL,
		content      TEXT NOT NULL,
		tags         TEXT,
		parent_id    INTEGER REFERENCES thoughts(id),
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_thoughts_type ON thoughts(thought_type);
	CREATE INDEX IF NOT EXISTS idx_thoughts_parent ON thoughts(parent_id);

	CREATE TABLE IF NOT EXISTS requests (
		hash            TEXT PRIMARY KEY,
		normalized_text TEXT NOT NULL,
		first_seen_at   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attempts (
		request_hash   TEXT NOT NULL REFERENCES requests(hash),
		attempt_number INTEGER NOT NULL,
		response_text  TEXT NOT NULL,
		accepted       INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL,
		PRIMARY KEY (request_hash, attempt_number)
	);

	CREATE TABLE IF NOT EXISTS actions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		action     TEXT NOT NULL,
		details    TEXT NOT NULL,
		reflection TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_actions_action ON actions(action);

	CREATE TABLE IF NOT EXISTS permissions (
		id          TEXT PRIMARY KEY,
		path_prefix TEXT NOT NULL,
		allow_read  INTEGER NOT NULL DEFAULT 0,
		allow_write INTEGER NOT NULL DEFAULT 0,
		status      TEXT NOT NULL DEFAULT 'granted',
		granted_at  TEXT NOT NULL,
		expires_at  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_permissions_prefix ON permissions(path_prefix);

	CREATE TABLE IF NOT EXISTS context_lock (
		id        INTEGER PRIMARY KEY CHECK (id = 1),
		locked_at TEXT
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	_, err := s.db.Exec(`INSERT OR IGNORE INTO context_lock (id, locked_at) VALUES (1, NULL)`)
	return err
}

// WithContextLock runs fn while holding the database write lock,
// serializing context-document mutations across every process sharing
// the working directory. The lock is an open write transaction on the
// single-row context_lock table; concurrent writers block on the
// busy timeout.
func (s *SQLiteStore) WithContextLock(ctx context.Context, fn func() error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin context lock", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `UPDATE context_lock SET locked_at = ? WHERE id = 1`, now); err != nil {
		return storageErr("acquire context lock", err)
	}

	if err := fn(); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("release context lock", err)
	}
	return nil
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, model.ErrStorage, err)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
