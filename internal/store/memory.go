package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ctavolazzi/bot-memory/internal/model"
)

// PutMemory upserts a value under (scope, key). The value is JSON-encoded
// before storage; on key collision the previous value is overwritten
// silently. The write is durable before return.
func (s *SQLiteStore) PutMemory(ctx context.Context, scope model.Scope, key string, value any) (*model.MemoryEntry, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value for %q: %w", key, err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memory (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		string(scope), key, string(encoded), formatTime(now))
	if err != nil {
		return nil, storageErr("put memory", err)
	}

	return &model.MemoryEntry{
		Scope:     scope,
		Key:       key,
		Value:     json.RawMessage(encoded),
		UpdatedAt: now,
	}, nil
}

// GetMemory retrieves the entry stored under (scope, key).
func (s *SQLiteStore) GetMemory(ctx context.Context, scope model.Scope, key string) (*model.MemoryEntry, error) {
	var value, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT value, updated_at FROM memory WHERE scope = ? AND key = ?`,
		string(scope), key).Scan(&value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("memory %s/%s: %w", scope, key, model.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get memory", err)
	}

	return &model.MemoryEntry{
		Scope:     scope,
		Key:       key,
		Value:     json.RawMessage(value),
		UpdatedAt: parseTime(updatedAt),
	}, nil
}

// DeleteMemory removes the entry stored under (scope, key).
func (s *SQLiteStore) DeleteMemory(ctx context.Context, scope model.Scope, key string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memory WHERE scope = ? AND key = ?`, string(scope), key)
	if err != nil {
		return storageErr("delete memory", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory %s/%s: %w", scope, key, model.ErrNotFound)
	}
	return nil
}
