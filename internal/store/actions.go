package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ctavolazzi/bot-memory/internal/model"
)

// LogAction appends an entry to the audit trail. Details are JSON-encoded.
func (s *SQLiteStore) LogAction(ctx context.Context, action string, details any) error {
	encoded, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode action details: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO actions (action, details, created_at) VALUES (?, ?, ?)`,
		action, string(encoded), formatTime(time.Now().UTC()))
	if err != nil {
		return storageErr("log action", err)
	}
	return nil
}

// RecentActions returns the newest entries first, bounded by limit.
// A non-positive limit means no bound.
func (s *SQLiteStore) RecentActions(ctx context.Context, limit int) ([]model.ActionLogEntry, error) {
	query := `SELECT id, action, details, reflection, created_at FROM actions ORDER BY id DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryActions(ctx, query, args...)
}

// ActionsWithoutReflection returns the newest unreflected entries first,
// bounded by limit.
func (s *SQLiteStore) ActionsWithoutReflection(ctx context.Context, limit int) ([]model.ActionLogEntry, error) {
	query := `SELECT id, action, details, reflection, created_at FROM actions
		 WHERE reflection IS NULL ORDER BY id DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryActions(ctx, query, args...)
}

// SetReflection stores reflection text on an existing action entry.
func (s *SQLiteStore) SetReflection(ctx context.Context, id int64, reflection string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE actions SET reflection = ? WHERE id = ?`, reflection, id)
	if err != nil {
		return storageErr("set reflection", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("action %d: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) queryActions(ctx context.Context, query string, args ...interface{}) ([]model.ActionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query actions", err)
	}
	defer rows.Close()

	var entries []model.ActionLogEntry
	for rows.Next() {
		var e model.ActionLogEntry
		var details string
		var reflection sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Action, &details, &reflection, &createdAt); err != nil {
			return nil, storageErr("scan action", err)
		}
		e.Details = json.RawMessage(details)
		if reflection.Valid {
			e.Reflection = reflection.String
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
