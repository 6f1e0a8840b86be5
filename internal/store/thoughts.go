package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ctavolazzi/bot-memory/internal/model"
)

// tagKeywords drives the automatic tag heuristic: a keyword present in
// the lowercased content becomes a tag. Deterministic for identical input.
var tagKeywords = []string{"problem", "solution", "decision", "plan", "reasoning", "analysis", "evaluation"}

// ExtractTags derives tags from thought content when none were given.
func ExtractTags(content string) []string {
	lower := strings.ToLower(content)
	var tags []string
	for _, kw := range tagKeywords {
		if strings.Contains(lower, kw) {
			tags = append(tags, kw)
		}
	}
	if len(tags) == 0 {
		return []string{"general"}
	}
	return tags
}

// RecordThought appends a thought to the journal. A nil tags slice means
// "derive tags from content". A parent, if given, must reference an
// existing record; since ids are allocated by the database in insert
// order, an existing parent is always earlier-created and the journal
// stays a forest.
func (s *SQLiteStore) RecordThought(ctx context.Context, thoughtType, content string, tags []string, parentID *int64) (*model.ThoughtRecord, error) {
	if tags == nil {
		tags = ExtractTags(content)
	}

	var tagsJSON *string
	if len(tags) > 0 {
		b, _ := json.Marshal(tags)
		j := string(b)
		tagsJSON = &j
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin record thought", err)
	}
	defer tx.Rollback()

	if parentID != nil {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM thoughts WHERE id = ?`, *parentID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("parent thought %d: %w", *parentID, model.ErrNotFound)
		}
		if err != nil {
			return nil, storageErr("check parent thought", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO thoughts (thought_type, content, tags, parent_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		thoughtType, content, tagsJSON, parentID, formatTime(now))
	if err != nil {
		return nil, storageErr("insert thought", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("thought id", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit thought", err)
	}

	return &model.ThoughtRecord{
		ID:        id,
		Type:      thoughtType,
		Content:   content,
		Tags:      tags,
		ParentID:  parentID,
		CreatedAt: now,
	}, nil
}

// ThoughtFilter selects journal records. Tags match when the record's tag
// set is a superset of the filter tags.
type ThoughtFilter struct {
	Type       string
	Tags       []string
	ParentID   *int64
	Descending bool
	Limit      int
}

// QueryThoughts returns journal records matching the filter, ordered by
// creation time ascending unless Descending is set.
func (s *SQLiteStore) QueryThoughts(ctx context.Context, f ThoughtFilter) ([]model.ThoughtRecord, error) {
	where := []string{"1=1"}
	var args []interface{}

	if f.Type != "" {
		where = append(where, "thought_type = ?")
		args = append(args, f.Type)
	}
	for _, tag := range f.Tags {
		where = append(where, "tags LIKE ?")
		args = append(args, "%\""+tag+"\"%")
	}
	if f.ParentID != nil {
		where = append(where, "parent_id = ?")
		args = append(args, *f.ParentID)
	}

	order := "ASC"
	if f.Descending {
		order = "DESC"
	}
	query := fmt.Sprintf(
		`SELECT id, thought_type, content, tags, parent_id, created_at
		 FROM thoughts WHERE %s ORDER BY created_at %s, id %s`,
		strings.Join(where, " AND "), order, order)
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query thoughts", err)
	}
	defer rows.Close()

	var thoughts []model.ThoughtRecord
	for rows.Next() {
		t, err := scanThought(rows)
		if err != nil {
			return nil, storageErr("scan thought", err)
		}
		thoughts = append(thoughts, t)
	}
	return thoughts, rows.Err()
}

// ThoughtChain returns the ancestry path of a thought, root first. The
// forest invariant guarantees termination.
func (s *SQLiteStore) ThoughtChain(ctx context.Context, id int64) ([]model.ThoughtRecord, error) {
	var chain []model.ThoughtRecord
	current := &id

	for current != nil {
		row := s.db.QueryRowContext(ctx,
			`SELECT id, thought_type, content, tags, parent_id, created_at
			 FROM thoughts WHERE id = ?`, *current)
		t, err := scanThought(row)
		if errors.Is(err, sql.ErrNoRows) {
			if len(chain) == 0 {
				return nil, fmt.Errorf("thought %d: %w", id, model.ErrNotFound)
			}
			break
		}
		if err != nil {
			return nil, storageErr("scan thought", err)
		}
		chain = append(chain, t)
		current = t.ParentID
	}

	// Reverse to chronological (root-first) order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func scanThought(row scanner) (model.ThoughtRecord, error) {
	var t model.ThoughtRecord
	var tagsJSON sql.NullString
	var parentID sql.NullInt64
	var createdAt string

	err := row.Scan(&t.ID, &t.Type, &t.Content, &tagsJSON, &parentID, &createdAt)
	if err != nil {
		return t, err
	}

	if tagsJSON.Valid {
		json.Unmarshal([]byte(tagsJSON.String), &t.Tags)
	}
	if parentID.Valid {
		t.ParentID = &parentID.Int64
	}
	t.CreatedAt = parseTime(createdAt)
	return t, nil
}
