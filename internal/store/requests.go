package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ctavolazzi/bot-memory/internal/model"
)

// Normalize canonicalizes request text for deduplication: line endings
// are unified, the text is lowercased, runs of whitespace collapse to a
// single space, and surrounding whitespace is trimmed. Idempotent.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Digest returns the hex SHA-256 of the normalized text.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// FindExact looks up the request record for text, matching regardless of
// case, whitespace, or newline style.
func (s *SQLiteStore) FindExact(ctx context.Context, text string) (*model.RequestRecord, error) {
	return s.requestByHash(ctx, Digest(text))
}

func (s *SQLiteStore) requestByHash(ctx context.Context, hash string) (*model.RequestRecord, error) {
	var r model.RequestRecord
	var firstSeen string
	err := s.db.QueryRowContext(ctx,
		`SELECT hash, normalized_text, first_seen_at FROM requests WHERE hash = ?`,
		hash).Scan(&r.Hash, &r.NormalizedText, &firstSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", hash, model.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("find request", err)
	}
	r.FirstSeenAt = parseTime(firstSeen)
	return &r, nil
}

// RecordRequest inserts a request record for text unless one already
// exists for its normalized form. Idempotent; returns the stored record
// either way.
func (s *SQLiteStore) RecordRequest(ctx context.Context, text string) (*model.RequestRecord, error) {
	normalized := Normalize(text)
	hash := Digest(text)

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO requests (hash, normalized_text, first_seen_at) VALUES (?, ?, ?)`,
		hash, normalized, formatTime(time.Now().UTC()))
	if err != nil {
		return nil, storageErr("record request", err)
	}

	return s.requestByHash(ctx, hash)
}

// SimilarRequest is a request record scored against a query text.
type SimilarRequest struct {
	model.RequestRecord
	Score float64 `json:"score"`
}

// FindSimilar scores every stored request against text by token overlap
// (Jaccard: symmetric, bounded in [0,1]) and returns candidates with
// score >= threshold, best first; ties break toward the most recently
// first-seen request.
func (s *SQLiteStore) FindSimilar(ctx context.Context, text string, threshold float64) ([]SimilarRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, normalized_text, first_seen_at FROM requests`)
	if err != nil {
		return nil, storageErr("list requests", err)
	}
	defer rows.Close()

	query := tokenSet(Normalize(text))

	var similar []SimilarRequest
	for rows.Next() {
		var r model.RequestRecord
		var firstSeen string
		if err := rows.Scan(&r.Hash, &r.NormalizedText, &firstSeen); err != nil {
			return nil, storageErr("scan request", err)
		}
		r.FirstSeenAt = parseTime(firstSeen)

		score := jaccard(query, tokenSet(r.NormalizedText))
		if score >= threshold {
			similar = append(similar, SimilarRequest{RequestRecord: r, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("scan requests", err)
	}

	sort.SliceStable(similar, func(i, j int) bool {
		if similar[i].Score != similar[j].Score {
			return similar[i].Score > similar[j].Score
		}
		return similar[i].FirstSeenAt.After(similar[j].FirstSeenAt)
	})
	return similar, nil
}

func tokenSet(normalized string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(normalized) {
		set[tok] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// ListAttempts returns all response attempts for a request hash, ordered
// by attempt number.
func (s *SQLiteStore) ListAttempts(ctx context.Context, requestHash string) ([]model.ResponseAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_hash, attempt_number, response_text, accepted, created_at
		 FROM attempts WHERE request_hash = ? ORDER BY attempt_number ASC`, requestHash)
	if err != nil {
		return nil, storageErr("list attempts", err)
	}
	defer rows.Close()

	var attempts []model.ResponseAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, storageErr("scan attempt", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// LatestAttempt returns the attempt with the highest attempt number for
// a request hash.
func (s *SQLiteStore) LatestAttempt(ctx context.Context, requestHash string) (*model.ResponseAttempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT request_hash, attempt_number, response_text, accepted, created_at
		 FROM attempts WHERE request_hash = ? ORDER BY attempt_number DESC LIMIT 1`, requestHash)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attempts for %s: %w", requestHash, model.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("latest attempt", err)
	}
	return &a, nil
}

// ShouldAttemptNew reports whether another generation attempt is
// warranted: the attempt count is below maxAttempts and the most recent
// attempt, if any, was not accepted.
func (s *SQLiteStore) ShouldAttemptNew(ctx context.Context, requestHash string, maxAttempts int) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attempts WHERE request_hash = ?`, requestHash).Scan(&count)
	if err != nil {
		return false, storageErr("count attempts", err)
	}
	if count >= maxAttempts {
		return false, nil
	}
	if count == 0 {
		return true, nil
	}

	latest, err := s.LatestAttempt(ctx, requestHash)
	if err != nil {
		return false, err
	}
	return !latest.Accepted, nil
}

// RecordAttempt appends a response attempt for a request hash. The
// attempt number is allocated inside the insert statement, so concurrent
// writers never produce duplicates.
func (s *SQLiteStore) RecordAttempt(ctx context.Context, requestHash, responseText string, accepted bool) (*model.ResponseAttempt, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin record attempt", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO attempts (request_hash, attempt_number, response_text, accepted, created_at)
		 SELECT ?, COALESCE(MAX(attempt_number), 0) + 1, ?, ?, ?
		 FROM attempts WHERE request_hash = ?`,
		requestHash, responseText, boolInt(accepted), formatTime(now), requestHash)
	if err != nil {
		return nil, storageErr("insert attempt", err)
	}

	var number int
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(attempt_number) FROM attempts WHERE request_hash = ?`, requestHash).Scan(&number)
	if err != nil {
		return nil, storageErr("attempt number", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit attempt", err)
	}

	return &model.ResponseAttempt{
		RequestHash:   requestHash,
		AttemptNumber: number,
		ResponseText:  responseText,
		Accepted:      accepted,
		CreatedAt:     now,
	}, nil
}

func scanAttempt(row scanner) (model.ResponseAttempt, error) {
	var a model.ResponseAttempt
	var accepted int
	var createdAt string
	err := row.Scan(&a.RequestHash, &a.AttemptNumber, &a.ResponseText, &accepted, &createdAt)
	if err != nil {
		return a, err
	}
	a.Accepted = accepted != 0
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
