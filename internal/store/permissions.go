package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ctavolazzi/bot-memory/internal/model"
)

// GrantParams holds parameters for recording a permission grant.
type GrantParams struct {
	PathPrefix string
	AllowRead  bool
	AllowWrite bool
	ExpiresAt  *time.Time
}

// RecordGrant stores an approved grant for a path prefix. An existing row
// for the same prefix (granted or pending) is replaced, which is how a
// pending request gets approved.
func (s *SQLiteStore) RecordGrant(ctx context.Context, p GrantParams) (*model.PermissionGrant, error) {
	now := time.Now().UTC()
	var expires *string
	if p.ExpiresAt != nil {
		e := formatTime(*p.ExpiresAt)
		expires = &e
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE permissions SET allow_read = ?, allow_write = ?, status = ?, granted_at = ?, expires_at = ?
		 WHERE path_prefix = ?`,
		boolInt(p.AllowRead), boolInt(p.AllowWrite), string(model.GrantGranted),
		formatTime(now), expires, p.PathPrefix)
	if err != nil {
		return nil, storageErr("update grant", err)
	}

	grant := &model.PermissionGrant{
		PathPrefix: p.PathPrefix,
		AllowRead:  p.AllowRead,
		AllowWrite: p.AllowWrite,
		Status:     model.GrantGranted,
		GrantedAt:  now,
		ExpiresAt:  p.ExpiresAt,
	}

	if n, _ := res.RowsAffected(); n > 0 {
		var id string
		if err := s.db.QueryRowContext(ctx,
			`SELECT id FROM permissions WHERE path_prefix = ?`, p.PathPrefix).Scan(&id); err == nil {
			grant.ID = id
		}
		return grant, nil
	}

	grant.ID = s.newID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO permissions (id, path_prefix, allow_read, allow_write, status, granted_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		grant.ID, p.PathPrefix, boolInt(p.AllowRead), boolInt(p.AllowWrite),
		string(model.GrantGranted), formatTime(now), expires)
	if err != nil {
		return nil, storageErr("insert grant", err)
	}
	return grant, nil
}

// RecordPendingGrant records a not-yet-approved request for a path
// prefix. It does not authorize anything. Idempotent: an existing row for
// the prefix is left untouched.
func (s *SQLiteStore) RecordPendingGrant(ctx context.Context, pathPrefix string, allowRead, allowWrite bool) (*model.PermissionGrant, error) {
	var existing string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM permissions WHERE path_prefix = ?`, pathPrefix).Scan(&existing)
	if err == nil {
		return s.grantByID(ctx, existing)
	}
	if err != sql.ErrNoRows {
		return nil, storageErr("check pending grant", err)
	}

	now := time.Now().UTC()
	id := s.newID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO permissions (id, path_prefix, allow_read, allow_write, status, granted_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, pathPrefix, boolInt(allowRead), boolInt(allowWrite),
		string(model.GrantPending), formatTime(now))
	if err != nil {
		return nil, storageErr("insert pending grant", err)
	}

	return &model.PermissionGrant{
		ID:         id,
		PathPrefix: pathPrefix,
		AllowRead:  allowRead,
		AllowWrite: allowWrite,
		Status:     model.GrantPending,
		GrantedAt:  now,
	}, nil
}

// FindGrant returns the deepest non-expired granted prefix covering path.
func (s *SQLiteStore) FindGrant(ctx context.Context, path string, now time.Time) (*model.PermissionGrant, error) {
	grants, err := s.ListGrants(ctx)
	if err != nil {
		return nil, err
	}

	var best *model.PermissionGrant
	for i := range grants {
		g := &grants[i]
		if g.Status != model.GrantGranted || g.Expired(now) {
			continue
		}
		if !prefixCovers(g.PathPrefix, path) {
			continue
		}
		if best == nil || len(g.PathPrefix) > len(best.PathPrefix) {
			best = g
		}
	}
	if best == nil {
		return nil, fmt.Errorf("grant for %s: %w", path, model.ErrNotFound)
	}
	return best, nil
}

// ListGrants returns every permission row, granted and pending.
func (s *SQLiteStore) ListGrants(ctx context.Context) ([]model.PermissionGrant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path_prefix, allow_read, allow_write, status, granted_at, expires_at
		 FROM permissions ORDER BY granted_at DESC`)
	if err != nil {
		return nil, storageErr("list grants", err)
	}
	defer rows.Close()

	var grants []model.PermissionGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, storageErr("scan grant", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (s *SQLiteStore) grantByID(ctx context.Context, id string) (*model.PermissionGrant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, path_prefix, allow_read, allow_write, status, granted_at, expires_at
		 FROM permissions WHERE id = ?`, id)
	g, err := scanGrant(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("grant %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get grant", err)
	}
	return &g, nil
}

func scanGrant(row scanner) (model.PermissionGrant, error) {
	var g model.PermissionGrant
	var allowRead, allowWrite int
	var status, grantedAt string
	var expiresAt sql.NullString

	err := row.Scan(&g.ID, &g.PathPrefix, &allowRead, &allowWrite, &status, &grantedAt, &expiresAt)
	if err != nil {
		return g, err
	}

	g.AllowRead = allowRead != 0
	g.AllowWrite = allowWrite != 0
	g.Status = model.GrantStatus(status)
	g.GrantedAt = parseTime(grantedAt)
	if expiresAt.Valid {
		t := parseTime(expiresAt.String)
		g.ExpiresAt = &t
	}
	return g, nil
}

// prefixCovers reports whether path equals prefix or lies under it.
func prefixCovers(prefix, path string) bool {
	prefix = filepath.Clean(prefix)
	path = filepath.Clean(path)
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}
