// Package safety authorizes filesystem paths against the bot's workspace
// root and its recorded permission grants.
package safety

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ctavolazzi/bot-memory/internal/model"
)

// Operation is the kind of access being requested.
type Operation int

const (
	// OpRead requests read access.
	OpRead Operation = iota
	// OpWrite requests write access.
	OpWrite
	// OpReadWrite requests both; coupling an external store needs it.
	OpReadWrite
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	// Denied refuses access with no pending request.
	Denied Decision = iota
	// Allowed permits access.
	Allowed
	// PendingPermission refuses access but a grant request was recorded
	// for later approval.
	PendingPermission
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case PendingPermission:
		return "pending"
	default:
		return "denied"
	}
}

// GrantSource looks up and records permission grants. *store.SQLiteStore
// satisfies it.
type GrantSource interface {
	FindGrant(ctx context.Context, path string, now time.Time) (*model.PermissionGrant, error)
	RecordPendingGrant(ctx context.Context, pathPrefix string, allowRead, allowWrite bool) (*model.PermissionGrant, error)
}

// Gate decides whether the bot may touch a path. Paths inside the
// workspace root need no permission; everything else is fail-closed
// behind the grant table.
type Gate struct {
	root   string
	grants GrantSource
}

// NewGate builds a gate for the given workspace root. The root is
// canonicalized once at construction.
func NewGate(workspaceRoot string, grants GrantSource) (*Gate, error) {
	root, err := Canonical(workspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("canonicalize workspace root: %w", err)
	}
	return &Gate{root: root, grants: grants}, nil
}

// Root returns the canonical workspace root.
func (g *Gate) Root() string {
	return g.root
}

// IsWithinWorkspace reports whether the canonical form of path is the
// workspace root or a descendant of it. Symlinks and ".." segments are
// resolved before comparison.
func (g *Gate) IsWithinWorkspace(path string) (bool, error) {
	p, err := Canonical(path)
	if err != nil {
		return false, fmt.Errorf("canonicalize %s: %w", path, err)
	}
	if p == g.root {
		return true, nil
	}
	return strings.HasPrefix(p, g.root+string(filepath.Separator)), nil
}

// Authorize applies the access rule: in-workspace paths are allowed
// unconditionally; outside paths require a covering non-expired grant.
// When no grant covers the path and requestPermission is set, a pending
// grant request is recorded and the decision is PendingPermission.
func (g *Gate) Authorize(ctx context.Context, path string, op Operation, requestPermission bool) (Decision, error) {
	inside, err := g.IsWithinWorkspace(path)
	if err != nil {
		return Denied, err
	}
	if inside {
		return Allowed, nil
	}

	p, err := Canonical(path)
	if err != nil {
		return Denied, err
	}

	grant, err := g.grants.FindGrant(ctx, p, time.Now())
	if err == nil {
		if covers(grant, op) {
			return Allowed, nil
		}
		return Denied, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return Denied, err
	}

	if requestPermission {
		wantRead := op == OpRead || op == OpReadWrite
		wantWrite := op == OpWrite || op == OpReadWrite
		if _, err := g.grants.RecordPendingGrant(ctx, p, wantRead, wantWrite); err != nil {
			return Denied, err
		}
		return PendingPermission, nil
	}
	return Denied, nil
}

func covers(grant *model.PermissionGrant, op Operation) bool {
	switch op {
	case OpRead:
		return grant.AllowRead
	case OpWrite:
		return grant.AllowWrite
	default:
		return grant.AllowRead && grant.AllowWrite
	}
}

// Canonical resolves path to absolute, cleaned, symlink-free form.
// When the path does not exist yet, symlinks are resolved through the
// deepest existing ancestor so a link cannot smuggle a not-yet-created
// target past the workspace check.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	dir := abs
	rest := ""
	for {
		parent := filepath.Dir(dir)
		if rest == "" {
			rest = filepath.Base(dir)
		} else {
			rest = filepath.Join(filepath.Base(dir), rest)
		}
		if parent == dir {
			return abs, nil
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		dir = parent
	}
}
