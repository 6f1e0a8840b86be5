package safety

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctavolazzi/bot-memory/internal/model"
)

// fakeGrants serves a single configurable grant and records pending
// requests.
type fakeGrants struct {
	grant   *model.PermissionGrant
	pending []string
}

func (f *fakeGrants) FindGrant(ctx context.Context, path string, now time.Time) (*model.PermissionGrant, error) {
	if f.grant != nil && !f.grant.Expired(now) &&
		(path == f.grant.PathPrefix || strings.HasPrefix(path, f.grant.PathPrefix+string(filepath.Separator))) {
		return f.grant, nil
	}
	return nil, fmt.Errorf("grant for %s: %w", path, model.ErrNotFound)
}

func (f *fakeGrants) RecordPendingGrant(ctx context.Context, pathPrefix string, allowRead, allowWrite bool) (*model.PermissionGrant, error) {
	f.pending = append(f.pending, pathPrefix)
	return &model.PermissionGrant{PathPrefix: pathPrefix, Status: model.GrantPending}, nil
}

func newTestGate(t *testing.T, grants GrantSource) (*Gate, string) {
	t.Helper()
	root := t.TempDir()
	g, err := NewGate(root, grants)
	require.NoError(t, err)
	return g, g.Root()
}

func TestIsWithinWorkspace(t *testing.T) {
	g, root := newTestGate(t, &fakeGrants{})

	inside, err := g.IsWithinWorkspace(root)
	require.NoError(t, err)
	assert.True(t, inside, "root itself")

	inside, err = g.IsWithinWorkspace(filepath.Join(root, "sub", "not-yet-created"))
	require.NoError(t, err)
	assert.True(t, inside, "nested path that does not exist yet")

	inside, err = g.IsWithinWorkspace(filepath.Join(root, "sub", "..", "..", "escape"))
	require.NoError(t, err)
	assert.False(t, inside, "dot-dot escape")

	inside, err = g.IsWithinWorkspace(t.TempDir())
	require.NoError(t, err)
	assert.False(t, inside, "sibling directory")
}

func TestIsWithinWorkspaceSymlinkEscape(t *testing.T) {
	g, root := newTestGate(t, &fakeGrants{})

	outside := t.TempDir()
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(outside, link))

	inside, err := g.IsWithinWorkspace(link)
	require.NoError(t, err)
	assert.False(t, inside, "symlink pointing outside")

	inside, err = g.IsWithinWorkspace(filepath.Join(link, "deeper"))
	require.NoError(t, err)
	assert.False(t, inside, "path through an escaping symlink")
}

func TestAuthorizeInsideWorkspace(t *testing.T) {
	g, root := newTestGate(t, &fakeGrants{})

	d, err := g.Authorize(context.Background(), filepath.Join(root, "data"), OpReadWrite, false)
	require.NoError(t, err)
	assert.Equal(t, Allowed, d)
}

func TestAuthorizeOutsideDeniedWithoutGrant(t *testing.T) {
	grants := &fakeGrants{}
	g, _ := newTestGate(t, grants)

	outside := t.TempDir()
	d, err := g.Authorize(context.Background(), outside, OpRead, false)
	require.NoError(t, err)
	assert.Equal(t, Denied, d)
	assert.Empty(t, grants.pending, "no request recorded without opt-in")
}

func TestAuthorizeRecordsPendingRequest(t *testing.T) {
	grants := &fakeGrants{}
	g, _ := newTestGate(t, grants)

	outside := t.TempDir()
	d, err := g.Authorize(context.Background(), outside, OpReadWrite, true)
	require.NoError(t, err)
	assert.Equal(t, PendingPermission, d)
	require.Len(t, grants.pending, 1)

	canonical, err := Canonical(outside)
	require.NoError(t, err)
	assert.Equal(t, canonical, grants.pending[0])
}

func TestAuthorizeWithGrant(t *testing.T) {
	outside := t.TempDir()
	canonical, err := Canonical(outside)
	require.NoError(t, err)

	grants := &fakeGrants{grant: &model.PermissionGrant{
		PathPrefix: canonical,
		AllowRead:  true,
		Status:     model.GrantGranted,
	}}
	g, _ := newTestGate(t, grants)
	ctx := context.Background()

	d, err := g.Authorize(ctx, filepath.Join(outside, "file"), OpRead, false)
	require.NoError(t, err)
	assert.Equal(t, Allowed, d)

	// A read-only grant does not cover writes.
	d, err = g.Authorize(ctx, filepath.Join(outside, "file"), OpWrite, false)
	require.NoError(t, err)
	assert.Equal(t, Denied, d)

	d, err = g.Authorize(ctx, filepath.Join(outside, "file"), OpReadWrite, false)
	require.NoError(t, err)
	assert.Equal(t, Denied, d)
}

func TestAuthorizeExpiredGrant(t *testing.T) {
	outside := t.TempDir()
	canonical, err := Canonical(outside)
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	grants := &fakeGrants{grant: &model.PermissionGrant{
		PathPrefix: canonical,
		AllowRead:  true,
		AllowWrite: true,
		Status:     model.GrantGranted,
		ExpiresAt:  &past,
	}}
	g, _ := newTestGate(t, grants)

	d, err := g.Authorize(context.Background(), outside, OpRead, false)
	require.NoError(t, err)
	assert.Equal(t, Denied, d)
}

func TestCanonicalNonexistentPath(t *testing.T) {
	base := t.TempDir()

	got, err := Canonical(filepath.Join(base, "a", "b", "c"))
	require.NoError(t, err)

	resolvedBase, err := Canonical(base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(resolvedBase, "a", "b", "c"), got)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allowed", Allowed.String())
	assert.Equal(t, "denied", Denied.String())
	assert.Equal(t, "pending", PendingPermission.String())
}
