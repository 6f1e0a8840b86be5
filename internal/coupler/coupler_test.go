package coupler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ctavolazzi/bot-memory/internal/model"
	"github.com/ctavolazzi/bot-memory/internal/safety"
	"github.com/ctavolazzi/bot-memory/internal/store"
)

func newTestCoupler(t *testing.T) (*Coupler, *store.SQLiteStore, string) {
	t.Helper()
	workspace := t.TempDir()

	st, err := store.NewSQLiteStore(filepath.Join(workspace, "bot_data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	gate, err := safety.NewGate(workspace, st)
	require.NoError(t, err)

	return New(gate, zap.NewNop()), st, workspace
}

func TestUncoupledOperationsFail(t *testing.T) {
	c, _, _ := newTestCoupler(t)
	ctx := context.Background()

	assert.False(t, c.Coupled())
	assert.Empty(t, c.Path())

	err := c.Store(ctx, "k", "v")
	assert.ErrorIs(t, err, model.ErrNotCoupled)

	_, err = c.Retrieve(ctx, "k")
	assert.ErrorIs(t, err, model.ErrNotCoupled)
}

func TestCoupleInsideWorkspace(t *testing.T) {
	c, _, workspace := newTestCoupler(t)
	ctx := context.Background()

	dir := filepath.Join(workspace, "shared")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, c.Couple(ctx, dir, true))
	defer c.Uncouple()

	assert.True(t, c.Coupled())

	require.NoError(t, c.Store(ctx, "x", 1))
	entry, err := c.Retrieve(ctx, "x")
	require.NoError(t, err)

	var got int
	require.NoError(t, entry.Decode(&got))
	assert.Equal(t, 1, got)
	assert.Equal(t, model.ScopeExternal, entry.Scope)
}

func TestCoupleOutsideFailsClosedAndRequestsGrant(t *testing.T) {
	c, st, _ := newTestCoupler(t)
	ctx := context.Background()

	outside := t.TempDir()
	err := c.Couple(ctx, outside, true)
	require.ErrorIs(t, err, model.ErrPermissionDenied)
	assert.False(t, c.Coupled())

	grants, err := st.ListGrants(ctx)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, model.GrantPending, grants[0].Status)
	assert.True(t, grants[0].AllowRead)
	assert.True(t, grants[0].AllowWrite)
}

func TestCoupleOutsideWithoutRequest(t *testing.T) {
	c, st, _ := newTestCoupler(t)
	ctx := context.Background()

	err := c.Couple(ctx, t.TempDir(), false)
	require.ErrorIs(t, err, model.ErrPermissionDenied)

	grants, err := st.ListGrants(ctx)
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestCoupleOutsideAfterGrant(t *testing.T) {
	c, st, _ := newTestCoupler(t)
	ctx := context.Background()

	outside := t.TempDir()
	require.ErrorIs(t, c.Couple(ctx, outside, true), model.ErrPermissionDenied)

	pending, err := st.ListGrants(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = st.RecordGrant(ctx, store.GrantParams{
		PathPrefix: pending[0].PathPrefix,
		AllowRead:  true,
		AllowWrite: true,
	})
	require.NoError(t, err)

	require.NoError(t, c.Couple(ctx, outside, true))
	defer c.Uncouple()

	require.NoError(t, c.Store(ctx, "x", "1"))
	entry, err := c.Retrieve(ctx, "x")
	require.NoError(t, err)

	var got string
	require.NoError(t, entry.Decode(&got))
	assert.Equal(t, "1", got)
}

func TestUncoupleDetachesButKeepsFiles(t *testing.T) {
	c, _, workspace := newTestCoupler(t)
	ctx := context.Background()

	dir := filepath.Join(workspace, "shared")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, c.Couple(ctx, dir, true))
	require.NoError(t, c.Store(ctx, "persisted", true))

	c.Uncouple()
	assert.False(t, c.Coupled())

	_, err := c.Retrieve(ctx, "persisted")
	assert.ErrorIs(t, err, model.ErrNotCoupled)

	_, err = os.Stat(filepath.Join(dir, "memory.db"))
	assert.NoError(t, err, "backing files survive uncoupling")

	// Re-coupling sees the earlier write.
	require.NoError(t, c.Couple(ctx, dir, true))
	defer c.Uncouple()
	entry, err := c.Retrieve(ctx, "persisted")
	require.NoError(t, err)

	var got bool
	require.NoError(t, entry.Decode(&got))
	assert.True(t, got)
}

func TestRecoupleReplacesPrevious(t *testing.T) {
	c, _, workspace := newTestCoupler(t)
	ctx := context.Background()

	a := filepath.Join(workspace, "a")
	b := filepath.Join(workspace, "b")
	require.NoError(t, os.MkdirAll(a, 0o755))
	require.NoError(t, os.MkdirAll(b, 0o755))

	require.NoError(t, c.Couple(ctx, a, true))
	require.NoError(t, c.Store(ctx, "where", "a"))

	require.NoError(t, c.Couple(ctx, b, true))
	defer c.Uncouple()

	_, err := c.Retrieve(ctx, "where")
	assert.ErrorIs(t, err, model.ErrNotFound)

	status := c.Status()
	assert.True(t, status.Coupled)
	canonical, err := safety.Canonical(b)
	require.NoError(t, err)
	assert.Equal(t, canonical, status.Path)
}
