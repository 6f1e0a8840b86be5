package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctavolazzi/bot-memory/internal/llm"
	"github.com/ctavolazzi/bot-memory/internal/model"
	"github.com/ctavolazzi/bot-memory/internal/store"
)

func newTestBot(t *testing.T, gen llm.Generator) *Bot {
	t.Helper()
	b, err := New(context.Background(), Options{
		WorkingDir: t.TempDir(),
		Generator:  gen,
	})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func okGenerator(calls *int) llm.Func {
	return func(ctx context.Context, payload string) (string, error) {
		*calls++
		return "ok", nil
	}
}

func actionNames(t *testing.T, b *Bot) []string {
	t.Helper()
	entries, err := b.Store().RecentActions(context.Background(), 0)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Action
	}
	return names
}

func TestNewValidations(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Options{Generator: llm.Unavailable{}})
	assert.Error(t, err)

	_, err = New(ctx, Options{WorkingDir: t.TempDir()})
	assert.Error(t, err)
}

func TestProcessRecordsEverything(t *testing.T) {
	ctx := context.Background()
	calls := 0
	b := newTestBot(t, okGenerator(&calls))

	res, err := b.Process(ctx, "Hello World", false)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Response)
	assert.Equal(t, 1, res.Attempt)
	assert.False(t, res.Reused)
	assert.Equal(t, 1, calls)

	// The ledger entry is findable across whitespace and case variants.
	rec, err := b.Store().FindExact(ctx, "  hello \n WORLD ")
	require.NoError(t, err)
	assert.Equal(t, res.RequestHash, rec.Hash)

	attempts, err := b.Store().ListAttempts(ctx, res.RequestHash)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Accepted)
	assert.Equal(t, "ok", attempts[0].ResponseText)

	thoughts, err := b.Store().QueryThoughts(ctx, store.ThoughtFilter{Type: "processing"})
	require.NoError(t, err)
	assert.Len(t, thoughts, 1)

	names := actionNames(t, b)
	assert.Contains(t, names, "api_call")
	assert.Contains(t, names, "process")
}

func TestProcessReusesAcceptedResponse(t *testing.T) {
	ctx := context.Background()
	calls := 0
	b := newTestBot(t, okGenerator(&calls))

	first, err := b.Process(ctx, "Hello World", false)
	require.NoError(t, err)

	second, err := b.Process(ctx, "  hello   world ", false)
	require.NoError(t, err)

	assert.True(t, second.Reused)
	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, first.RequestHash, second.RequestHash)
	assert.Equal(t, 1, calls, "generator must not run for a reused response")
	assert.Contains(t, actionNames(t, b), "reuse_response")
}

func TestProcessIncludesContext(t *testing.T) {
	ctx := context.Background()
	var payload string
	b := newTestBot(t, llm.Func(func(ctx context.Context, p string) (string, error) {
		payload = p
		return "ok", nil
	}))

	_, err := b.Process(ctx, "with context", true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(payload, "with context\n\n---\n\nCurrent Context:\n"))
	assert.Contains(t, payload, "# Current Context")

	_, err = b.Process(ctx, "without context", false)
	require.NoError(t, err)
	assert.Equal(t, "without context", payload)
}

func TestProcessGenerationFailure(t *testing.T) {
	ctx := context.Background()
	calls := 0
	b := newTestBot(t, llm.Func(func(ctx context.Context, p string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("boom")
		}
		return "recovered", nil
	}))

	_, err := b.Process(ctx, "fragile prompt", false)
	require.ErrorIs(t, err, model.ErrGeneration)

	thoughts, err := b.Store().QueryThoughts(ctx, store.ThoughtFilter{Type: "error"})
	require.NoError(t, err)
	assert.Len(t, thoughts, 1)
	assert.Contains(t, actionNames(t, b), "api_error")

	// The failure left no attempt behind, so a retry reaches the
	// generator again.
	attempts, err := b.Store().ListAttempts(ctx, store.Digest("fragile prompt"))
	require.NoError(t, err)
	assert.Empty(t, attempts)

	res, err := b.Process(ctx, "fragile prompt", false)
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Response)
	assert.Equal(t, 1, res.Attempt)
	assert.Equal(t, 2, calls)
}

func TestRememberRecall(t *testing.T) {
	ctx := context.Background()
	b := newTestBot(t, llm.Unavailable{})

	require.NoError(t, b.Remember(ctx, model.ScopeInternal, "color", "blue"))

	entry, err := b.Recall(ctx, model.ScopeInternal, "color")
	require.NoError(t, err)

	var got string
	require.NoError(t, entry.Decode(&got))
	assert.Equal(t, "blue", got)

	names := actionNames(t, b)
	assert.Contains(t, names, "memory_write")
	assert.Contains(t, names, "memory_read")

	_, err = b.Recall(ctx, model.ScopeInternal, "absent")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRememberUnknownScope(t *testing.T) {
	b := newTestBot(t, llm.Unavailable{})

	err := b.Remember(context.Background(), model.Scope("bogus"), "k", "v")
	assert.ErrorContains(t, err, "unknown memory scope")
}

func TestRecallExternalNotCoupled(t *testing.T) {
	b := newTestBot(t, llm.Unavailable{})

	_, err := b.Recall(context.Background(), model.ScopeExternal, "k")
	assert.ErrorIs(t, err, model.ErrNotCoupled)
}

func TestBatchReflect(t *testing.T) {
	ctx := context.Background()
	b := newTestBot(t, llm.Func(func(ctx context.Context, p string) (string, error) {
		return "actions reviewed", nil
	}))

	require.NoError(t, b.Store().LogAction(ctx, "custom_step", map[string]any{"n": 1}))

	summary, err := b.BatchReflect(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "actions reviewed", summary)

	entries, err := b.Store().RecentActions(ctx, 0)
	require.NoError(t, err)
	for _, e := range entries {
		if e.Action == "custom_step" {
			assert.Equal(t, "actions reviewed", e.Reflection)
		}
	}

	thoughts, err := b.Store().QueryThoughts(ctx, store.ThoughtFilter{Type: "reflection"})
	require.NoError(t, err)
	assert.Len(t, thoughts, 1)
	assert.Contains(t, actionNames(t, b), "reflection")
}

func TestBatchReflectNothingPending(t *testing.T) {
	ctx := context.Background()
	calls := 0
	b := newTestBot(t, okGenerator(&calls))

	pending, err := b.Store().ActionsWithoutReflection(ctx, 0)
	require.NoError(t, err)
	for _, e := range pending {
		require.NoError(t, b.Store().SetReflection(ctx, e.ID, "done"))
	}

	summary, err := b.BatchReflect(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, summary)
	assert.Zero(t, calls, "generator must not run with nothing to reflect on")
}
