package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctavolazzi/bot-memory/internal/model"
)

func TestExtractTags(t *testing.T) {
	assert.Equal(t, []string{"problem", "plan"}, ExtractTags("We have a PROBLEM and a plan to fix it"))
	assert.Equal(t, []string{"general"}, ExtractTags("nothing keyword-ish here"))

	// Deterministic for identical input.
	assert.Equal(t, ExtractTags("decision time"), ExtractTags("decision time"))
}

func TestRecordThought(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec, err := s.RecordThought(ctx, "processing", "working on a solution", nil, nil)
	require.NoError(t, err)
	assert.Positive(t, rec.ID)
	assert.Equal(t, []string{"solution"}, rec.Tags)
	assert.Nil(t, rec.ParentID)

	explicit, err := s.RecordThought(ctx, "note", "tagged by hand", []string{"custom"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"custom"}, explicit.Tags)
}

func TestRecordThoughtMissingParent(t *testing.T) {
	s := newTestStore(t)

	missing := int64(9999)
	_, err := s.RecordThought(context.Background(), "note", "orphan", nil, &missing)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestThoughtChain(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	root, err := s.RecordThought(ctx, "plan", "step one", nil, nil)
	require.NoError(t, err)
	mid, err := s.RecordThought(ctx, "plan", "step two", nil, &root.ID)
	require.NoError(t, err)
	leaf, err := s.RecordThought(ctx, "plan", "step three", nil, &mid.ID)
	require.NoError(t, err)

	chain, err := s.ThoughtChain(ctx, leaf.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, root.ID, chain[0].ID)
	assert.Equal(t, mid.ID, chain[1].ID)
	assert.Equal(t, leaf.ID, chain[2].ID)

	single, err := s.ThoughtChain(ctx, root.ID)
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = s.ThoughtChain(ctx, 12345)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestQueryThoughtsByType(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.RecordThought(ctx, "error", "boom", nil, nil)
	s.RecordThought(ctx, "processing", "fine", nil, nil)
	s.RecordThought(ctx, "error", "boom again", nil, nil)

	errs, err := s.QueryThoughts(ctx, ThoughtFilter{Type: "error"})
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, "boom", errs[0].Content)
	assert.Equal(t, "boom again", errs[1].Content)
}

func TestQueryThoughtsTagSuperset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.RecordThought(ctx, "note", "both", []string{"problem", "plan"}, nil)
	s.RecordThought(ctx, "note", "plan only", []string{"plan"}, nil)
	s.RecordThought(ctx, "note", "neither", []string{"misc"}, nil)

	got, err := s.QueryThoughts(ctx, ThoughtFilter{Tags: []string{"plan"}})
	require.NoError(t, err)
	require.Len(t, got, 2)

	both, err := s.QueryThoughts(ctx, ThoughtFilter{Tags: []string{"problem", "plan"}})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "both", both[0].Content)
}

func TestQueryThoughtsOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.RecordThought(ctx, "note", "first", nil, nil)
	s.RecordThought(ctx, "note", "second", nil, nil)
	s.RecordThought(ctx, "note", "third", nil, nil)

	asc, err := s.QueryThoughts(ctx, ThoughtFilter{})
	require.NoError(t, err)
	require.Len(t, asc, 3)
	assert.Equal(t, "first", asc[0].Content)

	desc, err := s.QueryThoughts(ctx, ThoughtFilter{Descending: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, "third", desc[0].Content)
	assert.Equal(t, "second", desc[1].Content)
}

func TestQueryThoughtsByParent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	root, err := s.RecordThought(ctx, "plan", "root", nil, nil)
	require.NoError(t, err)
	s.RecordThought(ctx, "plan", "child a", nil, &root.ID)
	s.RecordThought(ctx, "plan", "child b", nil, &root.ID)

	kids, err := s.QueryThoughts(ctx, ThoughtFilter{ParentID: &root.ID})
	require.NoError(t, err)
	assert.Len(t, kids, 2)
}
