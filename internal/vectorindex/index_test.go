package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New(Config{Dimension: 3}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return idx
}

func TestNew_RejectsBadDimension(t *testing.T) {
	_, err := New(Config{Dimension: 0}, nil)
	assert.Error(t, err)
}

func TestAdd_RejectsWrongDimension(t *testing.T) {
	idx := newTestIndex(t)
	err := idx.Add(context.Background(), "e1", "", "text", []float32{1, 0})
	assert.Error(t, err)
}

func TestQuery_OrdersBySimilarity(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "north", "", "north", []float32{0, 1, 0}))
	require.NoError(t, idx.Add(ctx, "east", "", "east", []float32{1, 0, 0}))
	require.NoError(t, idx.Add(ctx, "northeast", "", "northeast", []float32{0.7071, 0.7071, 0}))

	hits, err := idx.Query(ctx, []float32{0, 1, 0}, "", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "north", hits[0].ID)
	assert.Equal(t, "northeast", hits[1].ID)
	assert.Equal(t, "east", hits[2].ID)
}

func TestQuery_ProjectScopeIncludesGlobal(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "global", "", "global entry", []float32{0, 1, 0}))
	require.NoError(t, idx.Add(ctx, "scoped", "proj-1", "scoped entry", []float32{0, 0.9, 0.1}))
	require.NoError(t, idx.Add(ctx, "other", "proj-2", "other project", []float32{0, 1, 0}))

	hits, err := idx.Query(ctx, []float32{0, 1, 0}, "proj-1", 5)
	require.NoError(t, err)

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	assert.Contains(t, ids, "global")
	assert.Contains(t, ids, "scoped")
	assert.NotContains(t, ids, "other")
}

func TestQuery_EmptyIndex(t *testing.T) {
	idx := newTestIndex(t)
	hits, err := idx.Query(context.Background(), []float32{0, 1, 0}, "", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestQuery_Idempotent(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "a", "", "a", []float32{0, 1, 0}))
	require.NoError(t, idx.Add(ctx, "b", "", "b", []float32{1, 0, 0}))

	first, err := idx.Query(ctx, []float32{0.5, 0.5, 0}, "", 2)
	require.NoError(t, err)
	second, err := idx.Query(ctx, []float32{0.5, 0.5, 0}, "", 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDeleteAndReset(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "a", "", "a", []float32{0, 1, 0}))
	require.NoError(t, idx.Add(ctx, "b", "", "b", []float32{1, 0, 0}))
	assert.Equal(t, 2, idx.Count())

	require.NoError(t, idx.Delete(ctx, "a"))
	assert.Equal(t, 1, idx.Count())

	require.NoError(t, idx.Reset())
	assert.Equal(t, 0, idx.Count())
}
