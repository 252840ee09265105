// Package indextest is a behavioural test suite every port.ChunkIndex
// implementation runs from its own tests.
package indextest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journalrag/internal/domain"
	"journalrag/internal/port"
)

// Dimension is the vector length the suite opens indexes with.
const Dimension = 3

// Factory opens an empty index with the given dimension. Implementations
// register cleanup with t.
type Factory func(t *testing.T, dimension int) port.ChunkIndex

func md(docID string, index int) domain.Metadata {
	return domain.Metadata{
		domain.KeySourceDocID: docID,
		domain.KeyChunkIndex:  int64(index),
		domain.KeyJournal:     "Journal of Tests",
		"score":               0.5,
		"flag":                true,
	}
}

// Run executes the suite.
func Run(t *testing.T, open Factory) {
	t.Run("EmptyIndex", func(t *testing.T) { testEmpty(t, open) })
	t.Run("UpsertAndGetAll", func(t *testing.T) { testUpsertAndGetAll(t, open) })
	t.Run("UpsertOverwrites", func(t *testing.T) { testUpsertOverwrites(t, open) })
	t.Run("QueryOrdering", func(t *testing.T) { testQueryOrdering(t, open) })
	t.Run("QueryTiesAndZeroVector", func(t *testing.T) { testQueryTies(t, open) })
	t.Run("GetByField", func(t *testing.T) { testGetByField(t, open) })
	t.Run("DimensionMismatch", func(t *testing.T) { testDimensionMismatch(t, open) })
}

func testEmpty(t *testing.T, open Factory) {
	ctx := context.Background()
	idx := open(t, Dimension)

	assert.Equal(t, Dimension, idx.Dimension())

	all, err := idx.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	hits, err := idx.Query(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testUpsertAndGetAll(t *testing.T, open Factory) {
	ctx := context.Background()
	idx := open(t, Dimension)

	require.NoError(t, idx.Upsert(ctx, "b", []float32{0, 1, 0}, md("d1", 1), "second"))
	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0, 0}, md("d1", 0), "first"))

	all, err := idx.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "first", all[0].Text)
	assert.Equal(t, "b", all[1].ID)
	assert.Equal(t, md("d1", 0).Normalized(), all[0].Metadata)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testUpsertOverwrites(t *testing.T, open Factory) {
	ctx := context.Background()
	idx := open(t, Dimension)

	require.NoError(t, idx.Upsert(ctx, "c1", []float32{1, 0, 0}, md("d1", 0), "old"))
	require.NoError(t, idx.Upsert(ctx, "c1", []float32{0, 0, 1}, md("d2", 4), "new"))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	old, err := idx.GetByField(ctx, domain.KeySourceDocID, "d1")
	require.NoError(t, err)
	assert.Empty(t, old)

	moved, err := idx.GetByField(ctx, domain.KeySourceDocID, "d2")
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, "new", moved[0].Text)
	assert.Equal(t, int64(4), moved[0].Metadata[domain.KeyChunkIndex])

	hits, err := idx.Query(ctx, []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-6)
}

func testQueryOrdering(t *testing.T, open Factory) {
	ctx := context.Background()
	idx := open(t, Dimension)

	require.NoError(t, idx.Upsert(ctx, "near", []float32{1, 0.1, 0}, md("d1", 0), "near"))
	require.NoError(t, idx.Upsert(ctx, "mid", []float32{1, 1, 0}, md("d1", 1), "mid"))
	require.NoError(t, idx.Upsert(ctx, "far", []float32{-1, 0, 0}, md("d1", 2), "far"))

	hits, err := idx.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].ID)
	assert.Equal(t, "mid", hits[1].ID)
	assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance)
	assert.Equal(t, "near", hits[0].Text)
	assert.Equal(t, "d1", hits[0].Metadata[domain.KeySourceDocID])

	// k larger than the index returns everything
	hits, err = idx.Query(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "far", hits[2].ID)
	assert.InDelta(t, 2.0, hits[2].Distance, 1e-6)
}

func testQueryTies(t *testing.T, open Factory) {
	ctx := context.Background()
	idx := open(t, Dimension)

	require.NoError(t, idx.Upsert(ctx, "z", []float32{0, 1, 0}, md("d1", 0), "z"))
	require.NoError(t, idx.Upsert(ctx, "y", []float32{0, 2, 0}, md("d1", 1), "y"))
	require.NoError(t, idx.Upsert(ctx, "zero", []float32{0, 0, 0}, md("d1", 2), "zero"))

	hits, err := idx.Query(ctx, []float32{0, 1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"y", "z", "zero"}, []string{hits[0].ID, hits[1].ID, hits[2].ID})
	assert.InDelta(t, 1.0, hits[2].Distance, 1e-6)
}

func testGetByField(t *testing.T, open Factory) {
	ctx := context.Background()
	idx := open(t, Dimension)

	require.NoError(t, idx.Upsert(ctx, "c2", []float32{1, 0, 0}, md("d1", 1), "two"))
	require.NoError(t, idx.Upsert(ctx, "c1", []float32{0, 1, 0}, md("d1", 0), "one"))
	require.NoError(t, idx.Upsert(ctx, "c3", []float32{0, 0, 1}, md("d2", 0), "three"))

	got, err := idx.GetByField(ctx, domain.KeySourceDocID, "d1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, "c2", got[1].ID)

	none, err := idx.GetByField(ctx, domain.KeySourceDocID, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)

	byJournal, err := idx.GetByField(ctx, domain.KeyJournal, "Journal of Tests")
	require.NoError(t, err)
	assert.Len(t, byJournal, 3)
}

func testDimensionMismatch(t *testing.T, open Factory) {
	ctx := context.Background()
	idx := open(t, Dimension)

	assert.Error(t, idx.Upsert(ctx, "bad", []float32{1, 0}, md("d1", 0), "bad"))

	_, err := idx.Query(ctx, []float32{1, 0, 0, 0}, 1)
	assert.Error(t, err)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
