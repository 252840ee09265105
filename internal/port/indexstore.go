package port

import (
	"context"

	"journalrag/internal/domain"
)

// ChunkIndex is a persistent vector index holding one vector, one text and
// one flat metadata map per id.
type ChunkIndex interface {
	// Upsert inserts or overwrites the entry for id.
	Upsert(ctx context.Context, id string, vector []float32, md domain.Metadata, text string) error

	// Query returns up to k entries nearest to vector by cosine distance,
	// ascending, ties broken by id.
	Query(ctx context.Context, vector []float32, k int) ([]IndexHit, error)

	// GetByField returns every entry whose metadata field equals value.
	GetByField(ctx context.Context, field, value string) ([]IndexEntry, error)

	// GetAll returns every entry ordered by id.
	GetAll(ctx context.Context) ([]IndexEntry, error)

	Count(ctx context.Context) (int, error)

	// Dimension is the fixed vector length of the index.
	Dimension() int

	Close() error
}

// IndexEntry is a stored entry. Metadata is nil when the stored map
// could not be decoded.
type IndexEntry struct {
	ID       string
	Text     string
	Metadata domain.Metadata
}

// IndexHit is a query result.
type IndexHit struct {
	IndexEntry
	Distance float64 // 1 - cosine similarity, in [0, 2]
}
