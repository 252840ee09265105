package port

import (
	"context"

	"journalrag/internal/domain"
)

// Retriever answers similarity and document-scoped lookups over ingested chunks.
type Retriever interface {
	// Search returns matches for the query sorted by similarity, highest first.
	Search(ctx context.Context, query string, k int, minScore float64) ([]domain.Match, error)

	// ByDocument returns every chunk of a document ordered by chunk index.
	ByDocument(ctx context.Context, docID string) ([]domain.ChunkRecord, error)
}
