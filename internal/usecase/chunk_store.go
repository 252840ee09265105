package usecase

import (
	"context"
	"fmt"

	"journalrag/internal/domain"
	"journalrag/internal/port"
)

// ChunkStore guards a chunk index with the validation and error kinds the
// rest of the service relies on. It never retries a failed backend call.
type ChunkStore struct {
	index port.ChunkIndex
}

// NewChunkStore wraps an opened index. The caller keeps ownership of the
// index lifecycle and closes it through Close.
func NewChunkStore(index port.ChunkIndex) *ChunkStore {
	return &ChunkStore{index: index}
}

// Dimension returns the vector length the store accepts.
func (s *ChunkStore) Dimension() int {
	return s.index.Dimension()
}

// Add inserts or overwrites a chunk.
func (s *ChunkStore) Add(ctx context.Context, id string, vector []float32, md domain.Metadata, text string) error {
	if id == "" {
		return fmt.Errorf("%w: id is empty", domain.ErrValidation)
	}
	if err := s.checkDimension(vector); err != nil {
		return err
	}
	if err := md.Validate(); err != nil {
		return err
	}

	if err := s.index.Upsert(ctx, id, vector, md, text); err != nil {
		return fmt.Errorf("%w: add %s: %w", domain.ErrStorage, id, err)
	}
	return nil
}

// QueryByVector returns up to k chunks nearest to vector, nearest first.
func (s *ChunkStore) QueryByVector(ctx context.Context, vector []float32, k int) ([]port.IndexHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrValidation, k)
	}
	if err := s.checkDimension(vector); err != nil {
		return nil, err
	}

	hits, err := s.index.Query(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", domain.ErrStorage, err)
	}
	return hits, nil
}

// GetByDocument returns every chunk whose source_doc_id equals docID.
// An unknown document yields an empty result.
func (s *ChunkStore) GetByDocument(ctx context.Context, docID string) ([]port.IndexEntry, error) {
	entries, err := s.index.GetByField(ctx, domain.KeySourceDocID, docID)
	if err != nil {
		return nil, fmt.Errorf("%w: get document %s: %w", domain.ErrStorage, docID, err)
	}
	return entries, nil
}

// GetAll returns every stored chunk.
func (s *ChunkStore) GetAll(ctx context.Context) ([]port.IndexEntry, error) {
	entries, err := s.index.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", domain.ErrStorage, err)
	}
	return entries, nil
}

// Count returns the number of stored chunks.
func (s *ChunkStore) Count(ctx context.Context) (int, error) {
	n, err := s.index.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", domain.ErrStorage, err)
	}
	return n, nil
}

// Close releases the underlying index.
func (s *ChunkStore) Close() error {
	return s.index.Close()
}

func (s *ChunkStore) checkDimension(vector []float32) error {
	if want := s.index.Dimension(); len(vector) != want {
		return fmt.Errorf("%w: vector has %d dimensions, store expects %d", domain.ErrValidation, len(vector), want)
	}
	return nil
}
