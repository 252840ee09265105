package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync/atomic"

	"journalrag/internal/domain"
	"journalrag/internal/port"
)

// Search defaults used when the caller does not choose.
const (
	DefaultTopK     = 10
	DefaultMinScore = 0.25
)

// ProgressFunc is called after each chunk is ingested.
type ProgressFunc func(done, total int)

// RetrievalEngine ingests chunks and answers similarity and per-document
// lookups over a ChunkStore.
type RetrievalEngine struct {
	store    *ChunkStore
	embedder port.Embedder
	logger   *slog.Logger
	skipped  atomic.Int64
}

var _ port.Retriever = (*RetrievalEngine)(nil)

// NewRetrievalEngine creates a new retrieval engine.
func NewRetrievalEngine(store *ChunkStore, embedder port.Embedder, logger *slog.Logger) *RetrievalEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalEngine{
		store:    store,
		embedder: embedder,
		logger:   logger,
	}
}

// Store returns the underlying chunk store.
func (e *RetrievalEngine) Store() *ChunkStore {
	return e.store
}

// Skipped returns how many stored records were dropped as malformed.
func (e *RetrievalEngine) Skipped() int64 {
	return e.skipped.Load()
}

// Ingest embeds and stores chunks in order. The first failure stops the
// batch; chunks stored before it stay stored. It returns how many chunks
// were stored.
func (e *RetrievalEngine) Ingest(ctx context.Context, chunks []domain.Chunk, schemaVersion string) (int, error) {
	return e.IngestWithProgress(ctx, chunks, schemaVersion, nil)
}

// IngestWithProgress is Ingest with a per-chunk progress callback.
func (e *RetrievalEngine) IngestWithProgress(ctx context.Context, chunks []domain.Chunk, schemaVersion string, progress ProgressFunc) (int, error) {
	if schemaVersion == "" {
		return 0, fmt.Errorf("%w: schema_version is required", domain.ErrValidation)
	}

	for i, c := range chunks {
		if err := c.Validate(); err != nil {
			return i, err
		}

		vector, err := e.embed(ctx, c.Text)
		if err != nil {
			return i, fmt.Errorf("chunk %s: %w", c.ID, err)
		}

		if err := e.store.Add(ctx, c.ID, vector, domain.EncodeChunk(c, schemaVersion), c.Text); err != nil {
			return i, err
		}

		if progress != nil {
			progress(i+1, len(chunks))
		}
	}

	e.logger.Info("ingested chunks", "count", len(chunks), "schema_version", schemaVersion)
	return len(chunks), nil
}

// Search returns chunks similar to query with a similarity of at least
// minScore, highest similarity first. Equal scores keep index order.
func (e *RetrievalEngine) Search(ctx context.Context, query string, k int, minScore float64) ([]domain.Match, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrValidation)
	}

	vector, err := e.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := e.store.QueryByVector(ctx, vector, k)
	if err != nil {
		return nil, err
	}

	matches := make([]domain.Match, 0, len(hits))
	for _, hit := range hits {
		rec, err := domain.DecodeRecord(hit.ID, hit.Text, hit.Metadata)
		if err != nil {
			e.skip(hit.ID, err)
			continue
		}

		similarity := roundScore(1 - hit.Distance)
		if similarity < minScore {
			continue
		}
		matches = append(matches, domain.Match{ChunkRecord: rec, Similarity: similarity})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	e.logger.Debug("search", "query_len", len(query), "k", k, "min_score", minScore, "hits", len(hits), "matches", len(matches))
	return matches, nil
}

// ByDocument returns every chunk of docID ordered by chunk_index. A
// record without a chunk_index sorts as 0.
func (e *RetrievalEngine) ByDocument(ctx context.Context, docID string) ([]domain.ChunkRecord, error) {
	if docID == "" {
		return nil, fmt.Errorf("%w: document id is empty", domain.ErrValidation)
	}

	entries, err := e.store.GetByDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no chunks for document %s", domain.ErrNotFound, docID)
	}

	records := make([]domain.ChunkRecord, 0, len(entries))
	for _, entry := range entries {
		rec, err := domain.DecodeRecord(entry.ID, entry.Text, entry.Metadata)
		if err != nil {
			e.skip(entry.ID, err)
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no readable chunks for document %s", domain.ErrNotFound, docID)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Index() < records[j].Index()
	})
	return records, nil
}

// Documents returns the distinct source document ids in the store, sorted.
func (e *RetrievalEngine) Documents(ctx context.Context) ([]string, error) {
	entries, err := e.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	ids := []string{}
	for _, entry := range entries {
		docID, _ := entry.Metadata[domain.KeySourceDocID].(string)
		if docID == "" {
			continue
		}
		if _, ok := seen[docID]; ok {
			continue
		}
		seen[docID] = struct{}{}
		ids = append(ids, docID)
	}
	sort.Strings(ids)
	return ids, nil
}

// Listing is a diagnostic snapshot of the store.
type Listing struct {
	IDs       []string          `json:"ids"`
	NumChunks int               `json:"num_chunks"`
	Metadatas []domain.Metadata `json:"metadatas"`
}

// List returns every id and the metadata of the first sample entries.
func (e *RetrievalEngine) List(ctx context.Context, sample int) (Listing, error) {
	entries, err := e.store.GetAll(ctx)
	if err != nil {
		return Listing{}, err
	}

	listing := Listing{
		IDs:       make([]string, len(entries)),
		NumChunks: len(entries),
		Metadatas: []domain.Metadata{},
	}
	for i, entry := range entries {
		listing.IDs[i] = entry.ID
		if i < sample {
			listing.Metadatas = append(listing.Metadatas, entry.Metadata)
		}
	}
	return listing, nil
}

func (e *RetrievalEngine) embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedder.Embed(ctx, []string{text})
	if err != nil {
		if errors.Is(err, domain.ErrEmbedding) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", domain.ErrEmbedding, len(vectors))
	}
	return vectors[0], nil
}

func (e *RetrievalEngine) skip(id string, reason error) {
	e.skipped.Add(1)
	e.logger.Warn("skipping stored record", "id", id, "reason", reason)
}

// roundScore rounds the exact binary value of x to three decimals.
func roundScore(x float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 3, 64), 64)
	return v
}
