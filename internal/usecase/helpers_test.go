package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"journalrag/internal/adapter/memstore"
	"journalrag/internal/domain"
	"journalrag/internal/port"
)

const testDim = 3

// fakeEmbedder maps known texts to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"alpha":            {1, 0, 0},
		"beta":             {0, 1, 0},
		"gamma":            {0.6, 0.8, 0},
		"same":             {0, 0, 1},
		"alpha-like query": {0.5, 0.5, 0.70710678},
	}}
}

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func (e *fakeEmbedder) Dimension() int    { return testDim }
func (e *fakeEmbedder) ModelName() string { return "fake" }

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
	systems []string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.GenerateWithSystem(ctx, "", prompt)
}

func (g *fakeGenerator) GenerateWithSystem(ctx context.Context, system, prompt string) (string, error) {
	g.systems = append(g.systems, system)
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *fakeGenerator) ModelName() string { return "fake-llm" }

// wordTokenizer counts whitespace separated words.
type wordTokenizer struct{}

func (wordTokenizer) Tokenize(text string) []string { return strings.Fields(text) }
func (wordTokenizer) CountTokens(text string) int   { return len(strings.Fields(text)) }

// failingIndex wraps an index and fails writes or reads on demand.
type failingIndex struct {
	port.ChunkIndex
	upsertErr error
	queryErr  error
	hits      []port.IndexHit
}

func (f *failingIndex) Upsert(ctx context.Context, id string, vector []float32, md domain.Metadata, text string) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.ChunkIndex.Upsert(ctx, id, vector, md, text)
}

func (f *failingIndex) Query(ctx context.Context, vector []float32, k int) ([]port.IndexHit, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.hits != nil {
		return f.hits, nil
	}
	return f.ChunkIndex.Query(ctx, vector, k)
}

var errBackend = errors.New("backend down")

func strPtr(s string) *string { return &s }

func chunk(id, doc string, index int, text string, attrs ...string) domain.Chunk {
	if attrs == nil {
		attrs = []string{}
	}
	return domain.Chunk{
		ID:             id,
		SourceDocID:    doc,
		ChunkIndex:     index,
		SectionHeading: "Results",
		Journal:        "Plant Physiology",
		PublishYear:    2021,
		Attributes:     attrs,
		Text:           text,
	}
}

func newTestEngine(t *testing.T) (*RetrievalEngine, *fakeEmbedder) {
	t.Helper()
	embedder := newFakeEmbedder()
	store := NewChunkStore(memstore.NewMemoryStore(testDim))
	t.Cleanup(func() { store.Close() })
	return NewRetrievalEngine(store, embedder, nil), embedder
}

func ingest(t *testing.T, engine *RetrievalEngine, chunks ...domain.Chunk) {
	t.Helper()
	n, err := engine.Ingest(context.Background(), chunks, "1.0")
	require.NoError(t, err)
	require.Equal(t, len(chunks), n)
}

func matchIDs(matches []domain.Match) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	return ids
}
