package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"journalrag/internal/adapter/vecmath"
	"journalrag/internal/domain"
	"journalrag/internal/port"
)

// MemoryStore is a process-local chunk index. Nothing survives a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]entry
	docChunks map[string]map[string]struct{}
}

type entry struct {
	vector   []float32
	metadata domain.Metadata
	text     string
}

var _ port.ChunkIndex = (*MemoryStore)(nil)

func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension: dimension,
		entries:   make(map[string]entry),
		docChunks: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Dimension() int {
	return s.dimension
}

func (s *MemoryStore) Upsert(ctx context.Context, id string, vector []float32, md domain.Metadata, text string) error {
	if len(vector) != s.dimension {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}
	if err := md.Validate(); err != nil {
		return err
	}

	v := make([]float32, len(vector))
	copy(v, vector)

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[id]; ok {
		if docID, _ := old.metadata[domain.KeySourceDocID].(string); docID != "" {
			delete(s.docChunks[docID], id)
			if len(s.docChunks[docID]) == 0 {
				delete(s.docChunks, docID)
			}
		}
	}

	s.entries[id] = entry{vector: v, metadata: md.Normalized(), text: text}
	if docID, _ := md[domain.KeySourceDocID].(string); docID != "" {
		if s.docChunks[docID] == nil {
			s.docChunks[docID] = make(map[string]struct{})
		}
		s.docChunks[docID][id] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, vector []float32, k int) ([]port.IndexHit, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]vecmath.Candidate, 0, len(s.entries))
	for id, e := range s.entries {
		candidates = append(candidates, vecmath.Candidate{ID: id, Distance: vecmath.CosineDistance(vector, e.vector)})
	}

	top := vecmath.TopK(candidates, k)
	hits := make([]port.IndexHit, len(top))
	for i, c := range top {
		hits[i] = port.IndexHit{IndexEntry: s.entryLocked(c.ID), Distance: c.Distance}
	}
	return hits, nil
}

func (s *MemoryStore) GetByField(ctx context.Context, field, value string) ([]port.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	if field == domain.KeySourceDocID {
		for id := range s.docChunks[value] {
			ids = append(ids, id)
		}
	} else {
		for id, e := range s.entries {
			if v, ok := e.metadata[field].(string); ok && v == value {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)

	out := make([]port.IndexEntry, len(ids))
	for i, id := range ids {
		out[i] = s.entryLocked(id)
	}
	return out, nil
}

func (s *MemoryStore) GetAll(ctx context.Context) ([]port.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]port.IndexEntry, len(ids))
	for i, id := range ids {
		out[i] = s.entryLocked(id)
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// entryLocked returns a copy of the stored entry; s.mu must be held.
func (s *MemoryStore) entryLocked(id string) port.IndexEntry {
	e := s.entries[id]
	md := make(domain.Metadata, len(e.metadata))
	for k, v := range e.metadata {
		md[k] = v
	}
	return port.IndexEntry{ID: id, Text: e.text, Metadata: md}
}
