package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"
	"journalrag/internal/adapter/vecmath"
)

var (
	bucketVectors = []byte("vectors")
)

// BoltVectorStore persists embedding vectors in BoltDB and searches them
// from an in-memory copy. Search is brute force over every vector.
type BoltVectorStore struct {
	db        *bbolt.DB
	dimension int
	mu        sync.RWMutex
	// In-memory cache for fast search
	vectors map[string][]float32
}

type storedVector struct {
	Vector []float32 `json:"v"`
}

// NewBoltVectorStore creates a new BoltDB-backed vector store.
func NewBoltVectorStore(db *bbolt.DB, dimension int) (*BoltVectorStore, error) {
	// Create bucket
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vectors bucket: %w", err)
	}

	store := &BoltVectorStore{
		db:        db,
		dimension: dimension,
		vectors:   make(map[string][]float32),
	}

	// Load existing vectors into memory
	if err := store.loadVectors(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return store, nil
}

// loadVectors loads all vectors from BoltDB into memory.
func (s *BoltVectorStore) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			if len(stored.Vector) != s.dimension {
				return nil
			}
			s.vectors[string(k)] = stored.Vector
			return nil
		})
	})
}

// put writes a vector inside a caller-owned write transaction. The caller
// must hold s.mu and call remember once the transaction commits.
func (s *BoltVectorStore) put(tx *bbolt.Tx, id string, vector []float32) error {
	if len(vector) != s.dimension {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}

	b := tx.Bucket(bucketVectors)
	if b == nil {
		return fmt.Errorf("vectors bucket not found")
	}

	data, err := json.Marshal(storedVector{Vector: vector})
	if err != nil {
		return err
	}
	return b.Put([]byte(id), data)
}

// remember updates the in-memory cache after a committed put.
func (s *BoltVectorStore) remember(id string, vector []float32) {
	v := make([]float32, len(vector))
	copy(v, vector)
	s.vectors[id] = v
}

// Search finds the k nearest vectors to the query by cosine distance.
func (s *BoltVectorStore) Search(query []float32, k int) ([]vecmath.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(query))
	}

	if len(s.vectors) == 0 {
		return nil, nil
	}

	candidates := make([]vecmath.Candidate, 0, len(s.vectors))
	for id, vector := range s.vectors {
		candidates = append(candidates, vecmath.Candidate{
			ID:       id,
			Distance: vecmath.CosineDistance(query, vector),
		})
	}

	return vecmath.TopK(candidates, k), nil
}

// Count returns the number of vectors in the store.
func (s *BoltVectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Dimension returns the vector length accepted by the store.
func (s *BoltVectorStore) Dimension() int {
	return s.dimension
}
