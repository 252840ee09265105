package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"
	"journalrag/internal/domain"
	"journalrag/internal/port"
)

var (
	bucketChunks    = []byte("chunks") // id -> typed metadata json
	bucketBlobs     = []byte("blobs")  // id -> document text
	bucketDocChunks = []byte("doc_chunks")
	bucketStats     = []byte("stats")
)

// BoltStore is a single-file chunk index on BoltDB.
type BoltStore struct {
	db      *bbolt.DB
	vectors *BoltVectorStore
}

var _ port.ChunkIndex = (*BoltStore)(nil)

// NewBoltStore opens or creates the index at path. The index remembers the
// embedding model and dimension it was built with and refuses to open with
// different ones.
func NewBoltStore(path string, dimension int, model string) (*BoltStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketChunks, bucketBlobs, bucketDocChunks, bucketStats}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{db: db}

	migration, err := s.CheckMigration(dimension, model)
	if err != nil {
		db.Close()
		return nil, err
	}
	if migration.NeedsRebuild {
		db.Close()
		return nil, fmt.Errorf("%w: %s", domain.ErrIndexMismatch, migration.Reason)
	}
	if migration.NeedsMigration {
		if err := s.Migrate(dimension, model); err != nil {
			db.Close()
			return nil, err
		}
	}

	s.vectors, err = NewBoltVectorStore(db, dimension)
	if err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) Dimension() int {
	return s.vectors.Dimension()
}

// Upsert writes vector, metadata and text for id in one transaction.
func (s *BoltStore) Upsert(ctx context.Context, id string, vector []float32, md domain.Metadata, text string) error {
	mdData, err := domain.MarshalMetadata(md)
	if err != nil {
		return err
	}
	docID, _ := md[domain.KeySourceDocID].(string)

	s.vectors.mu.Lock()
	defer s.vectors.mu.Unlock()

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := s.vectors.put(tx, id, vector); err != nil {
			return err
		}

		chunks := tx.Bucket(bucketChunks)
		previousDoc := ""
		if old := chunks.Get([]byte(id)); old != nil {
			if oldMD, err := domain.UnmarshalMetadata(old); err == nil {
				previousDoc, _ = oldMD[domain.KeySourceDocID].(string)
			}
		}

		if err := chunks.Put([]byte(id), mdData); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBlobs).Put([]byte(id), []byte(text)); err != nil {
			return err
		}

		docChunks := tx.Bucket(bucketDocChunks)
		if previousDoc != "" && previousDoc != docID {
			if err := updateDocChunks(docChunks, previousDoc, id, false); err != nil {
				return err
			}
		}
		if docID == "" {
			return nil
		}
		return updateDocChunks(docChunks, docID, id, true)
	})
	if err != nil {
		return err
	}

	s.vectors.remember(id, vector)
	return nil
}

// updateDocChunks adds or removes id from the id list kept for docID.
func updateDocChunks(b *bbolt.Bucket, docID, id string, add bool) error {
	var ids []string
	if existing := b.Get([]byte(docID)); existing != nil {
		if err := json.Unmarshal(existing, &ids); err != nil {
			return fmt.Errorf("corrupt chunk list for %s: %w", docID, err)
		}
	}

	pos := sort.SearchStrings(ids, id)
	present := pos < len(ids) && ids[pos] == id
	switch {
	case add && !present:
		ids = append(ids, "")
		copy(ids[pos+1:], ids[pos:])
		ids[pos] = id
	case !add && present:
		ids = append(ids[:pos], ids[pos+1:]...)
	default:
		return nil
	}

	if len(ids) == 0 {
		return b.Delete([]byte(docID))
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return b.Put([]byte(docID), data)
}

// Query returns the k nearest entries.
func (s *BoltStore) Query(ctx context.Context, vector []float32, k int) ([]port.IndexHit, error) {
	candidates, err := s.vectors.Search(vector, k)
	if err != nil {
		return nil, err
	}

	hits := make([]port.IndexHit, 0, len(candidates))
	err = s.db.View(func(tx *bbolt.Tx) error {
		for _, c := range candidates {
			hits = append(hits, port.IndexHit{
				IndexEntry: readEntry(tx, c.ID),
				Distance:   c.Distance,
			})
		}
		return nil
	})
	return hits, err
}

// GetByField returns entries whose metadata field equals value. The
// source_doc_id field is served from the doc_chunks index.
func (s *BoltStore) GetByField(ctx context.Context, field, value string) ([]port.IndexEntry, error) {
	var entries []port.IndexEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		if field == domain.KeySourceDocID {
			data := tx.Bucket(bucketDocChunks).Get([]byte(value))
			if data == nil {
				return nil
			}
			var ids []string
			if err := json.Unmarshal(data, &ids); err != nil {
				return fmt.Errorf("corrupt chunk list for %s: %w", value, err)
			}
			for _, id := range ids {
				entries = append(entries, readEntry(tx, id))
			}
			return nil
		}

		return tx.Bucket(bucketChunks).ForEach(func(k, _ []byte) error {
			entry := readEntry(tx, string(k))
			if v, ok := entry.Metadata[field].(string); ok && v == value {
				entries = append(entries, entry)
			}
			return nil
		})
	})
	return entries, err
}

// GetAll returns every entry ordered by id.
func (s *BoltStore) GetAll(ctx context.Context) ([]port.IndexEntry, error) {
	var entries []port.IndexEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChunks).ForEach(func(k, _ []byte) error {
			entries = append(entries, readEntry(tx, string(k)))
			return nil
		})
	})
	return entries, err
}

func (s *BoltStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketChunks).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// readEntry loads text and metadata for id. Undecodable metadata is
// returned as nil so callers can skip the record.
func readEntry(tx *bbolt.Tx, id string) port.IndexEntry {
	entry := port.IndexEntry{
		ID:   id,
		Text: string(tx.Bucket(bucketBlobs).Get([]byte(id))),
	}
	if data := tx.Bucket(bucketChunks).Get([]byte(id)); data != nil {
		if md, err := domain.UnmarshalMetadata(data); err == nil {
			entry.Metadata = md
		}
	}
	return entry
}
