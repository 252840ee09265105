package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"

	"journalrag/internal/adapter/indextest"
	"journalrag/internal/domain"
	"journalrag/internal/port"
)

func openTestStore(t *testing.T, path string, dimension int) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(path, dimension, "test-model")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStoreConformance(t *testing.T) {
	indextest.Run(t, func(t *testing.T, dimension int) port.ChunkIndex {
		return openTestStore(t, filepath.Join(t.TempDir(), "index.db"), dimension)
	})
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "journalrag-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "index.db")

	s, err := NewBoltStore(path, 2, "m")
	if err != nil {
		t.Fatal(err)
	}
	md := domain.Metadata{domain.KeySourceDocID: "d1", domain.KeyChunkIndex: 3}
	if err := s.Upsert(ctx, "c1", []float32{1, 0}, md, "hello"); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = NewBoltStore(path, 2, "m")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	hits, err := s.Query(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].ID != "c1" || hits[0].Text != "hello" {
		t.Errorf("unexpected hit %+v", hits[0])
	}
	if got := hits[0].Metadata[domain.KeyChunkIndex]; got != int64(3) {
		t.Errorf("chunk_index = %v (%T), want int64(3)", got, got)
	}

	byDoc, err := s.GetByField(ctx, domain.KeySourceDocID, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byDoc) != 1 {
		t.Errorf("expected 1 entry for d1, got %d", len(byDoc))
	}
}

func TestBoltStore_RejectsDifferentEmbeddingSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := NewBoltStore(path, 4, "m1")
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := NewBoltStore(path, 8, "m1"); !errors.Is(err, domain.ErrIndexMismatch) {
		t.Errorf("dimension change: expected ErrIndexMismatch, got %v", err)
	}
	if _, err := NewBoltStore(path, 4, "m2"); !errors.Is(err, domain.ErrIndexMismatch) {
		t.Errorf("model change: expected ErrIndexMismatch, got %v", err)
	}

	s, err = NewBoltStore(path, 4, "m1")
	if err != nil {
		t.Fatalf("same settings should reopen: %v", err)
	}
	s.Close()
}

func TestBoltStore_CorruptMetadataDecodesToNil(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "index.db"), 2)

	if err := s.Upsert(ctx, "c1", []float32{1, 0}, domain.Metadata{domain.KeySourceDocID: "d1"}, "text"); err != nil {
		t.Fatal(err)
	}
	err := s.DB().Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChunks).Put([]byte("c1"), []byte("{broken"))
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.GetByField(ctx, domain.KeySourceDocID, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].Metadata != nil {
		t.Errorf("expected nil metadata, got %v", got[0].Metadata)
	}
	if got[0].Text != "text" {
		t.Errorf("text = %q, want %q", got[0].Text, "text")
	}
}

func TestBoltStore_SchemaInfo(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "index.db"), 4)

	info, err := s.GetSchemaInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != 1 || CurrentSchemaVersion != 1 {
		t.Errorf("schema version = %d (current %d), want 1", info.Version, CurrentSchemaVersion)
	}
	if info.Dimension != 4 {
		t.Errorf("dimension = %d, want 4", info.Dimension)
	}
	if info.ConfigHash != ComputeConfigHash(4, "test-model") {
		t.Errorf("unexpected config hash %s", info.ConfigHash)
	}

	result, err := s.CheckMigration(4, "test-model")
	if err != nil {
		t.Fatal(err)
	}
	if result.NeedsMigration || result.NeedsRebuild {
		t.Errorf("fresh store should need nothing: %+v", result)
	}
}

func TestBoltStore_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := NewBoltStore(path, 4, "test-model")
	if err != nil {
		t.Fatal(err)
	}
	err = s.SetSchemaInfo(&SchemaInfo{
		Version:    CurrentSchemaVersion + 1,
		ConfigHash: ComputeConfigHash(4, "test-model"),
		Dimension:  4,
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := NewBoltStore(path, 4, "test-model"); !errors.Is(err, domain.ErrIndexMismatch) {
		t.Errorf("expected ErrIndexMismatch for a newer schema, got %v", err)
	}
}
