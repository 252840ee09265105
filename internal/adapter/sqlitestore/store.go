// Package sqlitestore implements the chunk index on a single SQLite file
// using the pure Go modernc.org/sqlite driver.
package sqlitestore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"journalrag/internal/adapter/sqlitestore/migrations"
	"journalrag/internal/adapter/vecmath"
	"journalrag/internal/domain"
	"journalrag/internal/port"
)

// Store is a chunk index backed by SQLite. Vectors are stored as little
// endian float32 blobs and searched by brute force.
type Store struct {
	db        *sql.DB
	path      string
	dimension int
}

var _ port.ChunkIndex = (*Store)(nil)

// NewStore opens or creates the index database at path.
func NewStore(path string, dimension int, model string) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path, dimension: dimension}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if err := s.checkIndexInfo(dimension, model); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Dimension() int {
	return s.dimension
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// checkIndexInfo records the embedding settings on first use and rejects
// a reopen with different ones.
func (s *Store) checkIndexInfo(dimension int, model string) error {
	want := map[string]string{
		"dimension": strconv.Itoa(dimension),
		"model":     model,
		"metric":    "cosine",
	}
	for key, value := range want {
		var stored string
		err := s.db.QueryRow("SELECT value FROM index_info WHERE key = ?", key).Scan(&stored)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := s.db.Exec("INSERT INTO index_info (key, value) VALUES (?, ?)", key, value); err != nil {
				return fmt.Errorf("recording index %s: %w", key, err)
			}
		case err != nil:
			return fmt.Errorf("reading index %s: %w", key, err)
		case stored != value:
			return fmt.Errorf("%w: index %s is %q, configured %q", domain.ErrIndexMismatch, key, stored, value)
		}
	}
	return nil
}

// Upsert inserts or replaces the row for id.
func (s *Store) Upsert(ctx context.Context, id string, vector []float32, md domain.Metadata, text string) error {
	if len(vector) != s.dimension {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}
	mdData, err := domain.MarshalMetadata(md)
	if err != nil {
		return err
	}
	docID, _ := md[domain.KeySourceDocID].(string)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, source_doc_id, vector, metadata, document)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_doc_id = excluded.source_doc_id,
			vector = excluded.vector,
			metadata = excluded.metadata,
			document = excluded.document
	`, id, docID, float32SliceToBytes(vector), string(mdData), text)
	if err != nil {
		return fmt.Errorf("upserting chunk %s: %w", id, err)
	}
	return nil
}

// Query scans every vector and returns the k nearest rows.
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]port.IndexHit, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, vector FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("scanning vectors: %w", err)
	}
	defer rows.Close()

	var candidates []vecmath.Candidate
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector row: %w", err)
		}
		stored := bytesToFloat32Slice(blob)
		if len(stored) != s.dimension {
			continue
		}
		candidates = append(candidates, vecmath.Candidate{ID: id, Distance: vecmath.CosineDistance(vector, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	top := vecmath.TopK(candidates, k)
	if len(top) == 0 {
		return nil, nil
	}

	ids := make([]string, len(top))
	for i, c := range top {
		ids[i] = c.ID
	}
	entries, err := s.entriesByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]port.IndexHit, 0, len(top))
	for _, c := range top {
		entry, ok := entries[c.ID]
		if !ok {
			// row replaced or removed between the two reads
			continue
		}
		hits = append(hits, port.IndexHit{IndexEntry: entry, Distance: c.Distance})
	}
	return hits, nil
}

func (s *Store) entriesByID(ctx context.Context, ids []string) (map[string]port.IndexEntry, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, metadata, document FROM chunks WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]port.IndexEntry, len(ids))
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out[entry.ID] = entry
	}
	return out, rows.Err()
}

// GetByField returns rows whose metadata field equals value. source_doc_id
// uses its indexed column; other fields are filtered after decoding.
func (s *Store) GetByField(ctx context.Context, field, value string) ([]port.IndexEntry, error) {
	if field == domain.KeySourceDocID {
		return s.list(ctx, "SELECT id, metadata, document FROM chunks WHERE source_doc_id = ? ORDER BY id", value)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []port.IndexEntry
	for _, entry := range all {
		if v, ok := entry.Metadata[field].(string); ok && v == value {
			out = append(out, entry)
		}
	}
	return out, nil
}

// GetAll returns every row ordered by id.
func (s *Store) GetAll(ctx context.Context) ([]port.IndexEntry, error) {
	return s.list(ctx, "SELECT id, metadata, document FROM chunks ORDER BY id")
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]port.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var out []port.IndexEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// scanEntry reads one (id, metadata, document) row. Metadata that fails to
// decode is left nil.
func scanEntry(rows *sql.Rows) (port.IndexEntry, error) {
	var (
		entry  port.IndexEntry
		mdJSON string
	)
	if err := rows.Scan(&entry.ID, &mdJSON, &entry.Text); err != nil {
		return port.IndexEntry{}, fmt.Errorf("scanning chunk row: %w", err)
	}
	if md, err := domain.UnmarshalMetadata([]byte(mdJSON)); err == nil {
		entry.Metadata = md
	}
	return entry, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
