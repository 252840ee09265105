package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `store:
  backend: bolt
  path: .journalrag/index.db
embedding:
  provider: mock
  dimension: 1024
  cache_size: 8
generation:
  provider: mock
logging:
  level: error
`

const testChunks = `{
  "schema_version": "2.0",
  "chunks": [
    {"id": "vb-1", "source_doc_id": "velvet", "chunk_index": 1, "section_heading": "Uses",
     "journal": "Field Crops", "publish_year": 2019, "usage_count": 0, "attributes": ["legume", "cover crop"],
     "text": "Velvet bean is grown as a green manure and cover crop."},
    {"id": "vb-0", "source_doc_id": "velvet", "chunk_index": 0, "section_heading": "Introduction",
     "journal": "Field Crops", "publish_year": 2019, "usage_count": 0, "attributes": [],
     "text": "Mucuna pruriens, the velvet bean, is a tropical legume."},
    {"id": "rice-0", "source_doc_id": "rice", "chunk_index": 0, "section_heading": "Abstract",
     "journal": "Rice Science", "publish_year": 2022, "usage_count": 2, "attributes": ["cereal"],
     "text": "Flooded paddies emit methane during the growing season."}
  ]
}`

func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "journalrag.yaml"), []byte(testConfig), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "chunks.json"), []byte(testChunks), 0o644))
	return dir
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--dir", dir}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_IngestSearchDocAsk(t *testing.T) {
	dir := setupProject(t)

	out, err := run(t, dir, "ingest", filepath.Join(dir, "data", "*.json"), "--schema-version", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Chunks: 3")
	assert.FileExists(t, filepath.Join(dir, ".journalrag", "index.db"))

	out, err = run(t, dir, "search", "-q", "velvet bean uses", "-k", "5", "--min-score", "0.3", "--json")
	require.NoError(t, err)
	var found struct {
		Matches []struct {
			ID         string  `json:"id"`
			Similarity float64 `json:"similarity_score"`
		} `json:"matches"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &found))
	require.NotEmpty(t, found.Matches)
	for _, m := range found.Matches {
		assert.NotEqual(t, "rice-0", m.ID)
		assert.GreaterOrEqual(t, m.Similarity, 0.3)
	}

	out, err = run(t, dir, "doc", "velvet", "--json")
	require.NoError(t, err)
	var doc struct {
		Chunks []struct {
			ID            string   `json:"id"`
			Attributes    []string `json:"attributes"`
			SchemaVersion string   `json:"schema_version"`
		} `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Chunks, 2)
	assert.Equal(t, "vb-0", doc.Chunks[0].ID)
	assert.Equal(t, "vb-1", doc.Chunks[1].ID)
	assert.Equal(t, []string{}, doc.Chunks[0].Attributes)
	assert.Equal(t, []string{"legume", "cover crop"}, doc.Chunks[1].Attributes)
	assert.Equal(t, "2.0", doc.Chunks[0].SchemaVersion)

	_, err = run(t, dir, "doc", "unknown-doc", "--json=false")
	assert.Error(t, err)

	out, err = run(t, dir, "ask", "-q", "velvet bean uses", "--min-score", "0.3")
	require.NoError(t, err)
	assert.Contains(t, out, "mock response to:")
	assert.Contains(t, out, "Citations:")
	assert.Contains(t, out, "Source 1:")

	out, err = run(t, dir, "list", "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "3 chunks in 2 documents")
}

func TestCLI_BackendOverride(t *testing.T) {
	dir := setupProject(t)

	_, err := run(t, dir, "--backend", "nosuch", "list")
	assert.ErrorContains(t, err, "unsupported store backend")

	t.Cleanup(func() { rootCmd.PersistentFlags().Set("backend", "") })
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "<1s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
}
