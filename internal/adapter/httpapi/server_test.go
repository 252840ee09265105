package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journalrag/internal/adapter/embedding"
	"journalrag/internal/adapter/llm"
	"journalrag/internal/adapter/memstore"
	"journalrag/internal/usecase"
)

const scenarioChunks = `[
  {"id":"c1","source_doc_id":"d1","chunk_index":1,"section_heading":"Results","journal":"J",
   "publish_year":2020,"usage_count":0,"attributes":["x","y"],"text":"alpha"},
  {"id":"c2","source_doc_id":"d1","chunk_index":0,"section_heading":"Intro","journal":"J",
   "publish_year":2020,"usage_count":0,"attributes":[],"text":"beta"}
]`

type testServer struct {
	*httptest.Server
	generator *llm.MockGenerator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := usecase.NewChunkStore(memstore.NewMemoryStore(256))
	engine := usecase.NewRetrievalEngine(store, embedding.NewMockEmbedder(256), logger)
	generator := llm.NewMockGenerator()
	assistant := usecase.NewAssistant(engine, generator, nil, logger)

	srv := httptest.NewServer(NewServer(engine, assistant, Options{
		TopK:     10,
		MinScore: 0.25,
		Logger:   logger,
	}).Handler())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, generator: generator}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, map[string]any, http.Header) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out, resp.Header
}

func (s *testServer) upload(t *testing.T) {
	t.Helper()
	status, out, _ := s.do(t, http.MethodPut, "/api/upload", `{"schema_version":"v1","chunks":`+scenarioChunks+`}`)
	require.Equal(t, http.StatusAccepted, status, "%v", out)
	assert.Equal(t, "2 chunks uploaded successfully.", out["message"])
}

func ids(t *testing.T, items any) []string {
	t.Helper()
	list, ok := items.([]any)
	require.True(t, ok, "expected a list, got %T", items)
	out := make([]string, len(list))
	for i, item := range list {
		out[i] = item.(map[string]any)["id"].(string)
	}
	return out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	status, out, header := srv.do(t, http.MethodGet, "/api/", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "GenAI API is running", out["message"])
	assert.NotEmpty(t, header.Get("X-Request-ID"))
}

func TestUploadAndByDocument(t *testing.T) {
	srv := newTestServer(t)
	srv.upload(t)

	status, out, _ := srv.do(t, http.MethodGet, "/api/d1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"c2", "c1"}, ids(t, out["chunks"]))

	chunks := out["chunks"].([]any)
	c2 := chunks[0].(map[string]any)
	assert.Equal(t, []any{}, c2["attributes"])
	assert.Equal(t, "beta", c2["text"])
	assert.Equal(t, "v1", c2["schema_version"])
	assert.Equal(t, []any{"x", "y"}, chunks[1].(map[string]any)["attributes"])

	// re-uploading the same ids changes nothing
	srv.upload(t)
	_, out, _ = srv.do(t, http.MethodGet, "/api/debug/list_all_chunks", "")
	assert.Equal(t, float64(2), out["num_chunks"])
	assert.Len(t, out["metadatas"], 2)
}

func TestByDocumentNotFound(t *testing.T) {
	srv := newTestServer(t)
	srv.upload(t)

	status, out, _ := srv.do(t, http.MethodGet, "/api/unknown-doc", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, out["detail"], "unknown-doc")
}

func TestSimilaritySearch(t *testing.T) {
	srv := newTestServer(t)
	srv.upload(t)

	status, out, _ := srv.do(t, http.MethodPost, "/api/similarity_search", `{"query":"alpha","k":5}`)
	require.Equal(t, http.StatusOK, status)
	got := ids(t, out["matches"])
	require.NotEmpty(t, got)
	assert.Equal(t, "c1", got[0])
	assert.Equal(t, 1.0, out["matches"].([]any)[0].(map[string]any)["similarity_score"])

	status, out, _ = srv.do(t, http.MethodPost, "/api/similarity_search", `{"query":"completely unrelated","min_score":0.99}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, out["matches"])

	status, _, _ = srv.do(t, http.MethodPost, "/api/similarity_search", `{"query":"alpha","k":0}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUploadValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"neither", `{"schema_version":"v1"}`, "Either file_url or chunks must be provided"},
		{"both", `{"schema_version":"v1","file_url":"http://example.org/x.json","chunks":` + scenarioChunks + `}`, "not both"},
		{"no schema version", `{"chunks":` + scenarioChunks + `}`, "schema_version is required"},
		{"bad chunk", `{"schema_version":"v1","chunks":[{"id":"c9"}]}`, ""},
		{"chunks object", `{"schema_version":"v1","chunks":{"chunks":[]}}`, "array"},
		{"bad json", `{"schema_version":`, "invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out, _ := srv.do(t, http.MethodPut, "/api/upload", tt.body)
			assert.Equal(t, http.StatusBadRequest, status, "%v", out)
			assert.Contains(t, out["detail"], tt.detail)
		})
	}
}

func TestUploadFromURL(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chunks.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(scenarioChunks))
	}))
	defer files.Close()

	srv := newTestServer(t)

	status, out, _ := srv.do(t, http.MethodPut, "/api/upload", `{"schema_version":"v1","file_url":"`+files.URL+`/chunks.json"}`)
	require.Equal(t, http.StatusAccepted, status, "%v", out)
	assert.Equal(t, "2 chunks uploaded successfully.", out["message"])

	status, out, _ = srv.do(t, http.MethodPut, "/api/upload", `{"schema_version":"v1","file_url":"`+files.URL+`/missing.json"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, out["detail"], "failed to fetch file from URL")
}

func TestAsk(t *testing.T) {
	srv := newTestServer(t)
	srv.upload(t)

	status, out, _ := srv.do(t, http.MethodPost, "/api/ask", `{"question":"alpha"}`)
	require.Equal(t, http.StatusOK, status, "%v", out)
	assert.Equal(t, "mock response to: Use the context below to answer the user's question.", out["answer"])
	assert.NotEmpty(t, out["citations"])
	assert.True(t, strings.HasPrefix(out["citations_text"].(string), "Citations:\n"))

	prompts := srv.generator.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "[Source 1] alpha")
	assert.Contains(t, prompts[0], "Question: alpha")

	status, out, _ = srv.do(t, http.MethodPost, "/api/ask", `{"question":"completely unrelated","min_score":0.99}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, usecase.NoContextAnswer, out["answer"])
	assert.Equal(t, true, out["no_context"])
	assert.Len(t, srv.generator.Prompts(), 1, "generator is not called without context")
}

func TestSummaryCompareAndDocuments(t *testing.T) {
	srv := newTestServer(t)
	srv.upload(t)

	status, out, _ := srv.do(t, http.MethodGet, "/api/summary/d1", "")
	require.Equal(t, http.StatusOK, status, "%v", out)
	assert.Contains(t, out["summary"], "mock response to:")
	assert.Contains(t, srv.generator.Prompts()[0], "beta\n\nalpha")

	status, out, _ = srv.do(t, http.MethodPost, "/api/compare", `{"doc1_id":"d1","doc2_id":"d1"}`)
	require.Equal(t, http.StatusOK, status, "%v", out)
	assert.NotEmpty(t, out["comparison"])

	status, _, _ = srv.do(t, http.MethodPost, "/api/compare", `{"doc1_id":"d1","doc2_id":"nope"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = srv.do(t, http.MethodPost, "/api/compare", `{"doc1_id":"d1"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, out, _ = srv.do(t, http.MethodGet, "/api/debug/documents", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"d1"}, out["document_ids"])
}

func TestDocumentNamedLikeARoute(t *testing.T) {
	srv := newTestServer(t)
	body := `{"schema_version":"v1","chunks":[{"id":"r1","source_doc_id":"documents","chunk_index":0,
	  "section_heading":"S","journal":"J","publish_year":2020,"usage_count":0,"attributes":[],"text":"gamma"}]}`
	status, out, _ := srv.do(t, http.MethodPut, "/api/upload", body)
	require.Equal(t, http.StatusAccepted, status, "%v", out)

	status, out, _ = srv.do(t, http.MethodGet, "/api/documents", "")
	require.Equal(t, http.StatusOK, status, "%v", out)
	assert.Equal(t, []string{"r1"}, ids(t, out["chunks"]))

	status, out, _ = srv.do(t, http.MethodGet, "/api/debug/documents", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"documents"}, out["document_ids"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/", bytes.NewReader(nil))
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get("X-Request-ID"))
}
