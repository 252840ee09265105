package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"journalrag/internal/adapter/chunkfile"
	"journalrag/internal/domain"
	"journalrag/internal/usecase"
)

// Defaults of the ask endpoint.
const (
	askTopK     = 5
	askMinScore = 0.3
)

type errorResponse struct {
	Detail string `json:"detail"`
}

type uploadRequest struct {
	FileURL       *string         `json:"file_url"`
	Chunks        json.RawMessage `json:"chunks"`
	SchemaVersion string          `json:"schema_version"`
}

type searchRequest struct {
	Query    string   `json:"query"`
	K        *int     `json:"k"`
	MinScore *float64 `json:"min_score"`
}

type askRequest struct {
	Question string   `json:"question"`
	K        *int     `json:"k"`
	MinScore *float64 `json:"min_score"`
}

type askResponse struct {
	usecase.Answer
	CitationsText string `json:"citations_text,omitempty"`
}

type compareRequest struct {
	Doc1ID string `json:"doc1_id"`
	Doc2ID string `json:"doc2_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "GenAI API is running"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !s.decode(w, r, &req) {
		return
	}

	hasURL := req.FileURL != nil && *req.FileURL != ""
	hasChunks := !isEmptyJSON(req.Chunks)
	switch {
	case !hasURL && !hasChunks:
		writeDetail(w, http.StatusBadRequest, "Either file_url or chunks must be provided")
		return
	case hasURL && hasChunks:
		writeDetail(w, http.StatusBadRequest, "Provide either file_url or chunks, not both")
		return
	case req.SchemaVersion == "":
		writeDetail(w, http.StatusBadRequest, "schema_version is required")
		return
	}

	var (
		batch chunkfile.Batch
		err   error
	)
	if hasURL {
		batch, err = s.fetcher.Chunks(r.Context(), *req.FileURL)
	} else if bytes.TrimSpace(req.Chunks)[0] != '[' {
		err = fmt.Errorf("%w: chunks must be an array", domain.ErrValidation)
	} else {
		batch, err = chunkfile.Decode(req.Chunks)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	n, err := s.engine.Ingest(r.Context(), batch.Chunks, req.SchemaVersion)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to process chunks: %w", err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": fmt.Sprintf("%d chunks uploaded successfully.", n),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}

	k, minScore := s.topK, s.minScore
	if req.K != nil {
		k = *req.K
	}
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	matches, err := s.engine.Search(r.Context(), req.Query, k, minScore)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !s.decode(w, r, &req) {
		return
	}

	k, minScore := askTopK, askMinScore
	if req.K != nil {
		k = *req.K
	}
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	answer, err := s.assistant.Answer(r.Context(), req.Question, k, minScore)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := askResponse{Answer: answer}
	if len(answer.Citations) > 0 {
		resp.CitationsText = usecase.GroundingContext{Citations: answer.Citations}.CitationsText()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.ByDocument(r.Context(), r.PathValue("doc_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": records})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.Documents(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_ids": ids})
}

func (s *Server) handleListAll(w http.ResponseWriter, r *http.Request) {
	listing, err := s.engine.List(r.Context(), 3)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.assistant.Summarize(r.Context(), r.PathValue("doc_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Doc1ID == "" || req.Doc2ID == "" {
		writeDetail(w, http.StatusBadRequest, "doc1_id and doc2_id are required")
		return
	}

	comparison, err := s.assistant.Compare(r.Context(), req.Doc1ID, req.Doc2ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"comparison": comparison})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// statusFor maps error sentinels to HTTP statuses. Fetch failures and
// everything unrecognised are server errors.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeDetail(w, status, err.Error())
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isEmptyJSON(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "[]":
		return true
	}
	return false
}
