// Package httpapi serves the retrieval engine and assistant over HTTP under
// /api.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"journalrag/internal/adapter/fetch"
	"journalrag/internal/usecase"
)

const maxBodyBytes = 32 << 20

// Options configures a Server. TopK <= 0 falls back to the search default
// and a nil Fetcher to one with a 30 second timeout.
type Options struct {
	TopK      int
	MinScore  float64
	StaticDir string
	Fetcher   *fetch.Fetcher
	Logger    *slog.Logger
}

type Server struct {
	engine    *usecase.RetrievalEngine
	assistant *usecase.Assistant
	fetcher   *fetch.Fetcher
	logger    *slog.Logger
	topK      int
	minScore  float64
	staticDir string
}

func NewServer(engine *usecase.RetrievalEngine, assistant *usecase.Assistant, opts Options) *Server {
	s := &Server{
		engine:    engine,
		assistant: assistant,
		fetcher:   opts.Fetcher,
		logger:    opts.Logger,
		topK:      opts.TopK,
		minScore:  opts.MinScore,
		staticDir: opts.StaticDir,
	}
	if s.fetcher == nil {
		s.fetcher = fetch.NewFetcher(0)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.topK <= 0 {
		s.topK = usecase.DefaultTopK
	}
	return s
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/{$}", s.handleHealth)
	mux.HandleFunc("PUT /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/similarity_search", s.handleSearch)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /api/debug/documents", s.handleDocuments)
	mux.HandleFunc("GET /api/debug/list_all_chunks", s.handleListAll)
	mux.HandleFunc("GET /api/summary/{doc_id}", s.handleSummary)
	mux.HandleFunc("POST /api/compare", s.handleCompare)
	mux.HandleFunc("GET /api/{doc_id}", s.handleDocument)

	if s.staticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.staticDir))))
	}

	return requestLogger(s.logger, mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
