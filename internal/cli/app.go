package cli

import (
	"fmt"
	"strings"

	"github.com/openai/openai-go/option"

	"journalrag/config"
	"journalrag/internal/adapter/analyzer"
	"journalrag/internal/adapter/cache"
	"journalrag/internal/adapter/embedding"
	"journalrag/internal/adapter/llm"
	"journalrag/internal/adapter/memstore"
	"journalrag/internal/adapter/sqlitestore"
	"journalrag/internal/adapter/store"
	"journalrag/internal/port"
	"journalrag/internal/usecase"
)

const defaultMockDimension = 256

// services is what commands work with, built from the loaded config.
type services struct {
	engine *usecase.RetrievalEngine
}

func openServices() (*services, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	index, err := openIndex(cfg, rootDir, embedder.Dimension(), embedder.ModelName())
	if err != nil {
		return nil, err
	}

	logger.Debug("opened index", "backend", cfg.Store.Backend, "dimension", embedder.Dimension(), "model", embedder.ModelName())
	return &services{
		engine: usecase.NewRetrievalEngine(usecase.NewChunkStore(index), embedder, logger.Logger),
	}, nil
}

func (s *services) assistant() (*usecase.Assistant, error) {
	generator, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}
	builder := usecase.NewContextBuilder(analyzer.NewTokenizer(), cfg.Retrieve.ContextTokenBudget)
	return usecase.NewAssistant(s.engine, generator, builder, logger.Logger), nil
}

func (s *services) Close() error {
	return s.engine.Store().Close()
}

func openIndex(c *config.Config, dir string, dimension int, model string) (port.ChunkIndex, error) {
	switch strings.ToLower(c.Store.Backend) {
	case "", "bolt":
		if err := c.EnsureStoreDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		st, err := store.NewBoltStore(c.StorePath(dir), dimension, model)
		if err != nil {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		return st, nil
	case "sqlite":
		if err := c.EnsureStoreDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		st, err := sqlitestore.NewStore(c.StorePath(dir), dimension, model)
		if err != nil {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		return st, nil
	case "memory":
		return memstore.NewMemoryStore(dimension), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}
}

func newEmbedder(c *config.Config) (port.Embedder, error) {
	e := c.Embedding
	opts := []option.RequestOption{option.WithRequestTimeout(c.EmbeddingTimeout())}

	var (
		embedder port.Embedder
		err      error
	)
	switch e.Provider {
	case "openai":
		if e.BaseURL == "" {
			embedder, err = embedding.NewOpenAIEmbedder(e.APIKeyEnv, e.Model, e.Dimension, opts...)
		} else {
			embedder, err = embedding.NewOpenAICompatibleEmbedder(e.APIKeyEnv, e.Model, e.BaseURL, e.Dimension, opts...)
		}
	case "ollama":
		embedder, err = embedding.NewOllamaEmbedder(e.Model, e.BaseURL, e.Dimension, opts...)
	case "mock":
		dimension := e.Dimension
		if dimension <= 0 {
			dimension = defaultMockDimension
		}
		embedder = embedding.NewMockEmbedder(dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", e.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	if e.CacheSize > 0 {
		embedder = cache.NewCachedEmbedder(embedder, cache.NewEmbeddingCache(e.CacheSize, c.CacheTTL()))
	}
	return embedder, nil
}

func newGenerator(c *config.Config) (port.Generator, error) {
	g := c.Generation
	opts := []option.RequestOption{option.WithRequestTimeout(c.GenerationTimeout())}

	switch g.Provider {
	case "openai":
		gen, err := llm.NewOpenAIGenerator(g.APIKeyEnv, g.Model, g.BaseURL, g.Temperature, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create generator: %w", err)
		}
		return gen, nil
	case "ollama":
		return llm.NewOllamaGenerator(g.Model, g.BaseURL, g.Temperature, opts...), nil
	case "mock":
		return llm.NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", g.Provider)
	}
}
