package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the journal RAG service.
type Config struct {
	Store      StoreConfig      `yaml:"store" toml:"store"`
	Embedding  EmbeddingConfig  `yaml:"embedding" toml:"embedding"`
	Generation GenerationConfig `yaml:"generation" toml:"generation"`
	Retrieve   RetrieveConfig   `yaml:"retrieve" toml:"retrieve"`
	Ingest     IngestConfig     `yaml:"ingest" toml:"ingest"`
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

// StoreConfig selects and locates the vector index backend.
type StoreConfig struct {
	Backend string `yaml:"backend" toml:"backend"` // "bolt", "sqlite", "memory"
	Path    string `yaml:"path" toml:"path"`       // relative paths resolve against the root dir
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider        string `yaml:"provider" toml:"provider"`       // "openai", "ollama", "mock"
	Model           string `yaml:"model" toml:"model"`             // e.g., "text-embedding-3-small"
	APIKeyEnv       string `yaml:"api_key_env" toml:"api_key_env"` // Environment variable for API key
	BaseURL         string `yaml:"base_url" toml:"base_url"`
	Dimension       int    `yaml:"dimension" toml:"dimension"`
	TimeoutSeconds  int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
	CacheSize       int    `yaml:"cache_size" toml:"cache_size"` // 0 disables the query embedding cache
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds" toml:"cache_ttl_seconds"`
}

// GenerationConfig holds text generation configuration.
type GenerationConfig struct {
	Provider       string  `yaml:"provider" toml:"provider"` // "openai", "ollama", "mock"
	Model          string  `yaml:"model" toml:"model"`
	APIKeyEnv      string  `yaml:"api_key_env" toml:"api_key_env"`
	BaseURL        string  `yaml:"base_url" toml:"base_url"`
	Temperature    float64 `yaml:"temperature" toml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK     int     `yaml:"top_k" toml:"top_k"`
	MinScore float64 `yaml:"min_score" toml:"min_score"`

	// ContextTokenBudget caps the grounding context. 0 means unlimited.
	ContextTokenBudget int `yaml:"context_token_budget" toml:"context_token_budget"`
}

// IngestConfig holds offline ingestion configuration.
type IngestConfig struct {
	Includes      []string `yaml:"includes" toml:"includes"`
	Excludes      []string `yaml:"excludes" toml:"excludes"`
	SchemaVersion string   `yaml:"schema_version" toml:"schema_version"`
	ChunkTokens   int      `yaml:"chunk_tokens" toml:"chunk_tokens"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr                string `yaml:"addr" toml:"addr"`
	StaticDir           string `yaml:"static_dir" toml:"static_dir"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds" toml:"fetch_timeout_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "text" or "json"
	File   string `yaml:"file" toml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "bolt",
			Path:    filepath.Join(".journalrag", "index.db"),
		},
		Embedding: EmbeddingConfig{
			Provider:        "openai",
			Model:           "text-embedding-3-small",
			APIKeyEnv:       "OPENAI_API_KEY",
			Dimension:       1536,
			TimeoutSeconds:  60,
			CacheSize:       256,
			CacheTTLSeconds: 600,
		},
		Generation: GenerationConfig{
			Provider:       "openai",
			Model:          "gpt-3.5-turbo",
			APIKeyEnv:      "OPENAI_API_KEY",
			Temperature:    0.7,
			TimeoutSeconds: 120,
		},
		Retrieve: RetrieveConfig{
			TopK:     10,
			MinScore: 0.25,
		},
		Ingest: IngestConfig{
			Includes:      []string{"**/*.json"},
			Excludes:      []string{"**/.journalrag/**", "**/.git/**"},
			SchemaVersion: "1.0",
			ChunkTokens:   400,
		},
		Server: ServerConfig{
			Addr:                ":8000",
			FetchTimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML or TOML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory.
func LoadFromDir(dir string) (*Config, error) {
	candidates := []string{
		filepath.Join(dir, "journalrag.yaml"),
		filepath.Join(dir, "journalrag.toml"),
		filepath.Join(dir, ".journalrag", "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML or TOML file.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(c)
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StorePath returns the absolute path of the index file for the given root dir.
func (c *Config) StorePath(dir string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(dir, c.Store.Path)
}

// EnsureStoreDir ensures the directory holding the index file exists.
func (c *Config) EnsureStoreDir(dir string) error {
	return os.MkdirAll(filepath.Dir(c.StorePath(dir)), 0755)
}

// FetchTimeout returns the timeout for remote chunk file downloads.
func (c *Config) FetchTimeout() time.Duration {
	return seconds(c.Server.FetchTimeoutSeconds, 30)
}

// EmbeddingTimeout returns the per-request embedding timeout.
func (c *Config) EmbeddingTimeout() time.Duration {
	return seconds(c.Embedding.TimeoutSeconds, 60)
}

// GenerationTimeout returns the per-request generation timeout.
func (c *Config) GenerationTimeout() time.Duration {
	return seconds(c.Generation.TimeoutSeconds, 120)
}

// CacheTTL returns the query embedding cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return seconds(c.Embedding.CacheTTLSeconds, 600)
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
