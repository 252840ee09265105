package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"journalrag/config"
	"journalrag/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	verbose bool
	logger  *logging.Logger

	// overrides holds flag and JOURNALRAG_* environment overrides of
	// config file values.
	overrides = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "journalrag",
	Short: "Journalrag - semantic search and grounded answers over journal articles",
	Long: `Journalrag stores chunks of academic journal articles with their embeddings,
finds the chunks most similar to a question, lists a document's chunks in order,
and asks a language model to answer, summarise or compare from those chunks.

Example usage:
  journalrag ingest 'data/**/*.json'            # Embed and store chunk files
  journalrag search -q "velvet bean uses"       # Similarity search
  journalrag ask -q "What are the uses of velvet bean?"
  journalrag serve --addr :8000                 # HTTP API under /api`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if err := godotenv.Load(filepath.Join(rootDir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyOverrides(cfg)
		if verbose {
			cfg.Logging.Level = "debug"
		}

		logger, err = logging.New(cfg.Logging, cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		slog.SetDefault(logger.Logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logger == nil {
			return nil
		}
		return logger.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./journalrag.yaml)")
	flags.StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.String("backend", "", "index backend: bolt, sqlite or memory")
	flags.String("store-path", "", "index file path")
	flags.String("log-level", "", "log level: debug, info, warn or error")

	overrides.SetEnvPrefix("JOURNALRAG")
	overrides.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	overrides.AutomaticEnv()
	_ = overrides.BindPFlag("store.backend", flags.Lookup("backend"))
	_ = overrides.BindPFlag("store.path", flags.Lookup("store-path"))
	_ = overrides.BindPFlag("logging.level", flags.Lookup("log-level"))
}

// applyOverrides copies set flags and environment variables over the
// loaded config. Flags win over the environment.
func applyOverrides(c *config.Config) {
	if overrides.IsSet("store.backend") {
		c.Store.Backend = overrides.GetString("store.backend")
	}
	if overrides.IsSet("store.path") {
		c.Store.Path = overrides.GetString("store.path")
	}
	if overrides.IsSet("server.addr") {
		c.Server.Addr = overrides.GetString("server.addr")
	}
	if overrides.IsSet("logging.level") {
		c.Logging.Level = overrides.GetString("logging.level")
	}
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
