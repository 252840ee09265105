package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"journalrag/internal/adapter/fetch"
	"journalrag/internal/adapter/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve upload, search, document, ask, summary and compare endpoints under /api.

Examples:
  journalrag serve
  journalrag serve --addr :9000
  JOURNALRAG_SERVER_ADDR=:9000 journalrag serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	_ = overrides.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	assistant, err := svc.assistant()
	if err != nil {
		return err
	}

	server := httpapi.NewServer(svc.engine, assistant, httpapi.Options{
		TopK:      cfg.Retrieve.TopK,
		MinScore:  cfg.Retrieve.MinScore,
		StaticDir: cfg.Server.StaticDir,
		Fetcher:   fetch.NewFetcher(cfg.FetchTimeout()),
		Logger:    logger.Logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.ListenAndServe(ctx, cfg.Server.Addr)
}
