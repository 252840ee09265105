package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"journalrag/internal/adapter/analyzer"
	"journalrag/internal/adapter/chunkfile"
	"journalrag/internal/adapter/chunker"
	"journalrag/internal/adapter/fs"
	"journalrag/internal/adapter/pdftext"
	"journalrag/internal/domain"
	"journalrag/internal/port"
)

var (
	ingestSchemaVersion string

	pdfDocID      string
	pdfJournal    string
	pdfYear       int
	pdfAttributes []string
	pdfLink       string
	pdfDOI        string
	pdfOverlap    int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path|glob ...]",
	Short: "Embed and store chunk files",
	Long: `Embed and store chunks from JSON chunk files. A chunk file is either an array
of chunks or an object {"schema_version": "...", "chunks": [...]}.
Without arguments the root directory is walked with the configured include
patterns. Chunks with an existing id are overwritten.

Examples:
  journalrag ingest                                  # Walk the root directory
  journalrag ingest chunks.json --schema-version 2.0
  journalrag ingest 'data/**/*.json'`,
	RunE: runIngest,
}

var ingestPDFCmd = &cobra.Command{
	Use:   "ingest-pdf <file.pdf>",
	Short: "Extract, chunk, embed and store a PDF article",
	Long: `Extract the text of a PDF, split it into paragraph chunks and store them.
Chunk ids are <doc-id>-<index>, so re-ingesting the same document overwrites
its chunks.

Examples:
  journalrag ingest-pdf paper.pdf --journal "Plant Science" --year 2021
  journalrag ingest-pdf paper.pdf --doc-id velvet-bean --attributes legumes,nitrogen`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestPDF,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(ingestPDFCmd)

	ingestCmd.Flags().StringVar(&ingestSchemaVersion, "schema-version", "", "schema version to store (default from file, then config)")

	ingestPDFCmd.Flags().StringVar(&ingestSchemaVersion, "schema-version", "", "schema version to store (default from config)")
	ingestPDFCmd.Flags().StringVar(&pdfDocID, "doc-id", "", "source document id (default is the file name)")
	ingestPDFCmd.Flags().StringVar(&pdfJournal, "journal", "", "journal name")
	ingestPDFCmd.Flags().IntVar(&pdfYear, "year", 0, "publish year")
	ingestPDFCmd.Flags().StringSliceVar(&pdfAttributes, "attributes", nil, "comma separated tags")
	ingestPDFCmd.Flags().StringVar(&pdfLink, "link", "", "article link")
	ingestPDFCmd.Flags().StringVar(&pdfDOI, "doi", "", "article DOI")
	ingestPDFCmd.Flags().IntVar(&pdfOverlap, "overlap", 0, "tokens of trailing paragraphs repeated in the next chunk")
}

type chunkBatch struct {
	path          string
	schemaVersion string
	chunks        []domain.Chunk
}

func runIngest(cmd *cobra.Command, args []string) error {
	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)

	var (
		files []port.FileInfo
		err   error
	)
	if len(args) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Scanning %s...\n", rootDir)
		files, err = walker.Walk(rootDir)
	} else {
		files, err = walker.Expand(args)
	}
	if err != nil {
		return fmt.Errorf("failed to find chunk files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no chunk files found")
	}

	batches := make([]chunkBatch, 0, len(files))
	total := 0
	for _, f := range files {
		batch, err := chunkfile.ReadFile(f.Path)
		if err != nil {
			return err
		}
		batches = append(batches, chunkBatch{
			path:          f.Path,
			schemaVersion: pickSchemaVersion(batch.SchemaVersion),
			chunks:        batch.Chunks,
		})
		total += len(batch.Chunks)
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	bar := newProgressBar(cmd, total, "Ingesting")
	start := time.Now()
	done := 0
	for _, b := range batches {
		offset := done
		n, err := svc.engine.IngestWithProgress(cmd.Context(), b.chunks, b.schemaVersion, func(i, _ int) {
			bar.Set(offset + i)
			describeETA(bar, "Ingesting", start, offset+i, total)
		})
		done += n
		if err != nil {
			return fmt.Errorf("ingestion failed in %s after %d chunks: %w", b.path, done, err)
		}
	}
	bar.Finish()

	fmt.Fprintf(cmd.OutOrStdout(), "\nIngestion complete:\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  Files:  %d\n", len(batches))
	fmt.Fprintf(cmd.OutOrStdout(), "  Chunks: %d\n", done)
	fmt.Fprintf(cmd.OutOrStdout(), "  Took:   %s\n", formatDuration(time.Since(start)))
	return nil
}

func runIngestPDF(cmd *cobra.Command, args []string) error {
	path := args[0]

	docID := pdfDocID
	if docID == "" {
		docID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	doc := domain.SourceDocument{
		ID:          docID,
		Journal:     pdfJournal,
		PublishYear: pdfYear,
		Attributes:  pdfAttributes,
		Link:        optional(pdfLink),
		DOI:         optional(pdfDOI),
	}

	text, err := pdftext.ExtractFile(path)
	if err != nil {
		return err
	}

	chunks, err := chunker.NewParagraphChunker(cfg.Ingest.ChunkTokens, pdfOverlap, analyzer.NewTokenizer()).Chunk(doc, text)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks extracted from %s", path)
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	bar := newProgressBar(cmd, len(chunks), "Ingesting")
	n, err := svc.engine.IngestWithProgress(cmd.Context(), chunks, pickSchemaVersion(""), func(i, _ int) {
		bar.Set(i)
	})
	if err != nil {
		return fmt.Errorf("ingestion failed after %d chunks: %w", n, err)
	}
	bar.Finish()

	fmt.Fprintf(cmd.OutOrStdout(), "\nStored %d chunks for document %s\n", n, docID)
	return nil
}

// pickSchemaVersion prefers the flag, then the file's own version, then
// the configured one.
func pickSchemaVersion(fromFile string) string {
	switch {
	case ingestSchemaVersion != "":
		return ingestSchemaVersion
	case fromFile != "":
		return fromFile
	default:
		return cfg.Ingest.SchemaVersion
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func newProgressBar(cmd *cobra.Command, total int, label string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]"+label+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func describeETA(bar *progressbar.ProgressBar, label string, start time.Time, processed, total int) {
	if processed == 0 {
		return
	}
	elapsed := time.Since(start)
	rate := float64(processed) / elapsed.Seconds()
	remaining := total - processed
	if rate > 0 {
		eta := time.Duration(float64(remaining)/rate) * time.Second
		bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", label, formatDuration(eta)))
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
