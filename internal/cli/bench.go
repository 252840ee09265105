package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	benchQuery string
	benchTopK  int
	benchRuns  int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure search latency and similarity quality for a query",
	Long: `Run a query against the index several times and report latency and the
similarity of the nearest chunks, without any score threshold.

Examples:
  journalrag bench -q "nitrogen fixation"
  journalrag bench -q "drought tolerance" -k 20 --runs 10`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().StringVarP(&benchQuery, "query", "q", "", "query to test (required)")
	benchCmd.Flags().IntVarP(&benchTopK, "top-k", "k", 10, "number of results")
	benchCmd.Flags().IntVar(&benchRuns, "runs", 5, "number of timed searches")
	benchCmd.MarkFlagRequired("query")
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchRuns <= 0 {
		return fmt.Errorf("--runs must be positive")
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	count, err := svc.engine.Store().Count(cmd.Context())
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("index is empty, run 'journalrag ingest' first")
	}

	fmt.Fprintln(out, "SEMANTIC SEARCH BENCHMARK")
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintf(out, "Chunks indexed: %d\n", count)
	fmt.Fprintf(out, "Model: %s (%s)\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	fmt.Fprintf(out, "Dimension: %d\n\n", svc.engine.Store().Dimension())
	fmt.Fprintf(out, "Query: %q\n", benchQuery)
	fmt.Fprintln(out, strings.Repeat("-", 70))

	var (
		total   time.Duration
		fastest time.Duration
		slowest time.Duration
	)
	for i := 0; i < benchRuns; i++ {
		start := time.Now()
		if _, err := svc.engine.Search(cmd.Context(), benchQuery, benchTopK, -1); err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		elapsed := time.Since(start)
		total += elapsed
		if i == 0 || elapsed < fastest {
			fastest = elapsed
		}
		if elapsed > slowest {
			slowest = elapsed
		}
	}

	// min score -1 keeps every neighbour
	matches, err := svc.engine.Search(cmd.Context(), benchQuery, benchTopK, -1)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no readable chunks returned")
	}

	fmt.Fprintf(out, "Top %d semantic matches:\n\n", len(matches))
	totalScore := 0.0
	for i, m := range matches {
		totalScore += m.Similarity

		rating := "LOW"
		if m.Similarity > 0.7 {
			rating = "HIGH"
		} else if m.Similarity > 0.5 {
			rating = "GOOD"
		} else if m.Similarity > 0.3 {
			rating = "OK"
		}

		preview := strings.ReplaceAll(truncate(m.Text, 150), "\n", " ")
		fmt.Fprintf(out, "%d. [%s %.3f] %s chunk %d\n", i+1, rating, m.Similarity, m.SourceDocID, m.Index())
		fmt.Fprintf(out, "   %s\n\n", preview)
	}

	avgScore := totalScore / float64(len(matches))
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintln(out, "QUALITY METRICS:")
	fmt.Fprintf(out, "  Average similarity: %.3f\n", avgScore)
	fmt.Fprintf(out, "  Top-1 similarity:   %.3f\n", matches[0].Similarity)
	fmt.Fprintln(out, "LATENCY:")
	fmt.Fprintf(out, "  Runs:    %d\n", benchRuns)
	fmt.Fprintf(out, "  Average: %s\n", total/time.Duration(benchRuns))
	fmt.Fprintf(out, "  Fastest: %s\n", fastest)
	fmt.Fprintf(out, "  Slowest: %s\n", slowest)

	if avgScore > 0.5 {
		fmt.Fprintln(out, "  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Fprintln(out, "  Status: OK - results are somewhat related")
	} else {
		fmt.Fprintln(out, "  Status: POOR - may need better embeddings or re-ingestion")
	}
	return nil
}
