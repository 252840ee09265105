package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"journalrag/internal/domain"
)

var (
	searchText     string
	searchTopK     int
	searchMinScore float64
	searchJSON     bool

	docJSON  bool
	listJSON bool
)

var (
	highScore = color.New(color.FgGreen).SprintFunc()
	midScore  = color.New(color.FgYellow).SprintFunc()
	lowScore  = color.New(color.FgRed).SprintFunc()
	heading   = color.New(color.Bold).SprintFunc()
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find the chunks most similar to a query",
	Long: `Embed the query and return stored chunks whose similarity is at least
--min-score, most similar first.

Examples:
  journalrag search -q "nitrogen fixation in legumes"
  journalrag search -q "soil health" -k 20 --min-score 0.4 --json`,
	RunE: runSearch,
}

var docCmd = &cobra.Command{
	Use:   "doc <doc-id>",
	Short: "List the chunks of one document in order",
	Args:  cobra.ExactArgs(1),
	RunE:  runDoc,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(docCmd)
	rootCmd.AddCommand(listCmd)

	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of nearest chunks to consider (default from config)")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "minimum similarity (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")

	docCmd.Flags().BoolVar(&docJSON, "json", false, "output as JSON")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output the debug listing as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	topK := cfg.Retrieve.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}
	minScore := cfg.Retrieve.MinScore
	if cmd.Flags().Changed("min-score") {
		minScore = searchMinScore
	}

	matches, err := svc.engine.Search(cmd.Context(), searchText, topK, minScore)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		return writeIndentedJSON(out, map[string]any{"matches": matches})
	}

	if len(matches) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	fmt.Fprintf(out, "Found %d results for: %s\n\n", len(matches), searchText)
	for i, m := range matches {
		fmt.Fprintf(out, "--- [%d] %s (score: %s) ---\n", i+1, describe(m.ChunkRecord), colorScore(m.Similarity))
		fmt.Fprintln(out, truncate(m.Text, 500))
		fmt.Fprintln(out)
	}
	return nil
}

func runDoc(cmd *cobra.Command, args []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	records, err := svc.engine.ByDocument(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if docJSON {
		return writeIndentedJSON(out, map[string]any{"chunks": records})
	}

	for _, r := range records {
		fmt.Fprintf(out, "--- %s ---\n", describe(r))
		fmt.Fprintln(out, r.Text)
		fmt.Fprintln(out)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	if listJSON {
		listing, err := svc.engine.List(cmd.Context(), 3)
		if err != nil {
			return err
		}
		return writeIndentedJSON(out, listing)
	}

	count, err := svc.engine.Store().Count(cmd.Context())
	if err != nil {
		return err
	}
	docs, err := svc.engine.Documents(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%d chunks in %d documents\n", count, len(docs))
	for _, id := range docs {
		fmt.Fprintf(out, "  %s\n", id)
	}
	return nil
}

func describe(r domain.ChunkRecord) string {
	s := fmt.Sprintf("%s %s chunk %d", heading(r.ID), r.SourceDocID, r.Index())
	if r.SectionHeading != "" {
		s += " · " + r.SectionHeading
	}
	if r.Journal != "" {
		s += fmt.Sprintf(" · %s %d", r.Journal, r.PublishYear)
	}
	return s
}

func colorScore(score float64) string {
	text := fmt.Sprintf("%.3f", score)
	switch {
	case score >= 0.75:
		return highScore(text)
	case score >= 0.5:
		return midScore(text)
	default:
		return lowScore(text)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
