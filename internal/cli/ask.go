package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	askQuestion string
	askTopK     int
	askMinScore float64
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from the stored chunks with citations",
	Long: `Search for the chunks most relevant to the question and ask the language
model to answer from them, citing sources as [Source N].

Examples:
  journalrag ask -q "What are the uses of velvet bean?"
  journalrag ask -q "How is drought tolerance measured?" -k 8 --min-score 0.4`,
	RunE: runAsk,
}

var summaryCmd = &cobra.Command{
	Use:   "summary <doc-id>",
	Short: "Summarise one document",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummary,
}

var compareCmd = &cobra.Command{
	Use:   "compare <doc-id> <doc-id>",
	Short: "Compare two documents",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompare,
}

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(compareCmd)

	askCmd.Flags().StringVarP(&askQuestion, "query", "q", "", "question (required)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 5, "number of nearest chunks to consider")
	askCmd.Flags().Float64Var(&askMinScore, "min-score", 0.3, "minimum similarity of a source")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	assistant, err := svc.assistant()
	if err != nil {
		return err
	}

	answer, err := assistant.Answer(cmd.Context(), askQuestion, askTopK, askMinScore)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, answer.Text)
	if answer.NoContext {
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, heading("Citations:"))
	for _, c := range answer.Citations {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Source %d: %s (score: %s)\n", c.Number, describe(c.Match.ChunkRecord), colorScore(c.Match.Similarity))
		fmt.Fprintf(out, "  %s\n", c.Match.LinkOr("no link"))
	}
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	assistant, err := svc.assistant()
	if err != nil {
		return err
	}

	summary, err := assistant.Summarize(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), summary)
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	assistant, err := svc.assistant()
	if err != nil {
		return err
	}

	comparison, err := assistant.Compare(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), comparison)
	return nil
}
