package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ragbench/ragbench/internal/analyzer"
	"github.com/ragbench/ragbench/internal/logging"
	"github.com/ragbench/ragbench/internal/recordio"
)

var (
	analyzeOutputPath string
	analyzeQuiet      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <results.jsonl>",
	Short: "Summarize benchmark results per context length",
	Long: `Analyze a result stream and print per-context-length statistics.

Malformed result lines are skipped with a warning rather than aborting the
whole analysis, so a partially corrupted file still yields a summary of the
valid samples.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOutputPath, "output", "",
		"Write summary rows to a CSV file")
	analyzeCmd.Flags().BoolVar(&analyzeQuiet, "quiet", false,
		"Suppress summary tables on stdout")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logger, _, err := logging.Setup(logging.Config{
		Level:   "INFO",
		Format:  "text",
		Console: true,
	})
	if err != nil {
		return err
	}

	records, skipped, err := recordio.ReadResults(args[0], logger)
	if err != nil {
		return err
	}
	if skipped > 0 {
		logger.Warn("skipped malformed result lines", slog.Int("count", skipped))
	}
	if len(records) == 0 {
		logger.Warn("no valid result records found", slog.String("path", args[0]))
		return nil
	}

	summaries := analyzer.Analyze(records)

	if !analyzeQuiet {
		analyzer.PrintTables(os.Stdout, summaries)
	}
	if analyzeOutputPath != "" {
		if err := analyzer.ExportCSV(analyzeOutputPath, summaries); err != nil {
			return err
		}
		fmt.Printf("summary written to %s\n", analyzeOutputPath)
	}
	return nil
}
