package cmd

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ragbench",
	Short: "ragbench - RAG prefill/decode latency benchmarking harness",
	Long: `ragbench measures prefill/decode latency asymmetry of an LLM inference
engine under retrieval-augmented-generation workloads.

The pipeline has three independently invocable stages:
- generate: synthesize RAG-style prompts at controlled context lengths
- run:      drive the inference engine through the prompts and record
            per-sample latency, throughput and memory metrics
- analyze:  aggregate result records into per-context-length statistics`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
