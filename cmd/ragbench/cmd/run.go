package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ragbench/ragbench/internal/config"
	"github.com/ragbench/ragbench/internal/engine"
	"github.com/ragbench/ragbench/internal/logging"
	"github.com/ragbench/ragbench/internal/metrics"
	"github.com/ragbench/ragbench/internal/runner"
	"github.com/ragbench/ragbench/internal/storage"
)

var (
	runConfigPath  string
	runPromptsPath string
	runOutputPath  string
	runPhase       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark against the inference engine",
	Long: `Run benchmark phases against the configured inference engine.

Prompts are generated first if the prompt file does not exist. Samples are
submitted strictly one at a time; a single failing sample is skipped and
counted, not fatal. Result records are appended to the output stream as each
sample completes, so an interrupted run keeps everything measured so far.`,
	RunE: runBenchmark,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "configs/baseline.yaml",
		"Path to configuration file")
	runCmd.Flags().StringVar(&runPromptsPath, "prompts", "data/rag_prompts.jsonl",
		"Path to prompts JSONL file (generated if absent)")
	runCmd.Flags().StringVar(&runOutputPath, "output", "",
		"Result output path (overrides config)")
	runCmd.Flags().StringVar(&runPhase, "phase", "1",
		"Phase to run: 1=baseline, 2=profiling, 3=optimization, all")

	rootCmd.AddCommand(runCmd)
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}

	logger, logPath, err := logging.Setup(logging.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		LogDir:  cfg.Logging.LogDir,
		Console: cfg.Logging.Console,
		File:    cfg.Logging.File,
	})
	if err != nil {
		return err
	}
	if logPath != "" {
		logger.Info("logging to file", slog.String("path", logPath))
	}

	outputPath := runOutputPath
	if outputPath == "" {
		outputPath = filepath.Join(cfg.Output.ResultsDir, cfg.Output.Filename)
	}

	// Operator abort: finish nothing mid-flight, keep what was written.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.ListenAddr != "" {
		stopMetrics := metrics.StartServer(cfg.Metrics.ListenAddr, logger)
		defer stopMetrics()
	}

	opts := []runner.Option{runner.WithLogger(logger)}
	if cfg.Database.Path != "" {
		db, err := storage.New(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		opts = append(opts, runner.WithStore(storage.NewResultStore(db)))
	}

	eng := engine.NewVLLMClient(cfg.Inference.Endpoint, cfg.Model.Name,
		engine.WithVLLMLogger(logger))

	r := runner.New(cfg, eng, opts...)
	logger.Info("starting benchmark",
		slog.String("run_id", r.RunID()),
		slog.String("endpoint", cfg.Inference.Endpoint),
		slog.String("model", cfg.Model.Name),
		slog.String("output", outputPath))

	results, err := r.Run(ctx, runPhase, runPromptsPath, outputPath)
	for _, res := range results {
		if res.Skipped {
			continue
		}
		fmt.Printf("phase %q: %d completed, %d failed\n",
			res.Phase, res.Completed, res.Failed)
	}
	if err != nil {
		return err
	}

	logger.Info("benchmark run finished", slog.String("run_id", r.RunID()))
	return nil
}
