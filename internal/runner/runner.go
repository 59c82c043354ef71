// Package runner orchestrates benchmark phases. It drives the inference
// engine one sample at a time: the engine owns a shared, memory-constrained
// device, and concurrent submissions would contaminate the latency
// measurements this harness exists to take.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ragbench/ragbench/internal/analyzer"
	"github.com/ragbench/ragbench/internal/config"
	"github.com/ragbench/ragbench/internal/engine"
	"github.com/ragbench/ragbench/internal/gpumon"
	"github.com/ragbench/ragbench/internal/metrics"
	"github.com/ragbench/ragbench/internal/promptgen"
	"github.com/ragbench/ragbench/internal/recordio"
	"github.com/ragbench/ragbench/internal/storage"
	"github.com/ragbench/ragbench/pkg/models"
)

// warmupPrompt exercises the engine before measurement so model load and
// cache effects don't land on the first sample.
const warmupPrompt = "Complete this sentence in exactly ten words: The sun rises in the"

// PhaseResult reports one phase's outcome.
type PhaseResult struct {
	Phase     string
	Completed int
	Failed    int
	Skipped   bool // phase is registered but not implemented
}

// Runner executes benchmark phases against an inference engine.
type Runner struct {
	cfg     *config.Config
	eng     engine.Engine
	monitor *gpumon.Monitor
	store   *storage.ResultStore
	logger  *slog.Logger
	limiter *rate.Limiter
	runID   string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithStore enables SQLite persistence of results in addition to the JSONL
// stream.
func WithStore(store *storage.ResultStore) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// New creates a Runner for the given configuration and engine.
func New(cfg *config.Config, eng engine.Engine, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		eng:    eng,
		logger: slog.Default(),
		runID:  "run-" + uuid.New().String()[:8],
	}
	if cfg.Workload.SampleInterval > 0 {
		// Pace sample submissions without ever overlapping them.
		r.limiter = rate.NewLimiter(rate.Every(cfg.Workload.SampleInterval), 1)
	}
	for _, opt := range opts {
		opt(r)
	}
	r.monitor = gpumon.NewMonitor(r.logger)
	return r
}

// RunID returns the identifier assigned to this run.
func (r *Runner) RunID() string {
	return r.runID
}

// phase is a named, ordered unit of benchmark work.
type phase struct {
	number int
	name   string
	run    func(ctx context.Context, promptsPath, outputPath string) (PhaseResult, error)
}

// phases returns the registered phases in execution order. Profiling and
// optimization are placeholders pending instrumentation work.
func (r *Runner) phases() []phase {
	return []phase{
		{1, "baseline inference", r.runBaseline},
		{2, "prefill/decode profiling", nil},
		{3, "system optimization", nil},
	}
}

// Run executes the selected phases strictly in order. The selector is a
// phase number ("1", "2", "3") or "all". Sample-level failures are absorbed
// per phase; phase-level errors abort the run.
func (r *Runner) Run(ctx context.Context, selector, promptsPath, outputPath string) ([]PhaseResult, error) {
	selected, err := r.selectPhases(selector)
	if err != nil {
		return nil, err
	}

	r.logger.Info("benchmark run starting",
		slog.String("run_id", r.runID),
		slog.String("model", r.cfg.Model.Name),
		slog.String("phases", selector))

	var results []PhaseResult
	for _, p := range selected {
		if p.run == nil {
			r.logger.Info("phase not implemented, skipping",
				slog.Int("phase", p.number),
				slog.String("name", p.name))
			results = append(results, PhaseResult{Phase: p.name, Skipped: true})
			continue
		}

		metrics.PhaseRunning.WithLabelValues(p.name).Set(1)
		res, err := p.run(ctx, promptsPath, outputPath)
		metrics.PhaseRunning.WithLabelValues(p.name).Set(0)
		if err != nil {
			return results, fmt.Errorf("phase %d (%s) failed: %w", p.number, p.name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) selectPhases(selector string) ([]phase, error) {
	all := r.phases()
	if selector == "" || selector == "all" {
		return all, nil
	}
	for _, p := range all {
		if fmt.Sprintf("%d", p.number) == selector {
			return []phase{p}, nil
		}
	}
	return nil, fmt.Errorf("unknown phase selector %q (expected 1, 2, 3 or all)", selector)
}

// runBaseline measures per-sample latency, throughput and peak memory for
// every prompt in the stream, tolerating individual sample failures.
func (r *Runner) runBaseline(ctx context.Context, promptsPath, outputPath string) (PhaseResult, error) {
	result := PhaseResult{Phase: "baseline inference"}

	prompts, err := r.ensurePrompts(promptsPath)
	if err != nil {
		return result, err
	}

	writer, err := recordio.NewResultWriter(outputPath)
	if err != nil {
		return result, err
	}
	defer writer.Close()

	r.warmup(ctx)

	var collected []models.ResultRecord
	for i, prompt := range prompts {
		if err := ctx.Err(); err != nil {
			// Abort between samples; everything written so far stands.
			r.logger.Warn("run interrupted",
				slog.Int("completed", result.Completed),
				slog.Int("failed", result.Failed))
			return result, err
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return result, err
			}
		}

		r.logger.Info(fmt.Sprintf("[%d/%d] running sample", i+1, len(prompts)),
			slog.Int("context_length", prompt.ContextLength),
			slog.Int("sample_id", prompt.SampleID))

		rec, err := r.runSample(ctx, prompt)
		if err != nil {
			if errors.Is(err, engine.ErrAccessDenied) {
				// Not retried; surfaces the remediation hint to the operator.
				return result, err
			}
			if ctx.Err() != nil {
				// Operator abort mid-sample: the interrupted sample is
				// discarded, not a failure.
				r.logger.Warn("run interrupted",
					slog.Int("completed", result.Completed),
					slog.Int("failed", result.Failed))
				return result, ctx.Err()
			}
			result.Failed++
			reason := failureReason(err)
			metrics.SamplesFailed.WithLabelValues(
				metrics.ContextLengthLabel(prompt.ContextLength), reason).Inc()
			r.logger.Error("sample failed, continuing",
				slog.Int("context_length", prompt.ContextLength),
				slog.Int("sample_id", prompt.SampleID),
				slog.String("reason", reason),
				slog.String("error", err.Error()))
			continue
		}

		if err := writer.Append(*rec); err != nil {
			return result, err
		}
		if r.store != nil {
			if err := r.store.Save(ctx, r.runID, result.Phase, r.cfg.Model.Name, *rec); err != nil {
				r.logger.Warn("failed to persist result to database",
					slog.String("error", err.Error()))
			}
		}

		collected = append(collected, *rec)
		result.Completed++
		metrics.SamplesCompleted.WithLabelValues(
			metrics.ContextLengthLabel(prompt.ContextLength)).Inc()
		metrics.SampleLatency.WithLabelValues(
			metrics.ContextLengthLabel(prompt.ContextLength)).Observe(rec.TotalLatency)

		r.logger.Info("sample complete",
			slog.Int("context_length", rec.ContextLength),
			slog.Int("sample_id", rec.SampleID),
			slog.Float64("ttft_s", rec.TTFT),
			slog.Float64("total_s", rec.TotalLatency),
			slog.Float64("throughput_tps", rec.DecodeThroughput),
			slog.Float64("peak_memory_gb", rec.PeakGPUMemoryGB))
	}

	r.logSummary(collected)
	r.logger.Info("phase complete",
		slog.String("phase", result.Phase),
		slog.Int("completed", result.Completed),
		slog.Int("failed", result.Failed))

	return result, nil
}

// runSample executes a single prompt under the per-sample timeout and
// assembles its result record. Peak memory is watched for the duration of
// the engine call.
func (r *Runner) runSample(ctx context.Context, prompt models.PromptRecord) (*models.ResultRecord, error) {
	sampleCtx, cancel := context.WithTimeout(ctx, r.cfg.Workload.SampleTimeout)
	defer cancel()

	promptTokens, err := r.eng.CountTokens(sampleCtx, prompt.Prompt)
	if err != nil {
		return nil, fmt.Errorf("token count failed: %w", err)
	}

	watch := r.monitor.Watch(ctx)
	genResult, err := r.eng.Generate(sampleCtx, prompt.Prompt, r.cfg.Workload.DecodeLength)
	peakGB := watch.Stop()
	if err != nil {
		return nil, err
	}

	rec := &models.ResultRecord{
		ContextLength:    prompt.ContextLength,
		SampleID:         prompt.SampleID,
		PromptTokens:     promptTokens,
		OutputTokens:     genResult.OutputTokens,
		TTFT:             genResult.TTFT(),
		TotalLatency:     genResult.TotalLatency(),
		DecodeThroughput: genResult.DecodeThroughput(),
		PeakGPUMemoryGB:  peakGB,
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrMalformedResponse, err)
	}
	return rec, nil
}

// ensurePrompts loads the prompt stream, generating it first when the file
// does not exist.
func (r *Runner) ensurePrompts(promptsPath string) ([]models.PromptRecord, error) {
	if _, err := os.Stat(promptsPath); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("prompt file absent, generating",
			slog.String("path", promptsPath))

		gen, err := promptgen.New(promptgen.Config{
			ContextLengths: r.cfg.Workload.ContextLengths,
			NumSamples:     r.cfg.Workload.NumSamples,
			Seed:           r.cfg.Workload.Seed,
			TolerancePct:   r.cfg.Workload.LengthTolerancePct,
		}, promptgen.WithLogger(r.logger))
		if err != nil {
			return nil, err
		}
		if err := recordio.WritePrompts(promptsPath, gen.Generate()); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat prompt file: %w", err)
	}

	prompts, err := recordio.ReadPrompts(promptsPath)
	if err != nil {
		return nil, err
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("prompt file %s contains no records", promptsPath)
	}
	r.logger.Info("loaded prompts",
		slog.String("path", promptsPath),
		slog.Int("count", len(prompts)))
	return prompts, nil
}

// warmup issues one unmeasured request. Failures are logged, not fatal; the
// first measured sample will surface a genuinely broken engine.
func (r *Runner) warmup(ctx context.Context) {
	warmCtx, cancel := context.WithTimeout(ctx, r.cfg.Workload.SampleTimeout)
	defer cancel()

	r.logger.Info("warming up engine")
	if _, err := r.eng.Generate(warmCtx, warmupPrompt, 16); err != nil {
		r.logger.Warn("warmup request failed",
			slog.String("error", err.Error()))
	}
}

// logSummary logs per-context-length means at the end of a phase.
func (r *Runner) logSummary(records []models.ResultRecord) {
	if len(records) == 0 {
		return
	}
	for _, s := range analyzer.Analyze(records) {
		r.logger.Info("context length summary",
			slog.Int("context_length", s.ContextLength),
			slog.Int("samples", s.SampleCount),
			slog.Float64("mean_ttft_s", s.TTFT.Mean),
			slog.Float64("mean_throughput_tps", s.DecodeThroughput.Mean),
			slog.Float64("mean_latency_s", s.TotalLatency.Mean))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, engine.ErrResourceExhausted):
		return "oom"
	case errors.Is(err, engine.ErrMalformedResponse):
		return "malformed_response"
	default:
		return "engine_error"
	}
}
