// Package metrics exposes run-progress metrics so operators can watch a
// long benchmark from outside the process.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SamplesCompleted counts successfully measured samples per context length.
	SamplesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragbench_samples_completed_total",
			Help: "Number of benchmark samples completed successfully by context length",
		},
		[]string{"context_length"},
	)

	// SamplesFailed counts skipped samples by context length and failure reason.
	SamplesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragbench_samples_failed_total",
			Help: "Number of benchmark samples that failed, by context length and reason",
		},
		[]string{"context_length", "reason"},
	)

	// SampleLatency tracks end-to-end sample latency by context length.
	SampleLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragbench_sample_latency_seconds",
			Help:    "Total per-sample inference latency by context length",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s .. ~200s
		},
		[]string{"context_length"},
	)

	// PhaseRunning is 1 while the named phase is executing.
	PhaseRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ragbench_phase_running",
			Help: "Whether the named benchmark phase is currently executing",
		},
		[]string{"phase"},
	)
)

// ContextLengthLabel formats a context length for use as a label value.
func ContextLengthLabel(n int) string {
	return strconv.Itoa(n)
}

// StartServer serves /metrics on addr in the background. The returned stop
// function shuts the server down; it is a no-op error if the listener
// already closed.
func StartServer(addr string, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("metrics server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", slog.String("error", err.Error()))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
