// Package gpumon samples device memory usage via nvidia-smi. It degrades
// gracefully: on hosts without a GPU or without nvidia-smi, readings are
// zero and never fail the caller.
package gpumon

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// commandTimeout bounds a single nvidia-smi execution.
	commandTimeout = 5 * time.Second

	// sampleInterval is how often the peak watcher polls during a call.
	sampleInterval = 250 * time.Millisecond
)

// Monitor queries GPU memory statistics via nvidia-smi.
type Monitor struct {
	logger *slog.Logger
}

// NewMonitor creates a GPU monitor.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{logger: logger}
}

// MemoryUsedGB returns the current device memory usage in GiB, summed across
// GPUs. If nvidia-smi is unavailable or fails it returns 0 with nil error.
func (m *Monitor) MemoryUsedGB(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=memory.used",
		"--format=csv,noheader,nounits")

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(err, exec.ErrNotFound):
			m.logger.Debug("nvidia-smi not found, GPU monitoring unavailable")
		case errors.As(err, &exitErr):
			m.logger.Warn("nvidia-smi failed",
				slog.String("error", err.Error()),
				slog.String("stderr", string(exitErr.Stderr)))
		case ctx.Err() != nil:
			m.logger.Warn("nvidia-smi timed out",
				slog.Duration("timeout", commandTimeout))
		default:
			m.logger.Warn("nvidia-smi execution failed",
				slog.String("error", err.Error()))
		}
		return 0, nil
	}

	totalMiB := 0.0
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		mib, err := strconv.ParseFloat(line, 64)
		if err != nil {
			m.logger.Warn("failed to parse nvidia-smi output",
				slog.String("line", line))
			continue
		}
		totalMiB += mib
	}
	return totalMiB / 1024.0, nil
}

// PeakWatch tracks the peak memory reading observed while it is running.
type PeakWatch struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	peak float64
}

// Watch starts polling memory usage in the background and returns a watch
// whose Stop reports the peak observed. One watch covers one engine call.
func (m *Monitor) Watch(ctx context.Context) *PeakWatch {
	ctx, cancel := context.WithCancel(ctx)
	w := &PeakWatch{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(sampleInterval)
		defer ticker.Stop()

		w.record(m, ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.record(m, ctx)
			}
		}
	}()
	return w
}

func (w *PeakWatch) record(m *Monitor, ctx context.Context) {
	used, err := m.MemoryUsedGB(ctx)
	if err != nil || used <= 0 {
		return
	}
	w.mu.Lock()
	if used > w.peak {
		w.peak = used
	}
	w.mu.Unlock()
}

// Stop ends sampling and returns the peak memory in GiB seen during the
// watch (0 when no GPU reading was available).
func (w *PeakWatch) Stop() float64 {
	w.cancel()
	<-w.done

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.peak
}
