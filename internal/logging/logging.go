// Package logging configures the process-wide structured logger. Setup is
// called exactly once at process start; every component receives a
// *slog.Logger handle rather than reaching for global state.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds logging configuration.
type Config struct {
	Level   string // "DEBUG", "INFO", "WARNING", "ERROR"
	Format  string // "json" or "text"
	LogDir  string // directory for the log file sink
	Console bool   // write to stderr
	File    bool   // write to a timestamped file under LogDir
}

// Setup configures and installs the global logger. It returns the logger and
// the path of the log file if a file sink was opened (empty otherwise).
func Setup(cfg Config) (*slog.Logger, string, error) {
	level := parseLevel(cfg.Level)

	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, os.Stderr)
	}

	logPath := ""
	if cfg.File {
		dir := cfg.LogDir
		if dir == "" {
			dir = "logs"
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, "", fmt.Errorf("failed to create log directory: %w", err)
		}
		logPath = filepath.Join(dir, fmt.Sprintf("ragbench_%s.log", time.Now().Format("20060102_150405")))
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open log file: %w", err)
		}
		sinks = append(sinks, f)
	}

	var output io.Writer
	switch len(sinks) {
	case 0:
		output = io.Discard
	case 1:
		output = sinks[0]
	default:
		output = io.MultiWriter(sinks...)
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger, logPath, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
