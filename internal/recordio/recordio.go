// Package recordio reads and writes the newline-delimited JSON record
// streams exchanged between pipeline stages. Producers append whole lines
// and flush per record so an interrupted run never leaves a torn record.
package recordio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ragbench/ragbench/pkg/models"
)

// maxLineBytes bounds a single record line. Prompts at the largest context
// lengths run to hundreds of kilobytes, well past bufio's default limit.
const maxLineBytes = 16 * 1024 * 1024

// WritePrompts serializes prompt records to path, one JSON object per line,
// in the order given. The parent directory is created if needed.
func WritePrompts(path string, records []models.PromptRecord) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal prompt record %s: %w", rec.Key(), err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to write prompt record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush prompt stream: %w", err)
	}
	return f.Sync()
}

// ReadPrompts loads a prompt stream. Prompt input is trusted (we generated
// it), so any malformed line is an error rather than a skip.
func ReadPrompts(path string) ([]models.PromptRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open prompt file: %w", err)
	}
	defer f.Close()

	var records []models.PromptRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec models.PromptRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("malformed prompt record at line %d: %w", lineNum, err)
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("invalid prompt record at line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}
	return records, nil
}

// ResultWriter appends result records to a stream. Each record is written as
// a single buffered line and flushed immediately, so records already written
// survive an operator abort intact.
type ResultWriter struct {
	f *os.File
	w *bufio.Writer
}

// NewResultWriter opens path for appending, creating it (and its directory)
// if absent.
func NewResultWriter(path string) (*ResultWriter, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open result file: %w", err)
	}
	return &ResultWriter{f: f, w: bufio.NewWriter(f)}, nil
}

// Append writes one result record and flushes it to the file.
func (rw *ResultWriter) Append(rec models.ResultRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal result record %s: %w", rec.Key(), err)
	}
	if _, err := rw.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write result record: %w", err)
	}
	if err := rw.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush result record: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (rw *ResultWriter) Close() error {
	if err := rw.w.Flush(); err != nil {
		rw.f.Close()
		return err
	}
	return rw.f.Close()
}

// resultLine shadows models.ResultRecord with pointer fields so that missing
// required fields are detectable after unmarshal.
type resultLine struct {
	ContextLength    *int     `json:"context_length"`
	SampleID         *int     `json:"sample_id"`
	PromptTokens     *int     `json:"prompt_tokens"`
	OutputTokens     *int     `json:"output_tokens"`
	TTFT             *float64 `json:"ttft"`
	TotalLatency     *float64 `json:"total_latency"`
	DecodeThroughput *float64 `json:"decode_throughput"`
	PeakGPUMemoryGB  *float64 `json:"peak_gpu_memory_gb"`
}

func (l resultLine) missingField() string {
	switch {
	case l.ContextLength == nil:
		return "context_length"
	case l.SampleID == nil:
		return "sample_id"
	case l.PromptTokens == nil:
		return "prompt_tokens"
	case l.OutputTokens == nil:
		return "output_tokens"
	case l.TTFT == nil:
		return "ttft"
	case l.TotalLatency == nil:
		return "total_latency"
	case l.DecodeThroughput == nil:
		return "decode_throughput"
	case l.PeakGPUMemoryGB == nil:
		return "peak_gpu_memory_gb"
	}
	return ""
}

// ReadResults loads a result stream. A line that fails to parse or is missing
// a required field is skipped with a warning; the skip count is returned so
// callers can report it. An empty file yields zero records and no error.
func ReadResults(path string, logger *slog.Logger) ([]models.ResultRecord, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open result file: %w", err)
	}
	defer f.Close()

	var records []models.ResultRecord
	skipped := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var parsed resultLine
		if err := json.Unmarshal(line, &parsed); err != nil {
			logger.Warn("skipping malformed result record",
				slog.Int("line", lineNum),
				slog.String("error", err.Error()))
			skipped++
			continue
		}
		if field := parsed.missingField(); field != "" {
			logger.Warn("skipping result record with missing field",
				slog.Int("line", lineNum),
				slog.String("field", field))
			skipped++
			continue
		}

		records = append(records, models.ResultRecord{
			ContextLength:    *parsed.ContextLength,
			SampleID:         *parsed.SampleID,
			PromptTokens:     *parsed.PromptTokens,
			OutputTokens:     *parsed.OutputTokens,
			TTFT:             *parsed.TTFT,
			TotalLatency:     *parsed.TotalLatency,
			DecodeThroughput: *parsed.DecodeThroughput,
			PeakGPUMemoryGB:  *parsed.PeakGPUMemoryGB,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("failed to read result file: %w", err)
	}
	return records, skipped, nil
}

func createFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return f, nil
}
