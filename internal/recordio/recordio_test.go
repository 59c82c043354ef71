package recordio

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragbench/ragbench/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPromptRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.jsonl")

	want := []models.PromptRecord{
		{ContextLength: 2048, SampleID: 0, Prompt: "Context:\nfiller\n\nQuestion: What is the summary?\n\nAnswer:", Query: "What is the summary?"},
		{ContextLength: 2048, SampleID: 1, Prompt: "Context:\nmore filler\n\nQuestion: Explain the main idea.\n\nAnswer:", Query: "Explain the main idea."},
		{ContextLength: 4096, SampleID: 0, Prompt: "Context:\neven more\n\nQuestion: What does this tell us?\n\nAnswer:", Query: "What does this tell us?"},
	}

	require.NoError(t, WritePrompts(path, want))

	got, err := ReadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWritePromptsCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "prompts.jsonl")

	records := []models.PromptRecord{{ContextLength: 2048, SampleID: 0, Prompt: "p"}}
	require.NoError(t, WritePrompts(path, records))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestReadPromptsRejectsMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.jsonl")
	data := `{"context_length":2048,"sample_id":0,"prompt":"ok"}
not json at all
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	_, err := ReadPrompts(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadPromptsRejectsInvalidRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.jsonl")
	data := `{"context_length":0,"sample_id":0,"prompt":"bad length"}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	_, err := ReadPrompts(path)
	assert.Error(t, err)
}

func TestResultWriterAppendsAndSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")

	recA := models.ResultRecord{
		ContextLength: 2048, SampleID: 0,
		PromptTokens: 2100, OutputTokens: 128,
		TTFT: 0.21, TotalLatency: 3.5, DecodeThroughput: 38.6, PeakGPUMemoryGB: 14.2,
	}
	recB := models.ResultRecord{
		ContextLength: 2048, SampleID: 1,
		PromptTokens: 2050, OutputTokens: 128,
		TTFT: 0.20, TotalLatency: 3.4, DecodeThroughput: 39.7, PeakGPUMemoryGB: 14.1,
	}

	w, err := NewResultWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(recA))
	require.NoError(t, w.Close())

	// Reopen and append; the earlier record must be preserved.
	w, err = NewResultWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(recB))
	require.NoError(t, w.Close())

	got, skipped, err := ReadResults(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, []models.ResultRecord{recA, recB}, got)
}

func TestReadResultsSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	data := `{"context_length":2048,"sample_id":0,"prompt_tokens":2100,"output_tokens":128,"ttft":0.2,"total_latency":3.5,"decode_throughput":38.6,"peak_gpu_memory_gb":14.2}
{"context_length":2048,"sample_id":1,"prompt_tokens":2100,"output_tokens":128,"total_latency":3.5,"decode_throughput":38.6,"peak_gpu_memory_gb":14.2}
garbage
{"context_length":4096,"sample_id":0,"prompt_tokens":4200,"output_tokens":128,"ttft":0.4,"total_latency":4.1,"decode_throughput":37.2,"peak_gpu_memory_gb":15.8}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	got, skipped, err := ReadResults(path, testLogger())
	require.NoError(t, err)

	// Line 2 is missing ttft, line 3 is not JSON.
	assert.Equal(t, 2, skipped)
	require.Len(t, got, 2)
	assert.Equal(t, 2048, got[0].ContextLength)
	assert.Equal(t, 4096, got[1].ContextLength)
}

func TestReadResultsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	got, skipped, err := ReadResults(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	assert.Empty(t, got)
}

func TestReadResultsMissingFile(t *testing.T) {
	_, _, err := ReadResults(filepath.Join(t.TempDir(), "absent.jsonl"), testLogger())
	assert.Error(t, err)
}

func TestReadResultsZeroValuesAreValid(t *testing.T) {
	// A present-but-zero field is a legitimate reading (e.g. no GPU), not a
	// missing field.
	path := filepath.Join(t.TempDir(), "results.jsonl")
	data := `{"context_length":2048,"sample_id":0,"prompt_tokens":2100,"output_tokens":0,"ttft":0.2,"total_latency":0.2,"decode_throughput":0,"peak_gpu_memory_gb":0}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	got, skipped, err := ReadResults(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, got, 1)
	assert.Zero(t, got[0].DecodeThroughput)
	assert.Zero(t, got[0].PeakGPUMemoryGB)
}
