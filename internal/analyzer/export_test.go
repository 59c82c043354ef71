package analyzer

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragbench/ragbench/pkg/models"
)

func sampleSummaries() []models.SummaryRecord {
	return []models.SummaryRecord{
		{
			ContextLength: 2048,
			SampleCount:   10,
			TTFT:          models.MetricStats{Mean: 0.2, Min: 0.1, Max: 0.3, Median: 0.2, StdDev: 0.05},
			TotalLatency:  models.MetricStats{Mean: 3.5, Min: 3.0, Max: 4.0, Median: 3.5, StdDev: 0.3},
		},
		{
			ContextLength:    4096,
			SampleCount:      10,
			TTFT:             models.MetricStats{Mean: 0.4, Min: 0.3, Max: 0.5, Median: 0.4, StdDev: 0.06},
			DecodeThroughput: models.MetricStats{Mean: 36.0, Min: 34.0, Max: 38.0, Median: 36.0, StdDev: 1.2},
		},
	}
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	require.NoError(t, ExportCSV(path, sampleSummaries()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3) // header plus one row per context length

	header := rows[0]
	assert.Equal(t, "context_length", header[0])
	assert.Equal(t, "samples", header[1])
	assert.Equal(t, "ttft_mean", header[2])
	assert.Equal(t, "ttft_stdev", header[6])
	assert.Equal(t, "throughput_mean", header[7])
	assert.Contains(t, header, "gpu_memory_stdev")

	// 2 leading columns + 6 metrics x 5 stats.
	assert.Len(t, header, 32)

	assert.Equal(t, "2048", rows[1][0])
	assert.Equal(t, "10", rows[1][1])
	ttftMean, err := strconv.ParseFloat(rows[1][2], 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, ttftMean, 1e-9)

	assert.Equal(t, "4096", rows[2][0])
}

func TestExportCSVCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "summary.csv")
	require.NoError(t, ExportCSV(path, sampleSummaries()))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestExportCSVEmptySummaries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	require.NoError(t, ExportCSV(path, nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1) // header only
}

func TestPrintTables(t *testing.T) {
	var buf bytes.Buffer
	PrintTables(&buf, sampleSummaries())

	out := buf.String()
	assert.Contains(t, out, "Time to First Token")
	assert.Contains(t, out, "Decode Throughput")
	assert.Contains(t, out, "Total Latency")
	assert.Contains(t, out, "Peak GPU Memory")
	assert.Contains(t, out, "CONTEXT")
	assert.Contains(t, out, "2048")
	assert.Contains(t, out, "4096")
}
