package analyzer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/ragbench/ragbench/pkg/models"
)

// csvMetrics defines the flattened column layout: one column per
// statistic-metric pair, in this order.
var csvMetrics = []struct {
	name  string
	stats func(models.SummaryRecord) models.MetricStats
}{
	{"ttft", func(s models.SummaryRecord) models.MetricStats { return s.TTFT }},
	{"throughput", func(s models.SummaryRecord) models.MetricStats { return s.DecodeThroughput }},
	{"latency", func(s models.SummaryRecord) models.MetricStats { return s.TotalLatency }},
	{"prompt_tokens", func(s models.SummaryRecord) models.MetricStats { return s.PromptTokens }},
	{"output_tokens", func(s models.SummaryRecord) models.MetricStats { return s.OutputTokens }},
	{"gpu_memory", func(s models.SummaryRecord) models.MetricStats { return s.PeakGPUMemoryGB }},
}

var statNames = []string{"mean", "min", "max", "median", "stdev"}

func statValues(m models.MetricStats) []float64 {
	return []float64{m.Mean, m.Min, m.Max, m.Median, m.StdDev}
}

// ExportCSV writes the summaries as a flattened table, one row per context
// length in ascending order. The transformation is pure: it only reads the
// summaries it is given.
func ExportCSV(path string, summaries []models.SummaryRecord) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{"context_length", "samples"}
	for _, metric := range csvMetrics {
		for _, stat := range statNames {
			header = append(header, metric.name+"_"+stat)
		}
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, s := range summaries {
		row := []string{
			strconv.Itoa(s.ContextLength),
			strconv.Itoa(s.SampleCount),
		}
		for _, metric := range csvMetrics {
			for _, v := range statValues(metric.stats(s)) {
				row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
			}
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// PrintTables renders the per-metric summary tables in a human-readable
// layout, mirroring the order metrics are most often read in: TTFT,
// throughput, total latency, GPU memory.
func PrintTables(out io.Writer, summaries []models.SummaryRecord) {
	printTable(out, "Time to First Token (TTFT, s) by Context Length", summaries,
		func(s models.SummaryRecord) models.MetricStats { return s.TTFT }, 4)
	printTable(out, "Decode Throughput (tokens/s) by Context Length", summaries,
		func(s models.SummaryRecord) models.MetricStats { return s.DecodeThroughput }, 2)
	printTable(out, "Total Latency (s) by Context Length", summaries,
		func(s models.SummaryRecord) models.MetricStats { return s.TotalLatency }, 4)
	printTable(out, "Peak GPU Memory (GB) by Context Length", summaries,
		func(s models.SummaryRecord) models.MetricStats { return s.PeakGPUMemoryGB }, 2)
}

func printTable(out io.Writer, title string, summaries []models.SummaryRecord,
	stats func(models.SummaryRecord) models.MetricStats, prec int) {

	fmt.Fprintf(out, "\n%s\n", title)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONTEXT\tSAMPLES\tMEAN\tMIN\tMAX\tMEDIAN\tSTDDEV")
	for _, s := range summaries {
		m := stats(s)
		fmt.Fprintf(w, "%d\t%d\t%.*f\t%.*f\t%.*f\t%.*f\t%.*f\n",
			s.ContextLength, s.SampleCount,
			prec, m.Mean, prec, m.Min, prec, m.Max, prec, m.Median, prec, m.StdDev)
	}
	w.Flush()
}
