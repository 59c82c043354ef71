// Package analyzer aggregates per-sample benchmark results into descriptive
// statistics grouped by experimental condition (context length).
package analyzer

import (
	"math"
	"sort"

	"github.com/ragbench/ragbench/pkg/models"
)

// Analyze groups records by context length and computes summary statistics
// for each group. Summaries are returned in ascending context-length order.
// An empty input yields an empty (nil) slice, not an error.
func Analyze(records []models.ResultRecord) []models.SummaryRecord {
	grouped := make(map[int][]models.ResultRecord)
	for _, rec := range records {
		grouped[rec.ContextLength] = append(grouped[rec.ContextLength], rec)
	}

	lengths := make([]int, 0, len(grouped))
	for ctxLen := range grouped {
		lengths = append(lengths, ctxLen)
	}
	sort.Ints(lengths)

	summaries := make([]models.SummaryRecord, 0, len(lengths))
	for _, ctxLen := range lengths {
		group := grouped[ctxLen]
		summaries = append(summaries, models.SummaryRecord{
			ContextLength: ctxLen,
			SampleCount:   len(group),
			PromptTokens: computeStats(collect(group, func(r models.ResultRecord) float64 {
				return float64(r.PromptTokens)
			})),
			OutputTokens: computeStats(collect(group, func(r models.ResultRecord) float64 {
				return float64(r.OutputTokens)
			})),
			TTFT: computeStats(collect(group, func(r models.ResultRecord) float64 {
				return r.TTFT
			})),
			TotalLatency: computeStats(collect(group, func(r models.ResultRecord) float64 {
				return r.TotalLatency
			})),
			DecodeThroughput: computeStats(collect(group, func(r models.ResultRecord) float64 {
				return r.DecodeThroughput
			})),
			PeakGPUMemoryGB: computeStats(collect(group, func(r models.ResultRecord) float64 {
				return r.PeakGPUMemoryGB
			})),
		})
	}
	return summaries
}

func collect(records []models.ResultRecord, metric func(models.ResultRecord) float64) []float64 {
	values := make([]float64, len(records))
	for i, rec := range records {
		values[i] = metric(rec)
	}
	return values
}

// computeStats calculates mean, min, max, median and sample standard
// deviation. StdDev is 0 for fewer than two values.
func computeStats(values []float64) models.MetricStats {
	if len(values) == 0 {
		return models.MetricStats{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	stats := models.MetricStats{
		Mean:   mean,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: median(sorted),
	}

	if len(sorted) > 1 {
		var sumSq float64
		for _, v := range sorted {
			diff := v - mean
			sumSq += diff * diff
		}
		stats.StdDev = math.Sqrt(sumSq / float64(len(sorted)-1))
	}
	return stats
}

// median of a sorted slice; even-sized groups average the two middle values.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
