// Package models contains the record types shared by the benchmark pipeline
// stages: synthetic prompts, per-sample results, and aggregated summaries.
package models

import "fmt"

// PromptRecord is one synthetic RAG sample. Records are immutable once
// written; the runner consumes them read-only.
type PromptRecord struct {
	ContextLength int    `json:"context_length"` // nominal target token count
	SampleID      int    `json:"sample_id"`      // contiguous from 0 within a context length
	Prompt        string `json:"prompt"`         // full synthesized prompt (context + query)
	Query         string `json:"query,omitempty"`
}

// Key identifies the record within a generation run.
func (p PromptRecord) Key() RecordKey {
	return RecordKey{ContextLength: p.ContextLength, SampleID: p.SampleID}
}

// Validate checks structural invariants of a prompt record.
func (p PromptRecord) Validate() error {
	if p.ContextLength <= 0 {
		return fmt.Errorf("context_length must be positive, got %d", p.ContextLength)
	}
	if p.SampleID < 0 {
		return fmt.Errorf("sample_id must be non-negative, got %d", p.SampleID)
	}
	if p.Prompt == "" {
		return fmt.Errorf("prompt is empty")
	}
	return nil
}

// ResultRecord is one benchmark observation, emitted by the runner after a
// sample completes. Failed samples produce no record.
type ResultRecord struct {
	ContextLength    int     `json:"context_length"`
	SampleID         int     `json:"sample_id"`
	PromptTokens     int     `json:"prompt_tokens"`  // actual tokenized length per the engine
	OutputTokens     int     `json:"output_tokens"`  // tokens decoded
	TTFT             float64 `json:"ttft"`           // seconds, submission to first token
	TotalLatency     float64 `json:"total_latency"`  // seconds, submission to completion
	DecodeThroughput float64 `json:"decode_throughput"` // tokens/sec over the decode phase
	PeakGPUMemoryGB  float64 `json:"peak_gpu_memory_gb"`
}

// Key identifies the originating prompt.
func (r ResultRecord) Key() RecordKey {
	return RecordKey{ContextLength: r.ContextLength, SampleID: r.SampleID}
}

// Validate checks the timing invariants: total_latency >= ttft >= 0.
func (r ResultRecord) Validate() error {
	if r.TTFT < 0 {
		return fmt.Errorf("ttft is negative: %f", r.TTFT)
	}
	if r.TotalLatency < r.TTFT {
		return fmt.Errorf("total_latency %f is less than ttft %f", r.TotalLatency, r.TTFT)
	}
	if r.OutputTokens < 0 {
		return fmt.Errorf("output_tokens is negative: %d", r.OutputTokens)
	}
	return nil
}

// RecordKey is the (context_length, sample_id) pair that ties a result back
// to its prompt.
type RecordKey struct {
	ContextLength int
	SampleID      int
}

func (k RecordKey) String() string {
	return fmt.Sprintf("ctx=%d sample=%d", k.ContextLength, k.SampleID)
}

// MetricStats holds descriptive statistics for one numeric metric within a
// group. StdDev is the sample standard deviation, defined as 0 for groups
// with fewer than two members.
type MetricStats struct {
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stdev"`
}

// SummaryRecord aggregates ResultRecords for one context length. It is
// derived on demand by the analyzer and recomputed from scratch on every
// invocation.
type SummaryRecord struct {
	ContextLength    int         `json:"context_length"`
	SampleCount      int         `json:"sample_count"`
	PromptTokens     MetricStats `json:"prompt_tokens"`
	OutputTokens     MetricStats `json:"output_tokens"`
	TTFT             MetricStats `json:"ttft"`
	TotalLatency     MetricStats `json:"total_latency"`
	DecodeThroughput MetricStats `json:"decode_throughput"`
	PeakGPUMemoryGB  MetricStats `json:"peak_gpu_memory_gb"`
}
