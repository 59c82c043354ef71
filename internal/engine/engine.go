// Package engine defines the inference-engine boundary: submit a prompt with
// a decode bound, get back generated tokens with submission, first-token and
// completion timestamps. The engine itself (model serving, KV cache, GPU
// scheduling) is an external black box.
package engine

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors classifying engine failures. Access denial is fatal for a
// phase; the others are per-sample failures.
var (
	// ErrAccessDenied indicates the engine rejected the request for
	// authorization reasons, e.g. a gated model without credentials.
	ErrAccessDenied = errors.New("engine access denied")

	// ErrResourceExhausted indicates the device ran out of memory while
	// serving the request.
	ErrResourceExhausted = errors.New("engine resource exhausted")

	// ErrMalformedResponse indicates the engine returned a response the
	// client could not interpret.
	ErrMalformedResponse = errors.New("malformed engine response")
)

// Result holds the outcome of a single generation call.
type Result struct {
	Text         string
	OutputTokens int

	SubmittedAt  time.Time
	FirstTokenAt time.Time
	CompletedAt  time.Time
}

// TTFT returns the time from submission to the first generated token, in
// seconds.
func (r *Result) TTFT() float64 {
	return r.FirstTokenAt.Sub(r.SubmittedAt).Seconds()
}

// TotalLatency returns the time from submission to completion, in seconds.
func (r *Result) TotalLatency() float64 {
	return r.CompletedAt.Sub(r.SubmittedAt).Seconds()
}

// DecodeThroughput returns tokens per second over the decode phase only.
// The first token belongs to prefill, so throughput is undefined (zero) for
// fewer than two output tokens.
func (r *Result) DecodeThroughput() float64 {
	if r.OutputTokens <= 1 {
		return 0
	}
	decodeTime := r.TotalLatency() - r.TTFT()
	if decodeTime <= 0 {
		return 0
	}
	return float64(r.OutputTokens-1) / decodeTime
}

// Engine is the external inference engine boundary. Implementations must be
// safe for sequential use; the harness never issues concurrent calls.
type Engine interface {
	// Generate submits a prompt and blocks until decoding completes or
	// ctx expires, returning timing-annotated output.
	Generate(ctx context.Context, prompt string, maxTokens int) (*Result, error)

	// CountTokens returns the prompt's tokenized length as measured by
	// the engine's own tokenizer.
	CountTokens(ctx context.Context, text string) (int, error)
}
