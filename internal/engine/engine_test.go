package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func resultWithTimings(ttft, total time.Duration, outputTokens int) *Result {
	start := time.Unix(1700000000, 0)
	return &Result{
		OutputTokens: outputTokens,
		SubmittedAt:  start,
		FirstTokenAt: start.Add(ttft),
		CompletedAt:  start.Add(total),
	}
}

func TestResultTimings(t *testing.T) {
	r := resultWithTimings(200*time.Millisecond, 3*time.Second, 129)

	assert.InDelta(t, 0.2, r.TTFT(), 1e-9)
	assert.InDelta(t, 3.0, r.TotalLatency(), 1e-9)

	// 128 decode tokens over 2.8s of decode time.
	assert.InDelta(t, 128/2.8, r.DecodeThroughput(), 1e-9)
}

func TestDecodeThroughputUndefinedForShortOutputs(t *testing.T) {
	assert.Zero(t, resultWithTimings(200*time.Millisecond, 3*time.Second, 0).DecodeThroughput())
	assert.Zero(t, resultWithTimings(200*time.Millisecond, 3*time.Second, 1).DecodeThroughput())
}

func TestDecodeThroughputZeroDecodeTime(t *testing.T) {
	// Completion stamped at the same instant as the first token.
	r := resultWithTimings(time.Second, time.Second, 10)
	assert.Zero(t, r.DecodeThroughput())
}
