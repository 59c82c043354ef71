package storage

import (
	"context"
	"fmt"

	"github.com/ragbench/ragbench/pkg/models"
)

// ResultStore persists per-sample benchmark observations.
type ResultStore struct {
	db *DB
}

// NewResultStore creates a result store over an open database.
func NewResultStore(db *DB) *ResultStore {
	return &ResultStore{db: db}
}

// Save stores one result record under the given run and phase.
func (s *ResultStore) Save(ctx context.Context, runID, phase, modelName string, rec models.ResultRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (
			run_id, phase, model_name,
			context_length, sample_id, prompt_tokens, output_tokens,
			ttft, total_latency, decode_throughput, peak_gpu_memory_gb
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID, phase, modelName,
		rec.ContextLength, rec.SampleID, rec.PromptTokens, rec.OutputTokens,
		rec.TTFT, rec.TotalLatency, rec.DecodeThroughput, rec.PeakGPUMemoryGB,
	)
	if err != nil {
		return fmt.Errorf("failed to save result %s: %w", rec.Key(), err)
	}
	return nil
}

// ListByRun returns a run's result records in insertion order.
func (s *ResultStore) ListByRun(ctx context.Context, runID string) ([]models.ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT context_length, sample_id, prompt_tokens, output_tokens,
		       ttft, total_latency, decode_throughput, peak_gpu_memory_gb
		FROM results
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ResultRecord
	for rows.Next() {
		var rec models.ResultRecord
		if err := rows.Scan(
			&rec.ContextLength, &rec.SampleID, &rec.PromptTokens, &rec.OutputTokens,
			&rec.TTFT, &rec.TotalLatency, &rec.DecodeThroughput, &rec.PeakGPUMemoryGB,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListRuns returns the distinct run IDs present, most recent first.
func (s *ResultStore) ListRuns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id FROM results
		GROUP BY run_id
		ORDER BY MAX(created_at) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}

// CountByRun returns the number of stored results for a run.
func (s *ResultStore) CountByRun(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM results WHERE run_id = ?
	`, runID).Scan(&n)
	return n, err
}
