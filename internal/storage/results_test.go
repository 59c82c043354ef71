package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragbench/ragbench/pkg/models"
)

func newTestStore(t *testing.T) *ResultStore {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "bench.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return NewResultStore(db)
}

func testRecord(ctxLen, sampleID int) models.ResultRecord {
	return models.ResultRecord{
		ContextLength:    ctxLen,
		SampleID:         sampleID,
		PromptTokens:     ctxLen + 50,
		OutputTokens:     128,
		TTFT:             0.2,
		TotalLatency:     3.5,
		DecodeThroughput: 38.5,
		PeakGPUMemoryGB:  14.2,
	}
}

func TestSaveAndListByRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	recs := []models.ResultRecord{
		testRecord(2048, 0),
		testRecord(2048, 1),
		testRecord(4096, 0),
	}
	for _, rec := range recs {
		require.NoError(t, store.Save(ctx, "run-abc", "baseline inference", "test-model", rec))
	}
	require.NoError(t, store.Save(ctx, "run-other", "baseline inference", "test-model", testRecord(2048, 0)))

	got, err := store.ListByRun(ctx, "run-abc")
	require.NoError(t, err)
	assert.Equal(t, recs, got)
}

func TestListByRunEmpty(t *testing.T) {
	store := newTestStore(t)

	got, err := store.ListByRun(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "run-a", "baseline inference", "m", testRecord(2048, 0)))
	require.NoError(t, store.Save(ctx, "run-b", "baseline inference", "m", testRecord(2048, 0)))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"run-a", "run-b"}, runs)
}

func TestCountByRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, "run-a", "baseline inference", "m", testRecord(2048, i)))
	}

	n, err := store.CountByRun(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = store.CountByRun(ctx, "run-missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMigrateIdempotent(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "bench.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx))
}
