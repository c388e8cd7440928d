package optimizer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestResultsStore(t *testing.T) *ResultsStore {
	t.Helper()
	store, err := OpenResultsStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestResultsStore_SaveAndReadRoundTrip(t *testing.T) {
	store := openTestResultsStore(t)
	ctx := context.Background()

	results := []Result{
		{ResultIndex: 0, Parameters: map[string]float64{"stop_loss": 0.02}, Metrics: map[string]float64{"sharpe_ratio": 1.2}, Score: 0.8},
		{ResultIndex: 1, Parameters: map[string]float64{"stop_loss": 0.03}, Metrics: map[string]float64{"sharpe_ratio": 1.5}, Score: 0.9},
	}

	require.NoError(t, store.SaveBatch(ctx, "job-1", results))

	read, err := store.ReadResults(ctx, "job-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, read, 2)
	assert.Equal(t, 0.02, read[0].Parameters["stop_loss"])
	assert.Equal(t, 1.5, read[1].Metrics["sharpe_ratio"])
}

func TestResultsStore_SaveBatch_ReplaceOnRetry(t *testing.T) {
	store := openTestResultsStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBatch(ctx, "job-1", []Result{
		{ResultIndex: 0, Parameters: map[string]float64{"x": 1}, Metrics: map[string]float64{"sharpe_ratio": 1}, Score: 0.1},
	}))
	require.NoError(t, store.SaveBatch(ctx, "job-1", []Result{
		{ResultIndex: 0, Parameters: map[string]float64{"x": 2}, Metrics: map[string]float64{"sharpe_ratio": 2}, Score: 0.2},
	}))

	count, err := store.CountResults(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	read, err := store.ReadResults(ctx, "job-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, read, 1)
	assert.Equal(t, float64(2), read[0].Parameters["x"])
}

func TestResultsStore_ReadResults_Pagination(t *testing.T) {
	store := openTestResultsStore(t)
	ctx := context.Background()

	var results []Result
	for i := 0; i < 5; i++ {
		results = append(results, Result{ResultIndex: i, Parameters: map[string]float64{"x": float64(i)}, Metrics: map[string]float64{}, Score: float64(i)})
	}
	require.NoError(t, store.SaveBatch(ctx, "job-1", results))

	page, err := store.ReadResults(ctx, "job-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 2, page[0].ResultIndex)
	assert.Equal(t, 3, page[1].ResultIndex)
}

func TestResultsStore_SaveBatch_EmptyIsNoop(t *testing.T) {
	store := openTestResultsStore(t)
	require.NoError(t, store.SaveBatch(context.Background(), "job-1", nil))
}

func TestResultsStore_CountResults_UnknownJobIsZero(t *testing.T) {
	store := openTestResultsStore(t)
	count, err := store.CountResults(context.Background(), "no-such-job")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
