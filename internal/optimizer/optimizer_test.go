package optimizer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/backtestcore/internal/candlestore"
	"github.com/ajitpratap0/backtestcore/internal/strategy"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	dir := t.TempDir()

	store := candlestore.New(
		filepath.Join(dir, "candles"),
		candlestore.NewMockFetcher(24*60*60*1000),
		0,
		1000,
		30,
		zerolog.Nop(),
	)
	checkpoints := NewCheckpointStore(filepath.Join(dir, "checkpoints"))
	results, err := OpenResultsStore(filepath.Join(dir, "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { results.Close() })

	return NewOrchestrator(store, "binance", checkpoints, results, Config{
		BatchSize:        50,
		WorkerCount:      2,
		CheckpointEveryN: 1,
		TopK:             5,
		GridSizeWarnCap:  1000,
	})
}

func smallTemplate() *strategy.Template {
	tmpl := strategy.NewDefaultTemplate("ema-crossover")
	tmpl.Optimization = strategy.OptimizationSchema{
		Parameters: map[string]strategy.ParamRange{
			"ema_fast.period": {Min: 4, Max: 8, Step: 2, Default: 9, IsInteger: true},
		},
	}
	return tmpl
}

func TestRunOptimization_CompletesAndProducesBestParams(t *testing.T) {
	orch := newTestOrchestrator(t)

	req := OptimizationRequest{
		TemplateName: "ema-crossover",
		Template:     smallTemplate(),
		Symbol:       "BTCUSDT",
		Timeframe:    "1d",
		StartDate:    time.UnixMilli(0).UTC(),
		EndDate:      time.UnixMilli(60 * 24 * 60 * 60 * 1000).UTC(),
	}

	resp, err := orch.RunOptimization(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, resp.Status)
	assert.NotEmpty(t, resp.JobID)
	assert.Contains(t, resp.BestParameters, "ema_fast.period")
}

func TestRunOptimization_PauseStopsBetweenBatches(t *testing.T) {
	orch := newTestOrchestrator(t)

	req := OptimizationRequest{
		JobID:        "job-pause",
		TemplateName: "ema-crossover",
		Template:     smallTemplate(),
		Symbol:       "BTCUSDT",
		Timeframe:    "1d",
		StartDate:    time.UnixMilli(0).UTC(),
		EndDate:      time.UnixMilli(60 * 24 * 60 * 60 * 1000).UTC(),
	}
	require.NoError(t, orch.Pause("job-pause"))

	resp, err := orch.RunOptimization(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, JobPaused, resp.Status)

	incomplete, err := orch.ListIncomplete(context.Background())
	require.NoError(t, err)
	require.Len(t, incomplete, 1)
	assert.Equal(t, "job-pause", incomplete[0].JobID)
}

func TestCancel_UnknownJobReturnsJobNotFound(t *testing.T) {
	orch := newTestOrchestrator(t)
	err := orch.Cancel("does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestResume_WithoutRequestReturnsDescriptiveError(t *testing.T) {
	orch := newTestOrchestrator(t)
	require.NoError(t, orch.checkpoints.Save(&Checkpoint{JobID: "job-x", Status: JobPaused}))

	_, err := orch.Resume(context.Background(), "job-x")
	require.Error(t, err)
}
