package optimizer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointStore_SaveLoadRoundTrip(t *testing.T) {
	store := NewCheckpointStore(t.TempDir())
	cp := &Checkpoint{
		JobID:                 "job-1",
		Symbol:                "BTCUSDT",
		Strategy:               "ema-crossover",
		StageIndex:            1,
		TestsCompletedInStage: 40,
		TotalTestsInStage:     200,
		LockedParams:          map[string]float64{"stop_loss": 0.02},
		BestSoFar:             map[string]float64{"ema_fast.period": 9},
		Status:                JobInProgress,
	}

	require.NoError(t, store.Save(cp))

	loaded, err := store.Load("job-1")
	require.NoError(t, err)
	assert.Equal(t, cp.JobID, loaded.JobID)
	assert.Equal(t, cp.StageIndex, loaded.StageIndex)
	assert.Equal(t, cp.BestSoFar, loaded.BestSoFar)
	assert.Equal(t, JobInProgress, loaded.Status)
}

func TestCheckpointStore_Save_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store := NewCheckpointStore(dir)
	require.NoError(t, store.Save(&Checkpoint{JobID: "job-2", Status: JobInProgress}))

	entries, err := filepath.Glob(filepath.Join(dir, "*.tmp.*"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCheckpointStore_Load_MissingJobIsNotFound(t *testing.T) {
	store := NewCheckpointStore(t.TempDir())
	_, err := store.Load("does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestCheckpointStore_ListIncomplete_FiltersByStatus(t *testing.T) {
	store := NewCheckpointStore(t.TempDir())
	require.NoError(t, store.Save(&Checkpoint{JobID: "a", Status: JobInProgress}))
	require.NoError(t, store.Save(&Checkpoint{JobID: "b", Status: JobCompleted}))
	require.NoError(t, store.Save(&Checkpoint{JobID: "c", Status: JobPaused}))

	incomplete, err := store.ListIncomplete()
	require.NoError(t, err)
	require.Len(t, incomplete, 2)
	assert.Equal(t, "a", incomplete[0].JobID)
	assert.Equal(t, "c", incomplete[1].JobID)
}

func TestCheckpointStore_ListIncomplete_EmptyDirReturnsNil(t *testing.T) {
	store := NewCheckpointStore(filepath.Join(t.TempDir(), "does-not-exist-yet"))
	incomplete, err := store.ListIncomplete()
	require.NoError(t, err)
	assert.Empty(t, incomplete)
}
