package optimizer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Checkpoint is the durable record of an in-flight or finished optimization
// job (spec.md §3). It is written after every N completed batches and
// loaded on recovery; the on-disk file is named "<job_id>.json".
type Checkpoint struct {
	JobID                 string             `json:"job_id"`
	Symbol                string             `json:"symbol"`
	Strategy              string             `json:"strategy"`
	StageIndex            int                `json:"stage_index"`
	TestsCompletedInStage int                `json:"tests_completed_in_stage"`
	TotalTestsInStage     int                `json:"total_tests_in_stage"`
	LockedParams          map[string]float64 `json:"locked_params"`
	BestSoFar             map[string]float64 `json:"best_so_far"`
	BestMetrics           map[string]float64 `json:"best_metrics,omitempty"`
	Status                JobStatus          `json:"status"`
}

// CheckpointStore persists Checkpoints to a directory using the same
// temp-then-rename discipline as internal/candlestore, so a crash mid-write
// never leaves a zero-length or partial checkpoint file.
type CheckpointStore struct {
	dir string
}

// NewCheckpointStore returns a store rooted at dir. The directory is not
// created here; Save creates it on the first write.
func NewCheckpointStore(dir string) *CheckpointStore {
	return &CheckpointStore{dir: dir}
}

func (s *CheckpointStore) path(jobID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.json", jobID))
}

// Save atomically writes cp to its job file. A failure is logged and
// returned wrapped in ErrCheckpointWrite; callers must not treat this as
// fatal to the optimization run (spec.md §7 category 6).
func (s *CheckpointStore) Save(cp *Checkpoint) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		log.Warn().Err(err).Str("job_id", cp.JobID).Msg("optimizer: failed to create checkpoint directory")
		return fmt.Errorf("%w: %v", ErrCheckpointWrite, err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		log.Warn().Err(err).Str("job_id", cp.JobID).Msg("optimizer: failed to marshal checkpoint")
		return fmt.Errorf("%w: %v", ErrCheckpointWrite, err)
	}

	target := s.path(cp.JobID)
	tmpPath := fmt.Sprintf("%s.tmp.%d.%s", target, os.Getpid(), uuid.NewString())

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		log.Warn().Err(err).Str("job_id", cp.JobID).Msg("optimizer: failed to write checkpoint temp file")
		return fmt.Errorf("%w: %v", ErrCheckpointWrite, err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		log.Warn().Err(err).Str("job_id", cp.JobID).Msg("optimizer: failed to rename checkpoint into place")
		return fmt.Errorf("%w: %v", ErrCheckpointWrite, err)
	}

	return nil
}

// Load reads a job's checkpoint.
func (s *CheckpointStore) Load(jobID string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path(jobID))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrJobNotFound, jobID, err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("optimizer: corrupt checkpoint for %s: %w", jobID, err)
	}

	return &cp, nil
}

// ListIncomplete returns every checkpoint whose status is in_progress or
// paused, sorted by job ID for deterministic output.
func (s *CheckpointStore) ListIncomplete() ([]Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("optimizer: list checkpoints: %w", err)
	}

	var incomplete []Checkpoint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.Contains(name, ".tmp.") {
			continue
		}

		jobID := strings.TrimSuffix(name, ".json")
		cp, err := s.Load(jobID)
		if err != nil {
			log.Warn().Err(err).Str("job_id", jobID).Msg("optimizer: skipping unreadable checkpoint")
			continue
		}
		if cp.Status == JobInProgress || cp.Status == JobPaused {
			incomplete = append(incomplete, *cp)
		}
	}

	sort.Slice(incomplete, func(i, j int) bool { return incomplete[i].JobID < incomplete[j].JobID })

	return incomplete, nil
}
