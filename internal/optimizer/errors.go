package optimizer

import "errors"

// Sentinel errors for the optimizer's failure categories (spec.md §7).
// Call sites check these with errors.Is. A failed combination or checkpoint
// write does not abort a run; an ErrParameterInvalid from stage planning
// does, and ErrJobNotFound is returned to the caller of Cancel or a resume.
var (
	// ErrParameterInvalid marks a parameter combination that cannot be
	// evaluated over the loaded candles (e.g. a moving-average length longer
	// than the candle count, or no candles at all). That combination's
	// Result carries the error text and no metrics, and is excluded from
	// composite scoring. Stage planning also returns it when a correlated
	// group names an undeclared parameter.
	ErrParameterInvalid = errors.New("optimizer: parameter combination is invalid for the loaded candle range")

	// ErrWorkerCrash marks an entire batch in which a combination panicked.
	// Every combination in that batch is recorded with this error; the pool
	// keeps dispatching remaining batches.
	ErrWorkerCrash = errors.New("optimizer: worker crashed while executing a batch")

	// ErrCheckpointWrite marks an I/O failure while persisting a checkpoint.
	// It is logged and otherwise ignored — the next successful checkpoint
	// subsumes the loss.
	ErrCheckpointWrite = errors.New("optimizer: failed to write checkpoint")

	// ErrJobNotFound is returned by Cancel when no running job matches the
	// given job ID, and by checkpoint loading (Resume, ResumeWithRequest)
	// when the job's checkpoint file cannot be read.
	ErrJobNotFound = errors.New("optimizer: job not found")
)
