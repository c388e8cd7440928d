package candlestore

import "errors"

// Error taxonomy per spec categories 1, 2 and 7: data-absence, data-corruption,
// exchange-unavailable. These are sentinels so callers can discriminate with
// errors.Is rather than string matching.
var (
	// ErrDataUnavailable means the store cannot satisfy the requested range
	// even after attempting a fetch: a first-ever backfill returned no data.
	// An exchange failure during that backfill is returned as the fetch
	// error itself (ErrExchangeUnavailable once retries are exhausted).
	ErrDataUnavailable = errors.New("candlestore: data unavailable")

	// ErrDataCorrupt means the cache file could not be read (I/O error, zero
	// rows, or a truncated header) and is treated as absent after one
	// delete-and-retry.
	ErrDataCorrupt = errors.New("candlestore: cache file corrupt")

	// ErrExchangeUnavailable means the fetch capability failed after
	// exhausting its bounded retry/backoff budget.
	ErrExchangeUnavailable = errors.New("candlestore: exchange unavailable")

	// ErrParameterInvalid flags a malformed request (unknown timeframe,
	// since > until).
	ErrParameterInvalid = errors.New("candlestore: invalid parameter")
)
