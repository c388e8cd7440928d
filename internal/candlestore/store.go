package candlestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Options influence how Fetch behaves when the cache does not already cover
// the requested range (spec.md §4.1).
type Options struct {
	// ReadOnly never touches the network; returns what exists intersected
	// with the requested range, or empty.
	ReadOnly bool
	// FullHistoryIfEmpty backfills from the configured inception timestamp,
	// rather than from Since, the first time a file is created.
	FullHistoryIfEmpty bool
	// AllowLargeBackfill permits intraday head-backfills beyond
	// MaxIntradayBackfillDays; otherwise such a backfill is refused and the
	// store returns whatever it already has.
	AllowLargeBackfill bool
}

// Store is the incremental OHLCV candle cache: one file per
// (exchange, symbol, timeframe), backed by Fetcher for incremental updates.
type Store struct {
	rootDir                 string
	fetcher                 Fetcher
	inceptionMS             int64
	fetchLimit              int
	maxIntradayBackfillDays int
	retry                   RetryConfig
	log                     zerolog.Logger
}

// New constructs a Store rooted at rootDir, using fetcher for network
// backfill. fetchLimit bounds how many bars are requested per page.
func New(rootDir string, fetcher Fetcher, inceptionMS int64, fetchLimit, maxIntradayBackfillDays int, log zerolog.Logger) *Store {
	return &Store{
		rootDir:                 rootDir,
		fetcher:                 fetcher,
		inceptionMS:             inceptionMS,
		fetchLimit:              fetchLimit,
		maxIntradayBackfillDays: maxIntradayBackfillDays,
		retry:                   DefaultRetryConfig(),
		log:                     log.With().Str("subcomponent", "candlestore").Logger(),
	}
}

// Fetch returns the ordered candle sequence for (exchange, symbol,
// timeframe) clamped to [since, until], backfilling gaps from the network
// as permitted by opts.
func (s *Store) Fetch(ctx context.Context, exchange, symbol, timeframe string, since, until int64, opts Options) ([]Candle, error) {
	if since > until {
		return nil, fmt.Errorf("%w: since (%d) > until (%d)", ErrParameterInvalid, since, until)
	}
	period, err := Period(timeframe)
	if err != nil {
		return nil, err
	}

	return s.fetchWithRetryDepth(ctx, exchange, symbol, timeframe, since, until, opts, period, 0)
}

func (s *Store) path(exchange, symbol, timeframe string) string {
	return filepath.Join(s.rootDir, FileName(exchange, symbol, timeframe))
}

// fetchWithRetryDepth implements the corrupt-file delete+retry-once policy
// (spec.md §4.1 failure semantics): depth is strictly bounded to 1.
func (s *Store) fetchWithRetryDepth(ctx context.Context, exchange, symbol, timeframe string, since, until int64, opts Options, period time.Duration, depth int) ([]Candle, error) {
	path := s.path(exchange, symbol, timeframe)

	minTS, maxTS, exists, err := readTimestampRange(path)
	if err != nil {
		if depth >= 1 {
			return nil, fmt.Errorf("%w: repeated corruption at %s", ErrDataCorrupt, path)
		}
		s.log.Warn().Str("path", path).Err(err).Msg("candlestore: corrupt cache file, deleting and retrying once")
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("candlestore: remove corrupt file: %w", rmErr)
		}
		return s.fetchWithRetryDepth(ctx, exchange, symbol, timeframe, since, until, opts, period, depth+1)
	}

	periodMS := period.Milliseconds()

	if !exists {
		if opts.ReadOnly {
			return []Candle{}, nil
		}
		effectiveSince := since
		if opts.FullHistoryIfEmpty {
			effectiveSince = s.inceptionMS
		}
		if !s.backfillAllowed(timeframe, effectiveSince, until, opts) {
			s.log.Warn().Str("symbol", symbol).Str("timeframe", timeframe).
				Msg("candlestore: intraday backfill exceeds limit and allow_large_backfill is false; returning empty")
			return []Candle{}, nil
		}
		fetched, err := s.page(ctx, symbol, timeframe, effectiveSince, until, periodMS)
		if err != nil {
			return nil, err
		}
		if len(fetched) == 0 {
			return nil, fmt.Errorf("%w: first backfill returned no data for %s %s %s", ErrDataUnavailable, exchange, symbol, timeframe)
		}
		if err := writeFile(path, fetched); err != nil {
			return nil, err
		}
		return clamp(fetched, since, until), nil
	}

	if opts.ReadOnly {
		existing, err := readFile(path)
		if err != nil {
			return nil, err
		}
		return clamp(existing, since, until), nil
	}

	var fetchedAll []Candle

	if maxTS < until {
		tailSince := maxTS - periodMS // deliberate one-bar overlap to refresh a possibly-partial bar
		fetched, err := s.page(ctx, symbol, timeframe, tailSince, until, periodMS)
		if err != nil {
			// Tail-refresh failure does not corrupt the file; fall back to
			// what's cached (spec.md §7 category 7).
			s.log.Warn().Err(err).Msg("candlestore: tail refresh failed, proceeding with cached data")
		} else {
			fetchedAll = append(fetchedAll, fetched...)
		}
	}

	if minTS > since {
		if s.backfillAllowed(timeframe, since, minTS, opts) {
			fetched, err := s.page(ctx, symbol, timeframe, since, minTS, periodMS)
			if err != nil {
				s.log.Warn().Err(err).Msg("candlestore: head backfill failed, proceeding with cached data")
			} else {
				fetchedAll = append(fetchedAll, fetched...)
			}
		} else {
			s.log.Warn().Str("symbol", symbol).Str("timeframe", timeframe).
				Msg("candlestore: intraday head-backfill exceeds limit and allow_large_backfill is false; skipping")
		}
	}

	if len(fetchedAll) > 0 {
		existing, err := readFile(path)
		if err != nil {
			return nil, err
		}
		merged := mergeDedup(existing, fetchedAll)
		if err := writeFile(path, merged); err != nil {
			return nil, err
		}
		return clamp(merged, since, until), nil
	}

	existing, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return clamp(existing, since, until), nil
}

// backfillAllowed gates intraday head/first backfills beyond
// maxIntradayBackfillDays unless the caller opted in.
func (s *Store) backfillAllowed(timeframe string, from, to int64, opts Options) bool {
	if !IsIntraday(timeframe) {
		return true
	}
	if opts.AllowLargeBackfill {
		return true
	}
	days := float64(to-from) / float64(24*60*60*1000)
	return days <= float64(s.maxIntradayBackfillDays)
}

// page pages the exchange capability from since up to (and including bars
// touching) until, advancing the cursor to last_returned_ts+periodMS (the
// next bar's open time) each iteration.
func (s *Store) page(ctx context.Context, symbol, timeframe string, since, until, periodMS int64) ([]Candle, error) {
	var all []Candle
	cursor := since

	for cursor < until {
		batch, err := withRetry(ctx, s.retry, s.log, func() ([]Candle, error) {
			return s.fetcher.FetchOHLCV(ctx, symbol, timeframe, cursor, s.fetchLimit)
		})
		if err != nil {
			if len(all) > 0 {
				return all, nil // partial progress is still useful to the caller
			}
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)

		last := batch[len(batch)-1].TimestampMS
		cursor = last + periodMS

		if len(batch) < s.fetchLimit {
			break
		}
		if cursor >= until {
			break
		}
	}

	return all, nil
}

// mergeDedup combines existing and incoming candles, keeping the latest
// version of any duplicate timestamp (incoming wins), sorted ascending.
func mergeDedup(existing, incoming []Candle) []Candle {
	byTS := make(map[int64]Candle, len(existing)+len(incoming))
	for _, c := range existing {
		byTS[c.TimestampMS] = c
	}
	for _, c := range incoming {
		byTS[c.TimestampMS] = c
	}

	merged := make([]Candle, 0, len(byTS))
	for _, c := range byTS {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].TimestampMS < merged[j].TimestampMS })
	return merged
}

func clamp(candles []Candle, since, until int64) []Candle {
	out := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if c.TimestampMS >= since && c.TimestampMS <= until {
			out = append(out, c)
		}
	}
	return out
}
