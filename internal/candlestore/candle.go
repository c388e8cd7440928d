// Package candlestore implements the incremental OHLCV candle cache: a
// local, append-only, time-indexed columnar file per (exchange, symbol,
// timeframe), with partial-range queries, gap-free incremental backfill,
// and atomic writes.
package candlestore

import (
	"fmt"
	"strings"
	"time"
)

// Candle is one OHLCV record for a single time interval.
type Candle struct {
	TimestampMS int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}

// UTC returns the candle's timestamp as a UTC time value, for diagnostics.
func (c Candle) UTC() time.Time {
	return time.UnixMilli(c.TimestampMS).UTC()
}

// Timeframe periods this store understands. Values are canonical exchange
// timeframe strings; the period is the nominal bar duration used for
// overlap/backfill arithmetic.
var timeframePeriods = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// Period returns the nominal bar duration for a timeframe string.
func Period(timeframe string) (time.Duration, error) {
	p, ok := timeframePeriods[timeframe]
	if !ok {
		return 0, fmt.Errorf("%w: unknown timeframe %q", ErrParameterInvalid, timeframe)
	}
	return p, nil
}

// IsIntraday reports whether a timeframe is finer than daily, which is the
// cadence at which allow_large_backfill gates head-backfill size.
func IsIntraday(timeframe string) bool {
	p, ok := timeframePeriods[timeframe]
	return ok && p < 24*time.Hour
}

// SafeSymbol replaces characters that cannot appear in a file name. Exchange
// symbols such as "BTC/USDT" become "BTC_USDT".
func SafeSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "_")
}

// FileName returns the candle store file name for an (exchange, symbol,
// timeframe) triple: "<exchange>/<SAFE_SYMBOL>_<timeframe>.cdl".
func FileName(exchange, symbol, timeframe string) string {
	return fmt.Sprintf("%s/%s_%s.cdl", exchange, SafeSymbol(symbol), timeframe)
}
