package candlestore

import "context"

// Fetcher is the exchange capability the candle store consumes: ascending
// OHLCV bars for one page, starting at or after sinceMs, capped at limit.
// The exchange is free to return fewer than limit rows; rate-limiting is the
// capability's own responsibility (spec.md §6).
type Fetcher interface {
	FetchOHLCV(ctx context.Context, symbol, timeframe string, sinceMs int64, limit int) ([]Candle, error)
}
