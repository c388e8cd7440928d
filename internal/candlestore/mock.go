package candlestore

import "context"

// MockFetcher generates a deterministic synthetic candle series, used by
// tests and by callers exercising the store without network access.
type MockFetcher struct {
	// PeriodMS is the bar duration in milliseconds.
	PeriodMS int64
	// BasePrice is the starting close price at timestamp 0.
	BasePrice float64
	// StepPrice is the per-bar price drift applied deterministically.
	StepPrice float64
}

// NewMockFetcher returns a fetcher producing a mildly trending series so
// indicator warm-up and crossover tests have something to bind to.
func NewMockFetcher(periodMS int64) *MockFetcher {
	return &MockFetcher{PeriodMS: periodMS, BasePrice: 100, StepPrice: 0.05}
}

// FetchOHLCV implements Fetcher.
func (m *MockFetcher) FetchOHLCV(_ context.Context, _, _ string, sinceMs int64, limit int) ([]Candle, error) {
	if limit <= 0 {
		return nil, nil
	}
	startIdx := sinceMs / m.PeriodMS

	candles := make([]Candle, 0, limit)
	for i := int64(0); i < int64(limit); i++ {
		idx := startIdx + i
		ts := idx * m.PeriodMS
		closePrice := m.BasePrice + float64(idx)*m.StepPrice
		openPrice := closePrice - m.StepPrice/2
		candles = append(candles, Candle{
			TimestampMS: ts,
			Open:        openPrice,
			High:        closePrice + 0.1,
			Low:         openPrice - 0.1,
			Close:       closePrice,
			Volume:      1000 + float64(idx%7)*10,
		})
	}
	return candles, nil
}
