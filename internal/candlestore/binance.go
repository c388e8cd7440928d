package candlestore

import (
	"context"
	"fmt"
	"strconv"

	binance "github.com/adshao/go-binance/v2"
)

// BinanceFetcher is the reference fetch_ohlcv capability implementation,
// wrapping the read-only kline endpoint. It never places orders — order
// routing is out of scope (spec.md §1 Non-goals) — so it is constructed
// without API credentials.
type BinanceFetcher struct {
	client *binance.Client
}

// NewBinanceFetcher constructs a fetcher against the public klines endpoint.
// testnet switches the client's base URL the same way the teacher's
// exchange client does for paper-trading safety.
func NewBinanceFetcher(testnet bool) *BinanceFetcher {
	client := binance.NewClient("", "")
	if testnet {
		client.BaseURL = "https://testnet.binance.vision"
	}
	return &BinanceFetcher{client: client}
}

// FetchOHLCV implements Fetcher.
func (b *BinanceFetcher) FetchOHLCV(ctx context.Context, symbol, timeframe string, sinceMs int64, limit int) ([]Candle, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(SafeSymbol(symbol)).
		Interval(timeframe).
		StartTime(sinceMs).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: fetch klines: %w", err)
	}

	candles := make([]Candle, 0, len(klines))
	for _, k := range klines {
		c, err := klineToCandle(k)
		if err != nil {
			return nil, fmt.Errorf("binance: parse kline: %w", err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func klineToCandle(k *binance.Kline) (Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return Candle{}, err
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return Candle{}, err
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return Candle{}, err
	}
	closeP, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return Candle{}, err
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return Candle{}, err
	}

	return Candle{
		TimestampMS: k.OpenTime,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       closeP,
		Volume:      volume,
	}, nil
}
