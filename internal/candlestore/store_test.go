package candlestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dayMS = int64(24 * 60 * 60 * 1000)

func newTestStore(t *testing.T) (*Store, *MockFetcher) {
	t.Helper()
	fetcher := NewMockFetcher(dayMS)
	store := New(t.TempDir(), fetcher, 0, 1000, 900, zerolog.Nop())
	return store, fetcher
}

func TestFetch_FirstBackfillCreatesFile(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	candles, err := store.Fetch(ctx, "binance", "BTC/USDT", "1d", 0, 14*dayMS, Options{})
	require.NoError(t, err)
	assert.Len(t, candles, 15)
	assert.Equal(t, int64(0), candles[0].TimestampMS)
	assert.Equal(t, 14*dayMS, candles[len(candles)-1].TimestampMS)

	path := store.path("binance", "BTC/USDT", "1d")
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestFetch_GaplessTailRefresh(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// Cache covers day 0 through day 9.
	_, err := store.Fetch(ctx, "binance", "BTC/USDT", "1d", 0, 9*dayMS, Options{})
	require.NoError(t, err)

	// Request extends to day 14; expect the file to now cover 0..14 with no duplicates.
	candles, err := store.Fetch(ctx, "binance", "BTC/USDT", "1d", 0, 14*dayMS, Options{})
	require.NoError(t, err)
	assert.Len(t, candles, 15)

	seen := map[int64]bool{}
	for _, c := range candles {
		assert.False(t, seen[c.TimestampMS], "duplicate timestamp %d", c.TimestampMS)
		seen[c.TimestampMS] = true
	}
}

func TestFetch_ReadOnlyWithNoCacheReturnsEmpty(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	candles, err := store.Fetch(ctx, "binance", "BTC/USDT", "1d", 0, 14*dayMS, Options{ReadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestFetch_ReadOnlyWithCacheReturnsIntersection(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Fetch(ctx, "binance", "BTC/USDT", "1d", 0, 20*dayMS, Options{})
	require.NoError(t, err)

	candles, err := store.Fetch(ctx, "binance", "BTC/USDT", "1d", 5*dayMS, 10*dayMS, Options{ReadOnly: true})
	require.NoError(t, err)
	assert.Len(t, candles, 6)
	assert.Equal(t, 5*dayMS, candles[0].TimestampMS)
	assert.Equal(t, 10*dayMS, candles[len(candles)-1].TimestampMS)
}

func TestFetch_CorruptFileIsDeletedAndRetriedOnce(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	path := store.path("binance", "BTC/USDT", "1d")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not a candle file"), 0o644))

	candles, err := store.Fetch(ctx, "binance", "BTC/USDT", "1d", 0, 5*dayMS, Options{})
	require.NoError(t, err)
	assert.Len(t, candles, 6)
}

func TestFetch_AtomicWriteLeavesNoPartialFile(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Fetch(ctx, "binance", "BTC/USDT", "1d", 0, 5*dayMS, Options{})
	require.NoError(t, err)

	dir := filepath.Dir(store.path("binance", "BTC/USDT", "1d"))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp.")
	}
}

func TestFetch_IntradayLargeBackfillRefusedWithoutOptIn(t *testing.T) {
	fetcher := NewMockFetcher(15 * 60 * 1000)
	store := New(t.TempDir(), fetcher, 0, 1000, 5, zerolog.Nop()) // 5-day cap
	ctx := context.Background()

	farRange := int64(30 * 24 * 60 * 60 * 1000) // 30 days of 15m bars
	candles, err := store.Fetch(ctx, "binance", "BTC/USDT", "15m", 0, farRange, Options{})
	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestFetch_IntradayLargeBackfillAllowedWithOptIn(t *testing.T) {
	fetcher := NewMockFetcher(15 * 60 * 1000)
	store := New(t.TempDir(), fetcher, 0, 1000, 5, zerolog.Nop())
	ctx := context.Background()

	farRange := int64(30 * 24 * 60 * 60 * 1000) // 30 days of 15m bars, beyond the 5-day cap
	candles, err := store.Fetch(ctx, "binance", "BTC/USDT", "15m", 0, farRange, Options{AllowLargeBackfill: true})
	require.NoError(t, err)
	assert.NotEmpty(t, candles)
}

func TestFetch_SinceAfterUntilIsInvalid(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Fetch(ctx, "binance", "BTC/USDT", "1d", 10*dayMS, dayMS, Options{})
	require.ErrorIs(t, err, ErrParameterInvalid)
}

func TestFetch_UnknownTimeframeIsInvalid(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Fetch(ctx, "binance", "BTC/USDT", "7x", 0, dayMS, Options{})
	require.ErrorIs(t, err, ErrParameterInvalid)
}
