package candlestore

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig configures bounded exponential backoff around exchange fetch
// calls (spec.md §7 category 7: exchange-unavailable).
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns the standard retry policy for fetch calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
	}
}

// withRetry calls fn, retrying retryable errors with exponential backoff up
// to cfg.MaxRetries times. A permanent (non-retryable) error returns
// immediately. Exhausting retries wraps the last error in
// ErrExchangeUnavailable.
func withRetry(ctx context.Context, cfg RetryConfig, log zerolog.Logger, fn func() ([]Candle, error)) ([]Candle, error) {
	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		candles, err := fn()
		if err == nil {
			return candles, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("candlestore: retrying exchange fetch")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff = time.Duration(math.Min(float64(backoff)*cfg.BackoffFactor, float64(cfg.MaxBackoff)))
	}

	return nil, fmt.Errorf("%w: %v", ErrExchangeUnavailable, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused", "connection reset", "timeout", "temporary failure",
		"too many requests", "rate limit", "eof", "502", "503", "504",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
