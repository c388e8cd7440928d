package backtest

import (
	"math"
	"sort"
	"time"

	"github.com/ajitpratap0/backtestcore/internal/indicators"
)

// ============================================================================
// DRAWDOWN DURATION AND STREAKS
// ============================================================================

// maxDrawdownDuration returns the longest contiguous span during which
// equity stayed below its running high-water mark.
func maxDrawdownDuration(curve []*EquityPoint) time.Duration {
	if len(curve) == 0 {
		return 0
	}

	peak := curve[0].Equity
	peakTime := curve[0].Timestamp
	var maxDur time.Duration
	inDrawdown := false
	var ddStart time.Time

	for _, point := range curve {
		if point.Equity >= peak {
			peak = point.Equity
			peakTime = point.Timestamp
			inDrawdown = false
			continue
		}
		if !inDrawdown {
			inDrawdown = true
			ddStart = peakTime
		}
		if dur := point.Timestamp.Sub(ddStart); dur > maxDur {
			maxDur = dur
		}
	}

	return maxDur
}

// calculateStreaks finds the longest run of consecutive winning and losing
// trades, in trade (exit) order.
func calculateStreaks(metrics *Metrics, positions []*ClosedPosition) {
	var currentWins, currentLosses int

	for _, pos := range positions {
		if pos.RealizedPL > 0 {
			currentWins++
			currentLosses = 0
		} else {
			currentLosses++
			currentWins = 0
		}
		if currentWins > metrics.MaxConsecutiveWins {
			metrics.MaxConsecutiveWins = currentWins
		}
		if currentLosses > metrics.MaxConsecutiveLosses {
			metrics.MaxConsecutiveLosses = currentLosses
		}
	}
}

// tradeConcentration returns the fraction of total gross profit contributed
// by the top-N winning trades.
func tradeConcentration(positions []*ClosedPosition, topN int) float64 {
	var wins []float64
	var grossProfit float64

	for _, pos := range positions {
		if pos.RealizedPL > 0 {
			wins = append(wins, pos.RealizedPL)
			grossProfit += pos.RealizedPL
		}
	}

	if grossProfit <= 0 || len(wins) == 0 {
		return 0
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(wins)))
	if topN > len(wins) {
		topN = len(wins)
	}

	var top float64
	for _, w := range wins[:topN] {
		top += w
	}

	return top / grossProfit
}

// ============================================================================
// VOLATILITY/TREND AVERAGES
// ============================================================================

// AverageATRADX computes the mean ATR and mean ADX across candles, skipping
// each series' warm-up NaNs. Used by the optimizer's top-K enrichment pass
// (spec.md §4.7 "Final materialization") as a cheap volatility/trend-strength
// summary alongside the regime breakdown.
func AverageATRADX(candles []*Candlestick, atrPeriod, adxPeriod int) (avgATR, avgADX float64, err error) {
	if len(candles) == 0 {
		return 0, 0, nil
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}

	atr, err := indicators.ATR(highs, lows, closes, atrPeriod)
	if err != nil {
		return 0, 0, err
	}
	adx, err := indicators.ADX(highs, lows, closes, adxPeriod)
	if err != nil {
		return 0, 0, err
	}

	avgATR = meanFinite(atr)
	avgADX = meanFinite(adx)
	return avgATR, avgADX, nil
}

func meanFinite(series []float64) float64 {
	var sum float64
	var n int
	for _, v := range series {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ============================================================================
// BUY-AND-HOLD BENCHMARK AND ALPHA
// ============================================================================

// CalculateMetricsWithBenchmark computes the standard metric set plus a
// buy-and-hold benchmark comparison and alpha, given the same candle series
// the backtest was run over. It is more expensive than CalculateMetrics and
// is meant for final reporting rather than per-combination optimizer scoring.
func CalculateMetricsWithBenchmark(engine *Engine, benchmarkCandles []*Candlestick) (*Metrics, error) {
	metrics, err := CalculateMetrics(engine)
	if err != nil {
		return nil, err
	}
	if len(benchmarkCandles) < 2 {
		return metrics, nil
	}

	first := benchmarkCandles[0]
	last := benchmarkCandles[len(benchmarkCandles)-1]
	shares := metrics.InitialCapital / first.Close
	benchmarkFinal := shares * last.Close

	elapsed := last.Timestamp.Sub(first.Timestamp)
	years := elapsed.Hours() / 24.0 / 365.25
	if years > 0 && benchmarkFinal > 0 {
		metrics.BenchmarkCAGR = (math.Pow(benchmarkFinal/metrics.InitialCapital, 1.0/years) - 1.0) * 100.0
		metrics.Alpha = metrics.CAGR - metrics.BenchmarkCAGR
	}

	return metrics, nil
}

// ============================================================================
// REGIME BREAKDOWN
// ============================================================================

// RegimeStats aggregates trade outcomes for a single market regime bucket.
type RegimeStats struct {
	Regime  string  `json:"regime"`
	Count   int     `json:"count"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	TotalPL float64 `json:"total_pl"`
	WinRate float64 `json:"win_rate"`
}

const (
	RegimeBullStrong = "bull_strong"
	RegimeBullWeak   = "bull_weak"
	RegimeRange      = "range"
	RegimeBearWeak   = "bear_weak"
	RegimeBearStrong = "bear_strong"
)

const (
	regimeSMAPeriod = 50
	regimeADXPeriod = 14
	regimeADXRange  = 15.0
	regimeADXStrong = 25.0
)

// classifyRegime buckets a single bar into one of the five regime labels
// using a long SMA trend filter and an ADX strength threshold.
func classifyRegime(close, smaLong, adx float64) string {
	if math.IsNaN(smaLong) || math.IsNaN(adx) {
		return RegimeRange
	}
	if adx < regimeADXRange {
		return RegimeRange
	}
	if close >= smaLong {
		if adx >= regimeADXStrong {
			return RegimeBullStrong
		}
		return RegimeBullWeak
	}
	if adx >= regimeADXStrong {
		return RegimeBearStrong
	}
	return RegimeBearWeak
}

// CalculateRegimeBreakdown classifies each candle's regime from a long SMA
// and ADX, then buckets each closed position by the regime in effect at its
// entry bar. Candles must be sorted ascending by timestamp and cover the
// closed positions' entry times.
func CalculateRegimeBreakdown(candles []*Candlestick, positions []*ClosedPosition) (map[string]*RegimeStats, error) {
	breakdown := map[string]*RegimeStats{
		RegimeBullStrong: {Regime: RegimeBullStrong},
		RegimeBullWeak:   {Regime: RegimeBullWeak},
		RegimeRange:      {Regime: RegimeRange},
		RegimeBearWeak:   {Regime: RegimeBearWeak},
		RegimeBearStrong: {Regime: RegimeBearStrong},
	}
	if len(candles) == 0 || len(positions) == 0 {
		return breakdown, nil
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	sma, err := indicators.SMA(closes, regimeSMAPeriod)
	if err != nil {
		return nil, err
	}
	adx, err := indicators.ADX(highs, lows, closes, regimeADXPeriod)
	if err != nil {
		return nil, err
	}

	regimeAt := make([]string, len(candles))
	for i := range candles {
		regimeAt[i] = classifyRegime(closes[i], sma[i], adx[i])
	}

	for _, pos := range positions {
		idx := lastIndexAtOrBefore(candles, pos.EntryTime)
		if idx < 0 {
			continue
		}
		regime := regimeAt[idx]
		stats := breakdown[regime]
		stats.Count++
		stats.TotalPL += pos.RealizedPL
		if pos.RealizedPL > 0 {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}

	for _, stats := range breakdown {
		if stats.Count > 0 {
			stats.WinRate = float64(stats.Wins) / float64(stats.Count)
		}
	}

	return breakdown, nil
}

// lastIndexAtOrBefore returns the index of the latest candle whose
// timestamp is at or before t, or -1 if none qualify.
func lastIndexAtOrBefore(candles []*Candlestick, t time.Time) int {
	idx := sort.Search(len(candles), func(i int) bool {
		return candles[i].Timestamp.After(t)
	})
	return idx - 1
}

// ============================================================================
// GO/NO-GO EVALUATION
// ============================================================================

// GoNoGoThresholds holds the hard limits a strategy's metrics must clear.
type GoNoGoThresholds struct {
	MaxDrawdownPct       float64 // critical ceiling, e.g. 25.0 means 25%
	MinSharpeRatio       float64
	MinProfitFactor      float64
	MinExpectancy        float64
	MinTrades            int
	RequireBeatBenchmark bool // require CAGR > BenchmarkCAGR (alpha > 0)
}

// DefaultGoNoGoThresholds returns a reasonable baseline threshold set.
func DefaultGoNoGoThresholds() GoNoGoThresholds {
	return GoNoGoThresholds{
		MaxDrawdownPct:       25.0,
		MinSharpeRatio:       0.5,
		MinProfitFactor:      1.2,
		MinExpectancy:        0,
		MinTrades:            30,
		RequireBeatBenchmark: false,
	}
}

// GoNoGoResult is the outcome of evaluating a strategy's metrics against
// hard go/no-go thresholds.
type GoNoGoResult struct {
	Status   string   `json:"status"` // "GO" or "NO-GO"
	Reasons  []string `json:"reasons,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

const (
	GoNoGoStatusGo   = "GO"
	GoNoGoStatusNoGo = "NO-GO"
)

// EvaluateGoNoGo checks a metrics set against a fixed threshold set and
// returns a GO/NO-GO verdict with the specific reasons for any failure.
func EvaluateGoNoGo(metrics *Metrics, thresholds GoNoGoThresholds) GoNoGoResult {
	result := GoNoGoResult{Status: GoNoGoStatusGo}

	if metrics.MaxDrawdownPct > thresholds.MaxDrawdownPct {
		result.Reasons = append(result.Reasons, "max drawdown exceeds critical threshold")
	}
	if metrics.SharpeRatio < thresholds.MinSharpeRatio {
		result.Reasons = append(result.Reasons, "sharpe ratio below minimum")
	}
	if metrics.ProfitFactor < thresholds.MinProfitFactor {
		result.Reasons = append(result.Reasons, "profit factor below minimum")
	}
	if metrics.Expectancy < thresholds.MinExpectancy {
		result.Reasons = append(result.Reasons, "expectancy below minimum")
	}
	if metrics.TotalTrades < thresholds.MinTrades {
		result.Reasons = append(result.Reasons, "insufficient trade count for statistical confidence")
	}
	if thresholds.RequireBeatBenchmark && metrics.Alpha <= 0 {
		result.Reasons = append(result.Reasons, "strategy CAGR does not beat buy-and-hold benchmark")
	}

	if metrics.TotalTrades > 0 && metrics.TotalTrades < thresholds.MinTrades*2 {
		result.Warnings = append(result.Warnings, "trade count is low; confidence in metrics is limited")
	}
	if metrics.MaxConsecutiveLosses >= 5 {
		result.Warnings = append(result.Warnings, "long losing streak observed")
	}

	if len(result.Reasons) > 0 {
		result.Status = GoNoGoStatusNoGo
	}

	return result
}
