// Performance metrics calculation for backtesting
package backtest

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// ============================================================================
// PERFORMANCE METRICS
// ============================================================================

// Metrics holds all performance metrics for a backtest
type Metrics struct {
	// Returns
	TotalReturn      float64 `json:"total_return"`      // Total profit/loss
	TotalReturnPct   float64 `json:"total_return_pct"`  // Total return percentage
	AnnualizedReturn float64 `json:"annualized_return"` // Annualized return percentage
	CAGR             float64 `json:"cagr"`              // Compound Annual Growth Rate

	// Risk metrics
	MaxDrawdown    float64 `json:"max_drawdown"`     // Maximum drawdown in dollars
	MaxDrawdownPct float64 `json:"max_drawdown_pct"` // Maximum drawdown percentage
	Volatility     float64 `json:"volatility"`       // Standard deviation of returns
	SharpeRatio    float64 `json:"sharpe_ratio"`     // Risk-adjusted return
	SortinoRatio   float64 `json:"sortino_ratio"`    // Downside risk-adjusted return
	CalmarRatio    float64 `json:"calmar_ratio"`     // CAGR / Max Drawdown

	// Trade statistics
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`     // Percentage of winning trades
	AverageWin    float64 `json:"average_win"`  // Average profit per winning trade
	AverageLoss   float64 `json:"average_loss"` // Average loss per losing trade
	LargestWin    float64 `json:"largest_win"`
	LargestLoss   float64 `json:"largest_loss"`
	ProfitFactor  float64 `json:"profit_factor"` // Total profit / Total loss
	Expectancy    float64 `json:"expectancy"`    // Expected value per trade

	// Time statistics
	AverageHoldingTime time.Duration `json:"average_holding_time"`
	MedianHoldingTime  time.Duration `json:"median_holding_time"`
	MaxHoldingTime     time.Duration `json:"max_holding_time"`
	MinHoldingTime     time.Duration `json:"min_holding_time"`

	// Portfolio statistics
	InitialCapital float64       `json:"initial_capital"`
	FinalEquity    float64       `json:"final_equity"`
	PeakEquity     float64       `json:"peak_equity"`
	EquityLow      float64       `json:"equity_low"`
	StartDate      time.Time     `json:"start_date"`
	EndDate        time.Time     `json:"end_date"`
	Duration       time.Duration `json:"duration"`

	// Drawdown duration and streaks
	MaxDrawdownDuration  time.Duration `json:"max_drawdown_duration"`
	MaxConsecutiveWins   int           `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int           `json:"max_consecutive_losses"`

	// TradeConcentration is the fraction of total gross profit contributed
	// by the top-N winning trades (N configured via ConcentrationTopN,
	// default 10).
	TradeConcentration float64 `json:"trade_concentration"`
	ConcentrationTopN  int     `json:"concentration_top_n"`

	// Buy-and-hold benchmark comparison, populated only by
	// CalculateMetricsWithBenchmark.
	BenchmarkCAGR float64 `json:"benchmark_cagr,omitempty"`
	Alpha         float64 `json:"alpha,omitempty"`

	// RegimeBreakdown buckets closed trades by the market regime in effect
	// at the entry bar. CalculateMetrics does not fill it; callers assign
	// the map returned by CalculateRegimeBreakdown.
	RegimeBreakdown map[string]*RegimeStats `json:"regime_breakdown,omitempty"`
}

// medianDuration returns the median of a slice of durations without
// mutating the caller's slice.
func medianDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// DefaultRiskFreeRatePct is the annualized risk-free rate, in percent, used
// by CalculateMetrics's Sharpe/Sortino ratios when the caller doesn't supply
// its own via CalculateMetricsWithRiskFreeRate.
const DefaultRiskFreeRatePct = 3.0

// CalculateMetrics calculates all performance metrics from a backtest,
// using DefaultRiskFreeRatePct for the Sharpe/Sortino ratios.
func CalculateMetrics(engine *Engine) (*Metrics, error) {
	return CalculateMetricsWithRiskFreeRate(engine, DefaultRiskFreeRatePct)
}

// CalculateMetricsWithRiskFreeRate is CalculateMetrics with an explicit
// annualized risk-free rate (in percent, e.g. 3.0 for 3%).
func CalculateMetricsWithRiskFreeRate(engine *Engine, riskFreeRatePct float64) (*Metrics, error) {
	if len(engine.EquityCurve) == 0 {
		return nil, fmt.Errorf("no equity curve data")
	}

	metrics := &Metrics{
		InitialCapital: engine.InitialCapital,
		FinalEquity:    engine.GetCurrentEquity(),
		PeakEquity:     engine.PeakEquity,
		TotalTrades:    engine.TotalTrades,
		WinningTrades:  engine.WinningTrades,
		LosingTrades:   engine.LosingTrades,
		MaxDrawdown:    engine.MaxDrawdown,
		MaxDrawdownPct: engine.MaxDrawdownPct,
		StartDate:      engine.EquityCurve[0].Timestamp,
		EndDate:        engine.EquityCurve[len(engine.EquityCurve)-1].Timestamp,
	}

	metrics.Duration = metrics.EndDate.Sub(metrics.StartDate)

	// Calculate returns
	metrics.TotalReturn = metrics.FinalEquity - metrics.InitialCapital
	metrics.TotalReturnPct = (metrics.TotalReturn / metrics.InitialCapital) * 100.0

	// Calculate annualized return and CAGR
	if metrics.Duration > 0 {
		years := metrics.Duration.Hours() / 24.0 / 365.25
		if years > 0 {
			metrics.CAGR = (math.Pow(metrics.FinalEquity/metrics.InitialCapital, 1.0/years) - 1.0) * 100.0
			metrics.AnnualizedReturn = metrics.CAGR
		}
	}

	// Calculate trade statistics
	if len(engine.ClosedPositions) > 0 {
		calculateTradeStatistics(metrics, engine.ClosedPositions)
		calculateStreaks(metrics, engine.ClosedPositions)
		metrics.ConcentrationTopN = 10
		metrics.TradeConcentration = tradeConcentration(engine.ClosedPositions, metrics.ConcentrationTopN)
	}

	// Calculate risk metrics
	calculateRiskMetrics(metrics, engine.EquityCurve)
	metrics.MaxDrawdownDuration = maxDrawdownDuration(engine.EquityCurve)

	// Calculate ratios
	if metrics.Volatility > 0 {
		metrics.SharpeRatio = (metrics.AnnualizedReturn - riskFreeRatePct) / metrics.Volatility
	}

	if metrics.MaxDrawdownPct > 0 {
		metrics.CalmarRatio = metrics.CAGR / metrics.MaxDrawdownPct
	}

	// Calculate Sortino ratio (downside deviation)
	calculateSortinoRatio(metrics, engine.EquityCurve, riskFreeRatePct)

	// Find equity low
	metrics.EquityLow = metrics.InitialCapital
	for _, point := range engine.EquityCurve {
		if point.Equity < metrics.EquityLow {
			metrics.EquityLow = point.Equity
		}
	}

	return metrics, nil
}

// calculateTradeStatistics calculates statistics from closed positions
func calculateTradeStatistics(metrics *Metrics, positions []*ClosedPosition) {
	var totalWin, totalLoss float64
	var holdingTimes []time.Duration

	for _, pos := range positions {
		holdingTimes = append(holdingTimes, pos.HoldingTime)

		if pos.RealizedPL > 0 {
			totalWin += pos.RealizedPL
			if pos.RealizedPL > metrics.LargestWin {
				metrics.LargestWin = pos.RealizedPL
			}
		} else {
			totalLoss += pos.RealizedPL
			if pos.RealizedPL < metrics.LargestLoss {
				metrics.LargestLoss = pos.RealizedPL
			}
		}
	}

	// Win rate
	if metrics.TotalTrades > 0 {
		metrics.WinRate = (float64(metrics.WinningTrades) / float64(metrics.TotalTrades)) * 100.0
	}

	// Average win/loss
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = totalWin / float64(metrics.WinningTrades)
	}

	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = totalLoss / float64(metrics.LosingTrades)
	}

	// Profit factor
	if totalLoss != 0 {
		metrics.ProfitFactor = totalWin / math.Abs(totalLoss)
	}

	// Expectancy (expected value per trade)
	if metrics.TotalTrades > 0 {
		winProb := float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
		lossProb := float64(metrics.LosingTrades) / float64(metrics.TotalTrades)
		metrics.Expectancy = (winProb * metrics.AverageWin) + (lossProb * metrics.AverageLoss)
	}

	// Holding time statistics
	if len(holdingTimes) > 0 {
		var totalTime time.Duration
		for _, t := range holdingTimes {
			totalTime += t
		}
		metrics.AverageHoldingTime = totalTime / time.Duration(len(holdingTimes))

		// Find min/max
		metrics.MinHoldingTime = holdingTimes[0]
		metrics.MaxHoldingTime = holdingTimes[0]
		for _, t := range holdingTimes {
			if t < metrics.MinHoldingTime {
				metrics.MinHoldingTime = t
			}
			if t > metrics.MaxHoldingTime {
				metrics.MaxHoldingTime = t
			}
		}

		metrics.MedianHoldingTime = medianDuration(holdingTimes)
	}
}

// calculateRiskMetrics calculates volatility and related metrics
func calculateRiskMetrics(metrics *Metrics, equityCurve []*EquityPoint) {
	if len(equityCurve) < 2 {
		return
	}

	// Calculate daily returns
	var returns []float64
	for i := 1; i < len(equityCurve); i++ {
		prevEquity := equityCurve[i-1].Equity
		currentEquity := equityCurve[i].Equity
		dailyReturn := (currentEquity - prevEquity) / prevEquity
		returns = append(returns, dailyReturn)
	}

	if len(returns) == 0 {
		return
	}

	// Calculate mean return
	var sumReturns float64
	for _, r := range returns {
		sumReturns += r
	}
	meanReturn := sumReturns / float64(len(returns))

	// Calculate variance
	var sumSquaredDiff float64
	for _, r := range returns {
		diff := r - meanReturn
		sumSquaredDiff += diff * diff
	}
	variance := sumSquaredDiff / float64(len(returns))

	// Volatility (standard deviation) - annualized
	stdDev := math.Sqrt(variance)
	metrics.Volatility = stdDev * math.Sqrt(252) * 100.0 // Annualized, in percentage
}

// periodsPerYear is the period count calculateSortinoRatio annualizes
// against, the same 252 calculateRiskMetrics uses for volatility. CAGR is
// annualized by calendar time instead.
const periodsPerYear = 252.0

// calculateSortinoRatio implements spec.md §4.6: mean(returns) ×
// √(periods_per_year) / downside_std(returns), where downside_std is the
// standard deviation of negative returns only. When there are no negative
// returns at all, the ratio is +∞ if the mean return clears the per-period
// risk-free rate (no downside risk was taken for above-risk-free reward),
// or 0 otherwise (flat or losing without ever touching a down period, e.g.
// a single-trade run) — never the worst possible score, which a strategy
// with zero losing bars should never receive.
func calculateSortinoRatio(metrics *Metrics, equityCurve []*EquityPoint, riskFreeRatePct float64) {
	if len(equityCurve) < 2 {
		return
	}

	var returns, negativeReturns []float64
	for i := 1; i < len(equityCurve); i++ {
		prevEquity := equityCurve[i-1].Equity
		currentEquity := equityCurve[i].Equity
		r := (currentEquity - prevEquity) / prevEquity
		returns = append(returns, r)
		if r < 0 {
			negativeReturns = append(negativeReturns, r)
		}
	}
	if len(returns) == 0 {
		return
	}

	var sumReturns float64
	for _, r := range returns {
		sumReturns += r
	}
	meanReturn := sumReturns / float64(len(returns))
	periodRiskFree := riskFreeRatePct / 100.0 / periodsPerYear

	if len(negativeReturns) == 0 {
		if meanReturn > periodRiskFree {
			metrics.SortinoRatio = math.Inf(1)
		}
		return
	}

	var sumSquaredNegReturns float64
	for _, r := range negativeReturns {
		sumSquaredNegReturns += r * r
	}
	downsideDeviation := math.Sqrt(sumSquaredNegReturns / float64(len(negativeReturns)))
	if downsideDeviation > 0 {
		metrics.SortinoRatio = (meanReturn * math.Sqrt(periodsPerYear)) / downsideDeviation
	}
}

// ============================================================================
// REPORT GENERATION
// ============================================================================

// GenerateReport generates a human-readable performance report
func GenerateReport(metrics *Metrics) string {
	report := fmt.Sprintf(`
================================================================================
BACKTEST PERFORMANCE REPORT
================================================================================

OVERVIEW
--------
Period:           %s to %s (%.0f days)
Initial Capital:  $%.2f
Final Equity:     $%.2f
Peak Equity:      $%.2f
Equity Low:       $%.2f

RETURNS
-------
Total Return:     $%.2f (%.2f%%)
Annualized Return: %.2f%%
CAGR:             %.2f%%

RISK METRICS
------------
Max Drawdown:     $%.2f (%.2f%%)
Volatility:       %.2f%%
Sharpe Ratio:     %.2f
Sortino Ratio:    %.2f
Calmar Ratio:     %.2f

TRADE STATISTICS
----------------
Total Trades:     %d
Winning Trades:   %d
Losing Trades:    %d
Win Rate:         %.2f%%

Average Win:      $%.2f
Average Loss:     $%.2f
Largest Win:      $%.2f
Largest Loss:     $%.2f

Profit Factor:    %.2f
Expectancy:       $%.2f per trade

HOLDING TIMES
-------------
Average:          %s
Median:           %s
Min:              %s
Max:              %s
Max DD Duration:  %s

STREAKS & CONCENTRATION
-----------------------
Max Consecutive Wins:    %d
Max Consecutive Losses:  %d
Top-%d Trade Concentration: %.2f%% of gross profit

================================================================================
`,
		metrics.StartDate.Format("2006-01-02"),
		metrics.EndDate.Format("2006-01-02"),
		metrics.Duration.Hours()/24,
		metrics.InitialCapital,
		metrics.FinalEquity,
		metrics.PeakEquity,
		metrics.EquityLow,
		metrics.TotalReturn,
		metrics.TotalReturnPct,
		metrics.AnnualizedReturn,
		metrics.CAGR,
		metrics.MaxDrawdown,
		metrics.MaxDrawdownPct,
		metrics.Volatility,
		metrics.SharpeRatio,
		metrics.SortinoRatio,
		metrics.CalmarRatio,
		metrics.TotalTrades,
		metrics.WinningTrades,
		metrics.LosingTrades,
		metrics.WinRate,
		metrics.AverageWin,
		metrics.AverageLoss,
		metrics.LargestWin,
		metrics.LargestLoss,
		metrics.ProfitFactor,
		metrics.Expectancy,
		formatDuration(metrics.AverageHoldingTime),
		formatDuration(metrics.MedianHoldingTime),
		formatDuration(metrics.MinHoldingTime),
		formatDuration(metrics.MaxHoldingTime),
		formatDuration(metrics.MaxDrawdownDuration),
		metrics.MaxConsecutiveWins,
		metrics.MaxConsecutiveLosses,
		metrics.ConcentrationTopN,
		metrics.TradeConcentration*100.0,
	)

	if metrics.BenchmarkCAGR != 0 {
		report += fmt.Sprintf("\nBENCHMARK\n---------\nBuy-and-Hold CAGR: %.2f%%\nAlpha:             %.2f%%\n",
			metrics.BenchmarkCAGR, metrics.Alpha)
	}

	if len(metrics.RegimeBreakdown) > 0 {
		report += "\nREGIME BREAKDOWN\n----------------\n"
		for _, regime := range []string{RegimeBullStrong, RegimeBullWeak, RegimeRange, RegimeBearWeak, RegimeBearStrong} {
			stats, ok := metrics.RegimeBreakdown[regime]
			if !ok || stats.Count == 0 {
				continue
			}
			report += fmt.Sprintf("%-12s trades=%-4d wins=%-4d losses=%-4d win_rate=%.1f%% total_pl=$%.2f\n",
				stats.Regime, stats.Count, stats.Wins, stats.Losses, stats.WinRate*100.0, stats.TotalPL)
		}
	}

	return report
}

// formatDuration formats a duration in a human-readable format
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	} else if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	} else {
		return fmt.Sprintf("%dm", minutes)
	}
}
