// Backtest Runner CLI
// Runs a declarative strategy template against cached OHLCV candles and
// reports performance metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/backtestcore/internal/candlestore"
	"github.com/ajitpratap0/backtestcore/internal/config"
	"github.com/ajitpratap0/backtestcore/internal/signal"
	"github.com/ajitpratap0/backtestcore/internal/strategy"
	"github.com/ajitpratap0/backtestcore/pkg/backtest"
)

// ============================================================================
// CLI FLAGS
// ============================================================================

var (
	configPath   = flag.String("config", "", "Path to config file (optional, defaults searched in ./configs and .)")
	templatePath = flag.String("template", "", "Path to a strategy template file (YAML/JSON); empty uses the built-in example strategy")
	exampleName  = flag.String("example", "", "Built-in example strategy to run instead of -template (simple, buy-and-hold)")

	symbols   = flag.String("symbols", "BTCUSDT", "Comma-separated list of symbols to trade")
	timeframe = flag.String("timeframe", "1h", "Candle timeframe")

	startDate = flag.String("start", "", "Start date (YYYY-MM-DD), required")
	endDate   = flag.String("end", "", "End date (YYYY-MM-DD), required")

	initialCapital = flag.Float64("capital", 10000.0, "Initial capital in USD")
	commissionRate = flag.Float64("commission", 0.001, "Commission rate (0.001 = 0.1%)")
	slippageRate   = flag.Float64("slippage", 0.0, "Slippage rate applied to fills (0.001 = 0.1%)")
	positionSizing = flag.String("sizing", "percent", "Position sizing method (fixed, percent, all_in)")
	positionSize   = flag.Float64("size", 0.1, "Position size (depends on sizing method)")
	maxPositions   = flag.Int("max-positions", 3, "Maximum concurrent positions")

	outputFile = flag.String("output", "", "Output file for text report (optional)")
	htmlReport = flag.String("html", "", "Generate HTML report to file (optional)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
)

// ============================================================================
// MAIN
// ============================================================================

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if *startDate == "" || *endDate == "" {
		fmt.Fprintln(os.Stderr, "Error: -start and -end dates are required")
		flag.Usage()
		os.Exit(1)
	}

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid start date format (use YYYY-MM-DD)")
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid end date format (use YYYY-MM-DD)")
	}

	symbolList := parseSymbols(*symbols)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	tmpl, err := loadTemplate()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load strategy template")
	}

	log.Info().
		Str("strategy", tmpl.Metadata.Name).
		Strs("symbols", symbolList).
		Str("timeframe", *timeframe).
		Float64("capital", *initialCapital).
		Msg("starting backtest")

	ctx := context.Background()
	if err := runBacktest(ctx, cfg, tmpl, start, end, symbolList); err != nil {
		log.Fatal().Err(err).Msg("backtest failed")
	}

	log.Info().Msg("backtest completed successfully")
}

// ============================================================================
// STRATEGY LOADING
// ============================================================================

func loadTemplate() (*strategy.Template, error) {
	if *templatePath != "" {
		tmpl, err := strategy.ImportFromFile(*templatePath, strategy.DefaultImportOptions())
		if err != nil {
			return nil, fmt.Errorf("import template: %w", err)
		}
		if err := tmpl.Validate(); err != nil {
			return nil, fmt.Errorf("invalid template: %w", err)
		}
		return tmpl, nil
	}

	switch strings.ToLower(*exampleName) {
	case "", "simple":
		return strategy.NewDefaultTemplate("ema-crossover"), nil
	case "buy-and-hold":
		return buyAndHoldTemplate(), nil
	default:
		return nil, fmt.Errorf("unknown example strategy: %s (available: simple, buy-and-hold)", *exampleName)
	}
}

// buyAndHoldTemplate is a degenerate template that enters on the first bar
// and never exits, illustrating the minimum viable entry_logic/exit_logic
// pair the compiled strategy engine accepts.
func buyAndHoldTemplate() *strategy.Template {
	tmpl := strategy.NewDefaultTemplate("buy-and-hold")
	tmpl.Indicators = []strategy.IndicatorConfig{}
	tmpl.EntryLogic = "close > 0"
	tmpl.ExitLogic = "close < 0"
	return tmpl
}

// ============================================================================
// BACKTEST EXECUTION
// ============================================================================

func runBacktest(ctx context.Context, cfg *config.Config, tmpl *strategy.Template, start, end time.Time, symbolList []string) error {
	engineConfig := backtest.BacktestConfig{
		InitialCapital: *initialCapital,
		CommissionRate: *commissionRate,
		SlippageRate:   *slippageRate,
		PositionSizing: *positionSizing,
		PositionSize:   *positionSize,
		MaxPositions:   *maxPositions,
		StopLoss:       tmpl.StopLoss,
		StartDate:      start,
		EndDate:        end,
		Symbols:        symbolList,
	}
	if tmpl.StopGain != nil {
		engineConfig.StopGain = *tmpl.StopGain
	}

	engine := backtest.NewEngine(engineConfig)

	store := candlestore.New(
		cfg.Store.RootDir,
		candlestore.NewBinanceFetcher(cfg.Exchange.Testnet),
		cfg.Store.InceptionTimestamp,
		cfg.Exchange.FetchLimit,
		cfg.Store.MaxIntradayBackfillDays,
		log.Logger,
	)

	opts := candlestore.Options{
		FullHistoryIfEmpty: false,
		AllowLargeBackfill: cfg.Store.AllowLargeBackfill,
	}

	for _, symbol := range symbolList {
		candles, err := store.Fetch(ctx, cfg.Exchange.Name, symbol, *timeframe, start.UnixMilli(), end.UnixMilli(), opts)
		if err != nil {
			return fmt.Errorf("fetch candles for %s: %w", symbol, err)
		}

		sticks := make([]*backtest.Candlestick, len(candles))
		for i, c := range candles {
			sticks[i] = &backtest.Candlestick{
				Symbol:    symbol,
				Timestamp: time.UnixMilli(c.TimestampMS).UTC(),
				Open:      c.Open,
				High:      c.High,
				Low:       c.Low,
				Close:     c.Close,
				Volume:    c.Volume,
			}
		}

		if err := engine.LoadHistoricalData(symbol, sticks); err != nil {
			return fmt.Errorf("load candlesticks for %s: %w", symbol, err)
		}

		log.Info().Str("symbol", symbol).Int("candles", len(sticks)).Msg("loaded historical data")
	}

	strat := signal.NewCompiledStrategy(tmpl)

	if err := engine.Run(ctx, strat); err != nil {
		return fmt.Errorf("backtest execution failed: %w", err)
	}

	metrics, err := backtest.CalculateMetrics(engine)
	if err != nil {
		return fmt.Errorf("failed to calculate metrics: %w", err)
	}

	report := backtest.GenerateReport(metrics)
	fmt.Println(report)

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, []byte(report), 0o600); err != nil {
			log.Warn().Err(err).Str("file", *outputFile).Msg("failed to write output file")
		} else {
			log.Info().Str("file", *outputFile).Msg("text report written to file")
		}
	}

	if *htmlReport != "" {
		generator, err := backtest.NewReportGenerator(engine)
		if err != nil {
			return fmt.Errorf("failed to create report generator: %w", err)
		}
		if err := generator.SaveToFile(*htmlReport); err != nil {
			return fmt.Errorf("failed to save HTML report: %w", err)
		}
		log.Info().Str("file", *htmlReport).Msg("HTML report written to file")
	}

	return nil
}

// ============================================================================
// UTILITIES
// ============================================================================

func parseSymbols(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
