// Optimizer CLI
// Runs the hybrid coarse-to-fine parameter search against a declarative
// strategy template and reports the winning parameter set and its metrics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/backtestcore/internal/candlestore"
	"github.com/ajitpratap0/backtestcore/internal/config"
	"github.com/ajitpratap0/backtestcore/internal/optimizer"
	"github.com/ajitpratap0/backtestcore/internal/strategy"
)

// ============================================================================
// CLI FLAGS
// ============================================================================

var (
	configPath   = flag.String("config", "", "Path to config file (optional, defaults searched in ./configs and .)")
	templatePath = flag.String("template", "", "Path to a strategy template file (YAML/JSON); empty uses the built-in example strategy")
	exampleName  = flag.String("example", "", "Built-in example strategy to run instead of -template (simple, buy-and-hold)")

	symbol    = flag.String("symbol", "BTCUSDT", "Symbol to optimize")
	timeframe = flag.String("timeframe", "1d", "Candle timeframe for coarse evaluation")

	startDate = flag.String("start", "", "Start date (YYYY-MM-DD), required")
	endDate   = flag.String("end", "", "End date (YYYY-MM-DD), required")

	deepBacktest = flag.Bool("deep", false, "Route every combination's evaluation through the 15m deep-backtest refiner instead of the coarse daily engine")
	jobID        = flag.String("job-id", "", "Resume this job ID instead of starting a fresh run")

	outputFile = flag.String("output", "", "Write the winning parameters and metrics as JSON to this file (optional)")
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

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()

	store := candlestore.New(
		cfg.Store.RootDir,
		candlestore.NewBinanceFetcher(cfg.Exchange.Testnet),
		cfg.Store.InceptionTimestamp,
		cfg.Exchange.FetchLimit,
		cfg.Store.MaxIntradayBackfillDays,
		log.Logger,
	)

	checkpoints := optimizer.NewCheckpointStore(cfg.Optimizer.CheckpointDir)

	results, err := optimizer.OpenResultsStore(cfg.Optimizer.ResultsDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open results store")
	}
	defer results.Close()

	orch := optimizer.NewOrchestrator(store, cfg.Exchange.Name, checkpoints, results, optimizer.Config{
		BatchSize:        cfg.Optimizer.BatchSize,
		WorkerCount:      cfg.Optimizer.WorkerCount,
		CheckpointEveryN: cfg.Optimizer.CheckpointEveryN,
		TopK:             cfg.Optimizer.TopKForRichMetrics,
		GridSizeWarnCap:  cfg.Optimizer.GridSizeWarnCap,
	})

	if *jobID != "" {
		resp, err := resumeJob(ctx, orch, checkpoints, *jobID)
		if err != nil {
			log.Fatal().Err(err).Str("job_id", *jobID).Msg("resume failed")
		}
		report(resp)
		return
	}

	if *startDate == "" || *endDate == "" {
		fmt.Fprintln(os.Stderr, "Error: -start and -end dates are required for a fresh run")
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

	tmpl, err := loadTemplate()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load strategy template")
	}

	req := optimizer.OptimizationRequest{
		TemplateName: tmpl.Metadata.Name,
		Template:     tmpl,
		Symbol:       *symbol,
		Timeframe:    *timeframe,
		StartDate:    start,
		EndDate:      end,
		DeepBacktest: *deepBacktest,
		Weights: optimizer.ScoreWeights{
			Sharpe: cfg.Optimizer.ScoreWeightSharpe,
			Return: cfg.Optimizer.ScoreWeightReturn,
		},
	}

	log.Info().
		Str("strategy", tmpl.Metadata.Name).
		Str("symbol", *symbol).
		Str("timeframe", *timeframe).
		Bool("deep_backtest", *deepBacktest).
		Msg("starting optimization")

	resp, err := orch.RunOptimization(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("optimization failed")
	}

	report(resp)
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
	default:
		return nil, fmt.Errorf("unknown example strategy: %s (available: simple)", *exampleName)
	}
}

// ============================================================================
// RESUME
// ============================================================================

// resumeJob loads the named job's checkpoint and re-derives the request
// needed to continue it. The template and date range are not part of the
// checkpoint (spec.md §3), so resuming a job started from -template
// requires pointing -template at the same file again; resuming one started
// from -example requires the same -example flag.
func resumeJob(ctx context.Context, orch *optimizer.Orchestrator, checkpoints *optimizer.CheckpointStore, id string) (*optimizer.OptimizationResponse, error) {
	cp, err := checkpoints.Load(id)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	tmpl, err := loadTemplate()
	if err != nil {
		return nil, fmt.Errorf("load strategy template: %w", err)
	}

	if *startDate == "" || *endDate == "" {
		return nil, fmt.Errorf("-start and -end are required to resume job %s (the checkpoint only stores search progress, not the date range)", id)
	}
	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date format (use YYYY-MM-DD): %w", err)
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date format (use YYYY-MM-DD): %w", err)
	}

	req := optimizer.OptimizationRequest{
		JobID:        id,
		TemplateName: cp.Strategy,
		Template:     tmpl,
		Symbol:       cp.Symbol,
		Timeframe:    *timeframe,
		StartDate:    start,
		EndDate:      end,
		DeepBacktest: *deepBacktest,
	}

	return orch.ResumeWithRequest(ctx, req)
}

// ============================================================================
// REPORTING
// ============================================================================

func report(resp *optimizer.OptimizationResponse) {
	log.Info().
		Str("job_id", resp.JobID).
		Str("status", string(resp.Status)).
		Int("stages", resp.TotalStages).
		Msg("optimization finished")

	fmt.Printf("Job ID:     %s\n", resp.JobID)
	fmt.Printf("Status:     %s\n", resp.Status)
	fmt.Printf("Stages:     %d\n", resp.TotalStages)
	fmt.Println()
	fmt.Println("Best parameters:")
	for name, value := range resp.BestParameters {
		fmt.Printf("  %-24s %g\n", name, value)
	}
	fmt.Println()
	fmt.Println("Best metrics:")
	for name, value := range resp.BestMetrics {
		fmt.Printf("  %-24s %g\n", name, value)
	}

	if *outputFile != "" {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			log.Warn().Err(err).Msg("failed to marshal optimization response")
			return
		}
		if err := os.WriteFile(*outputFile, data, 0o600); err != nil {
			log.Warn().Err(err).Str("file", *outputFile).Msg("failed to write output file")
			return
		}
		log.Info().Str("file", *outputFile).Msg("result written to file")
	}
}
