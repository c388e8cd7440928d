package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "backtestcore",
			Version:     "1.0.0",
			Environment: "development",
			LogLevel:    "info",
			LogFormat:   "console",
		},
		Store: StoreConfig{
			RootDir:                 "./data/candles",
			InceptionTimestamp:      1325376000000,
			MaxIntradayBackfillDays: 900,
		},
		Exchange: ExchangeConfig{
			Name:       "binance",
			FetchLimit: 1000,
		},
		Optimizer: OptimizerConfig{
			CheckpointDir:      "./data/checkpoints",
			ResultsDBPath:      "./data/results.db",
			BatchSize:          200,
			WorkerCount:        0,
			ScoreWeightSharpe:  0.7,
			ScoreWeightReturn:  0.3,
			TopKForRichMetrics: 10,
		},
	}
}

func TestValidate_ValidConfigPasses(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_MissingAppName(t *testing.T) {
	cfg := validConfig()
	cfg.App.Name = ""

	err := cfg.Validate()
	require.Error(t, err)

	ve, ok := err.(ValidationErrors)
	require.True(t, ok)
	assert.Contains(t, ve.Error(), "app.name")
}

func TestValidate_InvalidEnvironment(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "bogus"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.environment")
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.App.LogLevel = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.log_level")
}

func TestValidate_StoreRootDirRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Store.RootDir = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.root_dir")
}

func TestValidate_ExchangeFetchLimitMustBePositive(t *testing.T) {
	cfg := validConfig()
	cfg.Exchange.FetchLimit = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange.fetch_limit")
}

func TestValidate_OptimizerScoreWeightsMustBePositive(t *testing.T) {
	cfg := validConfig()
	cfg.Optimizer.ScoreWeightSharpe = 0
	cfg.Optimizer.ScoreWeightReturn = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score_weight")
}

func TestValidate_MultipleErrorsAccumulate(t *testing.T) {
	cfg := validConfig()
	cfg.App.Name = ""
	cfg.Store.RootDir = ""
	cfg.Optimizer.ResultsDBPath = ""

	err := cfg.Validate()
	require.Error(t, err)

	ve, ok := err.(ValidationErrors)
	require.True(t, ok)
	assert.Len(t, ve, 3)
}
