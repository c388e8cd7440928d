package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Store     StoreConfig     `mapstructure:"store"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// StoreConfig configures the candle store's on-disk cache.
type StoreConfig struct {
	RootDir            string `mapstructure:"root_dir"`
	InceptionTimestamp  int64  `mapstructure:"inception_timestamp_ms"`
	AllowLargeBackfill  bool   `mapstructure:"allow_large_backfill"`
	MaxIntradayBackfillDays int `mapstructure:"max_intraday_backfill_days"` // default 900
}

// ExchangeConfig configures the reference fetch_ohlcv capability.
type ExchangeConfig struct {
	Name        string `mapstructure:"name"` // "binance"
	Testnet     bool   `mapstructure:"testnet"`
	RateLimitMS int    `mapstructure:"rate_limit_ms"`
	FetchLimit  int    `mapstructure:"fetch_limit"` // bars per page, default 1000
}

// OptimizerConfig configures the hybrid optimizer's resource model.
type OptimizerConfig struct {
	CheckpointDir      string `mapstructure:"checkpoint_dir"`
	ResultsDBPath      string `mapstructure:"results_db_path"`
	BatchSize          int    `mapstructure:"batch_size"`           // default 200
	WorkerCount        int    `mapstructure:"worker_count"`         // 0 = runtime.NumCPU()-1
	GridSizeWarnCap    int    `mapstructure:"grid_size_warn_cap"`   // advisory cap, default 1000
	CheckpointEveryN   int    `mapstructure:"checkpoint_every_n_batches"`
	ScoreWeightSharpe  float64 `mapstructure:"score_weight_sharpe"` // default 0.7
	ScoreWeightReturn  float64 `mapstructure:"score_weight_return"` // default 0.3
	TopKForRichMetrics int    `mapstructure:"top_k_for_rich_metrics"` // default 10
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("BACKTESTCORE")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// config file not found; defaults and environment variables apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "backtestcore")
	v.SetDefault("app.version", GetVersion())
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	v.SetDefault("store.root_dir", "./data/candles")
	v.SetDefault("store.inception_timestamp_ms", int64(1325376000000)) // 2012-01-01 UTC
	v.SetDefault("store.allow_large_backfill", false)
	v.SetDefault("store.max_intraday_backfill_days", 900)

	v.SetDefault("exchange.name", "binance")
	v.SetDefault("exchange.testnet", false)
	v.SetDefault("exchange.rate_limit_ms", 250)
	v.SetDefault("exchange.fetch_limit", 1000)

	v.SetDefault("optimizer.checkpoint_dir", "./data/checkpoints")
	v.SetDefault("optimizer.results_db_path", "./data/results.db")
	v.SetDefault("optimizer.batch_size", 200)
	v.SetDefault("optimizer.worker_count", 0)
	v.SetDefault("optimizer.grid_size_warn_cap", 1000)
	v.SetDefault("optimizer.checkpoint_every_n_batches", 1)
	v.SetDefault("optimizer.score_weight_sharpe", 0.7)
	v.SetDefault("optimizer.score_weight_return", 0.3)
	v.SetDefault("optimizer.top_k_for_rich_metrics", 10)
}
