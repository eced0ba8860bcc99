// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/northbeck/papertrade/internal/core"
)

// Config is the root configuration tree.
type Config struct {
	Exchange  ExchangeConfig            `mapstructure:"exchange"`
	Trading   TradingConfig             `mapstructure:"trading"`
	Risk      RiskConfig                `mapstructure:"risk"`
	Backtest  BacktestConfig            `mapstructure:"backtest"`
	Journal   JournalConfig             `mapstructure:"journal"`
	Report    ReportConfig              `mapstructure:"report"`
	Notifiers map[string]NotifierConfig `mapstructure:"notifiers"`
	API       APIConfig                 `mapstructure:"api"`
	Log       LogConfig                 `mapstructure:"log"`
}

// ExchangeConfig selects the live market data venue.
type ExchangeConfig struct {
	Venue     string `mapstructure:"venue"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Stream    bool   `mapstructure:"stream"` // subscribe to the venue's websocket ticker feed
}

// TradingConfig drives the live paper loop.
type TradingConfig struct {
	Symbols          []string      `mapstructure:"symbols"`
	Strategy         string        `mapstructure:"strategy"`
	InitialBalance   float64       `mapstructure:"initial_balance"`
	FeeRate          float64       `mapstructure:"fee_rate"`
	SlippageRate     float64       `mapstructure:"slippage_rate"`
	Interval         time.Duration `mapstructure:"interval"`
	PositionFraction float64       `mapstructure:"position_fraction"`
	StopLossPct      float64       `mapstructure:"stop_loss_pct"`
	TakeProfitPct    float64       `mapstructure:"take_profit_pct"`
}

// RiskConfig bounds what the risk manager allows.
type RiskConfig struct {
	RiskPerTrade float64 `mapstructure:"risk_per_trade"`
	MaxDrawdown  float64 `mapstructure:"max_drawdown"`
}

// BacktestConfig holds defaults for the backtest command.
type BacktestConfig struct {
	Timeframe    string  `mapstructure:"timeframe"`
	Limit        int     `mapstructure:"limit"`
	RiskFreeRate float64 `mapstructure:"risk_free_rate"`
}

// JournalConfig enables the SQLite trade journal.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ReportConfig selects the backtest report archive backend.
type ReportConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // for localfs
	S3   S3Config `mapstructure:"s3"`   // for s3
}

// S3Config holds S3-compatible storage settings.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifierConfig configures one notification sink. The map key under
// notifiers: names the sink type (console, webhook, telegram).
type NotifierConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Params  map[string]any `mapstructure:"params"`
}

// APIConfig configures the status HTTP server.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads the configuration file over Defaults, so a partial file only
// overrides the keys it names. A .env file in the working directory is
// loaded first, and ${VAR} string values are expanded from the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Exchange: ExchangeConfig{
			Venue: "binance",
		},
		Trading: TradingConfig{
			Symbols:          []string{"BTCUSDT"},
			Strategy:         "ma_crossover",
			InitialBalance:   10000,
			FeeRate:          0.001,
			SlippageRate:     0.001,
			Interval:         time.Minute,
			PositionFraction: 0.10,
			StopLossPct:      0.05,
			TakeProfitPct:    0.10,
		},
		Risk: RiskConfig{
			RiskPerTrade: 0.02,
			MaxDrawdown:  0.20,
		},
		Backtest: BacktestConfig{
			Timeframe: "1h",
			Limit:     500,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "papertrade.db",
		},
		Report: ReportConfig{
			Type: "localfs",
			Path: "reports",
		},
		Notifiers: map[string]NotifierConfig{
			"console": {Enabled: true},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Exchange.Venue == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("exchange venue is required"))
	}

	if len(c.Trading.Symbols) == 0 {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("at least one trading symbol is required"))
	}
	for _, sym := range c.Trading.Symbols {
		if err := core.ValidateSymbol(sym); err != nil {
			return err
		}
	}
	if c.Trading.Strategy == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("trading strategy is required"))
	}
	if c.Trading.InitialBalance <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_balance must be positive, got %f", c.Trading.InitialBalance))
	}
	if c.Trading.FeeRate < 0 || c.Trading.FeeRate >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fee_rate must be in [0, 1), got %f", c.Trading.FeeRate))
	}
	if c.Trading.SlippageRate < 0 || c.Trading.SlippageRate >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("slippage_rate must be in [0, 1), got %f", c.Trading.SlippageRate))
	}
	if c.Trading.Interval <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("interval must be positive, got %s", c.Trading.Interval))
	}
	if c.Trading.PositionFraction <= 0 || c.Trading.PositionFraction > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("position_fraction must be in (0, 1], got %f", c.Trading.PositionFraction))
	}
	if c.Trading.StopLossPct < 0 || c.Trading.StopLossPct >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("stop_loss_pct must be in [0, 1), got %f", c.Trading.StopLossPct))
	}
	if c.Trading.TakeProfitPct < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("take_profit_pct cannot be negative, got %f", c.Trading.TakeProfitPct))
	}

	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("risk_per_trade must be in (0, 1], got %f", c.Risk.RiskPerTrade))
	}
	if c.Risk.MaxDrawdown <= 0 || c.Risk.MaxDrawdown > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_drawdown must be in (0, 1], got %f", c.Risk.MaxDrawdown))
	}

	if c.Backtest.Timeframe == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("backtest timeframe is required"))
	}
	if c.Backtest.Limit <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest limit must be positive, got %d", c.Backtest.Limit))
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("journal path required when journal is enabled"))
	}

	switch c.Report.Type {
	case "localfs":
		if c.Report.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("report path required for localfs backend"))
		}
	case "s3":
		if c.Report.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required for s3 backend"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("report type must be localfs or s3, got %q", c.Report.Type))
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.API.Port))
	}

	return nil
}
