package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rewired-gh/polytrend/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Polymarket    PolymarketConfig    `mapstructure:"polymarket"`
	TrendingIndex TrendingIndexConfig `mapstructure:"trending_index"`
	Trading       TradingConfig       `mapstructure:"trading"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// PolymarketConfig holds Polymarket API configuration
type PolymarketConfig struct {
	GammaAPIURL         string        `mapstructure:"gamma_api_url"`
	ClobAPIURL          string        `mapstructure:"clob_api_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RetryDelayBase      time.Duration `mapstructure:"retry_delay_base"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
}

// TrendingIndexConfig selects the trend indicator and its parameters
type TrendingIndexConfig struct {
	Mode             string  `mapstructure:"mode"` // rsi, macd, macd_signal, momentum
	Threshold        float64 `mapstructure:"threshold"`
	Lookback         int     `mapstructure:"lookback"`
	MACDFastPeriod   int     `mapstructure:"macd_fast_period"`
	MACDSlowPeriod   int     `mapstructure:"macd_slow_period"`
	MACDSignalPeriod int     `mapstructure:"macd_signal_period"`
}

// TradingConfig holds loop cadence, sizing and the tracked markets
type TradingConfig struct {
	CheckIntervalMS int            `mapstructure:"check_interval_ms"`
	PositionSize    float64        `mapstructure:"position_size"`
	MaxHistory      int            `mapstructure:"max_history"`
	Markets         []MarketConfig `mapstructure:"markets"`
}

// MarketConfig describes one Up/Down market series. Disabled markets are
// represented by a dummy handle and never priced or traded.
type MarketConfig struct {
	Name         string   `mapstructure:"name"`
	SlugPrefixes []string `mapstructure:"slug_prefixes"`
	Enabled      bool     `mapstructure:"enabled"`
	DummySlug    string   `mapstructure:"dummy_slug"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds the decision journal configuration
type StorageConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DBPath       string `mapstructure:"db_path"`
	MaxDecisions int    `mapstructure:"max_decisions"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is loaded first when present.
// A missing config file is not an error; defaults and environment apply.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("POLYTREND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Polymarket defaults
	v.SetDefault("polymarket.gamma_api_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.clob_api_url", "https://clob.polymarket.com")
	v.SetDefault("polymarket.timeout", "10s")
	v.SetDefault("polymarket.max_retries", 2)
	v.SetDefault("polymarket.retry_delay_base", "200ms")
	v.SetDefault("polymarket.max_idle_conns", 20)
	v.SetDefault("polymarket.max_idle_conns_per_host", 10)
	v.SetDefault("polymarket.idle_conn_timeout", "90s")

	// Trending index defaults
	v.SetDefault("trending_index.mode", "rsi")
	v.SetDefault("trending_index.threshold", 70.0)
	v.SetDefault("trending_index.lookback", 20)
	v.SetDefault("trending_index.macd_fast_period", 12)
	v.SetDefault("trending_index.macd_slow_period", 26)
	v.SetDefault("trending_index.macd_signal_period", 9)

	// Trading defaults
	v.SetDefault("trading.check_interval_ms", 500)
	v.SetDefault("trading.position_size", 6.0)
	v.SetDefault("trading.max_history", 100)
	v.SetDefault("trading.markets", []map[string]any{
		{"name": "ETH", "slug_prefixes": []string{"eth"}, "enabled": true},
		{"name": "BTC", "slug_prefixes": []string{"btc"}, "enabled": true},
		{"name": "Solana", "slug_prefixes": []string{"sol"}, "enabled": false, "dummy_slug": "solana-updown-15m-dummy"},
		{"name": "XRP", "slug_prefixes": []string{"xrp"}, "enabled": false, "dummy_slug": "xrp-updown-15m-dummy"},
	})

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.db_path", "./data/polytrend.db")
	v.SetDefault("storage.max_decisions", 10000)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9108")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Polymarket config
	if c.Polymarket.GammaAPIURL == "" {
		return fmt.Errorf("polymarket.gamma_api_url is required")
	}
	if c.Polymarket.ClobAPIURL == "" {
		return fmt.Errorf("polymarket.clob_api_url is required")
	}
	if c.Polymarket.Timeout <= 0 {
		return fmt.Errorf("polymarket.timeout must be positive")
	}
	if c.Polymarket.MaxRetries < 1 {
		return fmt.Errorf("polymarket.max_retries must be at least 1")
	}
	if c.Polymarket.RetryDelayBase < 0 {
		return fmt.Errorf("polymarket.retry_delay_base must not be negative")
	}

	// Validate trending index config
	if _, err := models.ParseIndexType(c.TrendingIndex.Mode); err != nil {
		return fmt.Errorf("trending_index.mode must be one of: rsi, macd, macd_signal, momentum")
	}
	if c.TrendingIndex.Lookback < 1 {
		return fmt.Errorf("trending_index.lookback must be at least 1")
	}
	if c.TrendingIndex.MACDFastPeriod < 1 || c.TrendingIndex.MACDSlowPeriod < 1 {
		return fmt.Errorf("trending_index.macd_fast_period and macd_slow_period must be at least 1")
	}
	if c.TrendingIndex.MACDFastPeriod >= c.TrendingIndex.MACDSlowPeriod {
		return fmt.Errorf("trending_index.macd_fast_period must be less than macd_slow_period")
	}
	if c.TrendingIndex.MACDSignalPeriod < 0 {
		return fmt.Errorf("trending_index.macd_signal_period must not be negative")
	}

	// Validate trading config
	if c.Trading.CheckIntervalMS < 1 {
		return fmt.Errorf("trading.check_interval_ms must be at least 1")
	}
	if c.Trading.PositionSize <= 0 {
		return fmt.Errorf("trading.position_size must be positive")
	}
	if c.Trading.MaxHistory < c.TrendingIndex.Lookback+1 {
		return fmt.Errorf("trading.max_history must exceed trending_index.lookback")
	}
	if len(c.Trading.Markets) == 0 {
		return fmt.Errorf("trading.markets must contain at least one market")
	}
	seen := make(map[string]bool, len(c.Trading.Markets))
	enabled := 0
	for i, m := range c.Trading.Markets {
		if m.Name == "" {
			return fmt.Errorf("trading.markets[%d].name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("trading.markets[%d].name %q is duplicated", i, m.Name)
		}
		seen[m.Name] = true
		if m.Enabled {
			enabled++
			if len(m.SlugPrefixes) == 0 {
				return fmt.Errorf("trading.markets[%d].slug_prefixes is required for enabled market %s", i, m.Name)
			}
		}
	}
	if enabled == 0 {
		return fmt.Errorf("trading.markets must enable at least one market")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.Enabled && c.Storage.MaxDecisions < 1 {
		return fmt.Errorf("storage.max_decisions must be at least 1")
	}

	// Validate Metrics config
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// CheckInterval returns the loop sleep between cycles.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Trading.CheckIntervalMS) * time.Millisecond
}

// IndexType returns the parsed trending index mode. Call after Validate.
func (c *Config) IndexType() models.IndexType {
	t, _ := models.ParseIndexType(c.TrendingIndex.Mode)
	return t
}

// EnabledMarkets returns the names of markets that are discovered and traded.
func (c *Config) EnabledMarkets() []string {
	var names []string
	for _, m := range c.Trading.Markets {
		if m.Enabled {
			names = append(names, m.Name)
		}
	}
	return names
}
