package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/polytrend/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
polymarket:
  timeout: 5s

trending_index:
  mode: momentum
  threshold: 65
  lookback: 14

trading:
  check_interval_ms: 1000
  position_size: 10
  markets:
    - name: ETH
      slug_prefixes: [eth, ethereum]
      enabled: true
    - name: XRP
      enabled: false
      dummy_slug: xrp-updown-15m-dummy

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

storage:
  max_decisions: 500
  db_path: "./data/test.db"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Polymarket.Timeout != 5*time.Second {
		t.Errorf("Unexpected timeout: %v", cfg.Polymarket.Timeout)
	}
	if cfg.Polymarket.GammaAPIURL != "https://gamma-api.polymarket.com" {
		t.Errorf("Default gamma URL not applied: %s", cfg.Polymarket.GammaAPIURL)
	}
	if cfg.IndexType() != models.IndexMomentum {
		t.Errorf("Unexpected index type: %v", cfg.IndexType())
	}
	if cfg.TrendingIndex.Lookback != 14 || cfg.TrendingIndex.MACDSlowPeriod != 26 {
		t.Errorf("Unexpected trending index: %+v", cfg.TrendingIndex)
	}
	if cfg.CheckInterval() != time.Second {
		t.Errorf("Unexpected check interval: %v", cfg.CheckInterval())
	}
	if len(cfg.Trading.Markets) != 2 {
		t.Fatalf("Expected 2 markets, got %d", len(cfg.Trading.Markets))
	}
	if got := cfg.Trading.Markets[0].SlugPrefixes; len(got) != 2 || got[1] != "ethereum" {
		t.Errorf("Unexpected slug prefixes: %v", got)
	}
	if got := cfg.EnabledMarkets(); len(got) != 1 || got[0] != "ETH" {
		t.Errorf("Unexpected enabled markets: %v", got)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load without a config file failed: %v", err)
	}

	if cfg.TrendingIndex.Mode != "rsi" || cfg.TrendingIndex.Threshold != 70 || cfg.TrendingIndex.Lookback != 20 {
		t.Errorf("Unexpected trending index defaults: %+v", cfg.TrendingIndex)
	}
	if cfg.TrendingIndex.MACDFastPeriod != 12 || cfg.TrendingIndex.MACDSignalPeriod != 9 {
		t.Errorf("Unexpected MACD defaults: %+v", cfg.TrendingIndex)
	}
	if cfg.Trading.CheckIntervalMS != 500 || cfg.Trading.PositionSize != 6 {
		t.Errorf("Unexpected trading defaults: %+v", cfg.Trading)
	}
	if got := strings.Join(cfg.EnabledMarkets(), ","); got != "ETH,BTC" {
		t.Errorf("Enabled markets = %s, want ETH,BTC", got)
	}
	if len(cfg.Trading.Markets) != 4 || cfg.Trading.Markets[2].DummySlug != "solana-updown-15m-dummy" {
		t.Errorf("Unexpected default markets: %+v", cfg.Trading.Markets)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("POLYTREND_TRENDING_INDEX_MODE", "macd")
	t.Setenv("POLYTREND_TELEGRAM_BOT_TOKEN", "from-env")

	cfg, err := Load(writeConfig(t, "trending_index:\n  mode: rsi\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.IndexType() != models.IndexMACD {
		t.Errorf("Env did not override mode: %s", cfg.TrendingIndex.Mode)
	}
	if cfg.Telegram.BotToken != "from-env" {
		t.Errorf("Env did not set bot token: %q", cfg.Telegram.BotToken)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	if _, err := Load(writeConfig(t, "trading: [unterminated\n")); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func validConfig() *Config {
	return &Config{
		Polymarket: PolymarketConfig{
			GammaAPIURL: "https://example.com",
			ClobAPIURL:  "https://example.com",
			Timeout:     10 * time.Second,
			MaxRetries:  2,
		},
		TrendingIndex: TrendingIndexConfig{
			Mode:             "rsi",
			Threshold:        70,
			Lookback:         20,
			MACDFastPeriod:   12,
			MACDSlowPeriod:   26,
			MACDSignalPeriod: 9,
		},
		Trading: TradingConfig{
			CheckIntervalMS: 500,
			PositionSize:    6,
			MaxHistory:      100,
			Markets: []MarketConfig{
				{Name: "ETH", SlugPrefixes: []string{"eth"}, Enabled: true},
				{Name: "XRP"},
			},
		},
		Storage: StorageConfig{Enabled: true, MaxDecisions: 100},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing telegram token when enabled", func(c *Config) { c.Telegram = TelegramConfig{Enabled: true, ChatID: "1"} }},
		{"unknown index mode", func(c *Config) { c.TrendingIndex.Mode = "bollinger" }},
		{"zero lookback", func(c *Config) { c.TrendingIndex.Lookback = 0 }},
		{"fast period not below slow", func(c *Config) { c.TrendingIndex.MACDFastPeriod = 26 }},
		{"zero check interval", func(c *Config) { c.Trading.CheckIntervalMS = 0 }},
		{"zero position size", func(c *Config) { c.Trading.PositionSize = 0 }},
		{"history shorter than lookback", func(c *Config) { c.Trading.MaxHistory = 20 }},
		{"no enabled market", func(c *Config) { c.Trading.Markets[0].Enabled = false }},
		{"enabled market without prefixes", func(c *Config) { c.Trading.Markets[0].SlugPrefixes = nil }},
		{"duplicate market", func(c *Config) { c.Trading.Markets[1].Name = "ETH" }},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("baseline config should validate: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() returned nil, want error")
			}
		})
	}
}
