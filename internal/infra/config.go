package infra

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every application setting. Secrets may be supplied in the
// file but environment variables always override them.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode string `yaml:"mode"` // "sim" or "live"
	} `yaml:"trading"`

	Engine struct {
		PollIntervalSec       int   `yaml:"poll_interval_sec"`
		PriceToleranceCents   int64 `yaml:"price_tolerance_cents"`
		QtyTolerance          int64 `yaml:"qty_tolerance"`
		MinRequoteIntervalSec int   `yaml:"min_requote_interval_sec"`
		MaxOrderAgeSec        int   `yaml:"max_order_age_sec"`
		SnapshotIntervalSec   int   `yaml:"snapshot_interval_sec"`
	} `yaml:"engine"`

	Strategy struct {
		Name   string             `yaml:"name"`
		Params map[string]float64 `yaml:"params"`
	} `yaml:"strategy"`

	Limits struct {
		StartingCashCents     int64 `yaml:"starting_cash_cents"`
		MaxTradeNotionalCents int64 `yaml:"max_trade_notional_cents"`
		MaxDailySpendCents    int64 `yaml:"max_daily_spend_cents"`
		MaxInventory          int64 `yaml:"max_inventory"`
		AllowHedged           bool  `yaml:"allow_hedged"`
	} `yaml:"limits"`

	API struct {
		Kalshi struct {
			RestURL        string   `yaml:"rest_url"`
			WSURL          string   `yaml:"ws_url"`
			AccessKey      string   `yaml:"access_key"`
			PrivateKeyPath string   `yaml:"private_key_path"`
			Tickers        []string `yaml:"tickers"`
		} `yaml:"kalshi"`
	} `yaml:"api"`

	Data struct {
		Dir         string `yaml:"dir"`          // market_data_*.csv replay files
		SnapshotDir string `yaml:"snapshot_dir"` // engine snapshots for warm starts
		TradeLog    string `yaml:"trade_log"`    // sqlite trade/action log path
	} `yaml:"data"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // "text" or "json"
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file. Unknown fields are
// rejected so a typo in a key fails loudly instead of silently using a
// default.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	mode := strings.ToLower(c.Trading.Mode)
	if mode != "sim" && mode != "live" {
		return fmt.Errorf("trading.mode must be \"sim\" or \"live\", got %q", c.Trading.Mode)
	}

	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}

	if c.Engine.PollIntervalSec <= 0 {
		return fmt.Errorf("engine.poll_interval_sec must be positive")
	}
	if c.Engine.PriceToleranceCents < 0 || c.Engine.QtyTolerance < 0 {
		return fmt.Errorf("engine tolerances must be non-negative")
	}
	if c.Engine.MinRequoteIntervalSec < 0 {
		return fmt.Errorf("engine.min_requote_interval_sec must be non-negative")
	}
	if c.Engine.MaxOrderAgeSec <= 0 {
		return fmt.Errorf("engine.max_order_age_sec must be positive")
	}

	if c.Limits.StartingCashCents <= 0 {
		return fmt.Errorf("limits.starting_cash_cents must be positive")
	}

	if mode == "live" {
		if c.API.Kalshi.RestURL == "" || !strings.HasPrefix(c.API.Kalshi.RestURL, "http") {
			return fmt.Errorf("invalid Kalshi REST URL: %s", c.API.Kalshi.RestURL)
		}
		if c.API.Kalshi.WSURL != "" && !strings.HasPrefix(c.API.Kalshi.WSURL, "ws") {
			return fmt.Errorf("invalid Kalshi WS URL: %s", c.API.Kalshi.WSURL)
		}
		if c.API.Kalshi.AccessKey == "" {
			return fmt.Errorf("kalshi access key is required in live mode (set KALSHI_ACCESS_KEY)")
		}
		if c.API.Kalshi.PrivateKeyPath == "" {
			return fmt.Errorf("kalshi private key path is required in live mode (set KALSHI_PRIVATE_KEY_PATH)")
		}
		if len(c.API.Kalshi.Tickers) == 0 {
			return fmt.Errorf("at least one ticker is required in live mode")
		}
	}

	return nil
}

// PollInterval returns the live polling cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalSec) * time.Second
}

// overrideWithEnv applies environment variable overrides. Environment
// variables take precedence over file values so keys never need to live
// on disk next to the config.
func overrideWithEnv(cfg *Config) {
	if cfg.API.Kalshi.AccessKey != "" {
		fmt.Println("⚠️  SECURITY WARNING: Kalshi access key found in config file.")
		fmt.Println("   Recommendation: use KALSHI_ACCESS_KEY instead.")
	}

	if key := os.Getenv("KALSHI_ACCESS_KEY"); key != "" {
		cfg.API.Kalshi.AccessKey = key
	}
	if path := os.Getenv("KALSHI_PRIVATE_KEY_PATH"); path != "" {
		cfg.API.Kalshi.PrivateKeyPath = path
	}
}
