package infra

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validSimConfig = `
app:
  name: kalshi-trader
  version: "0.1.0"
trading:
  mode: sim
engine:
  poll_interval_sec: 4
  price_tolerance_cents: 1
  qty_tolerance: 0
  min_requote_interval_sec: 10
  max_order_age_sec: 300
  snapshot_interval_sec: 60
strategy:
  name: maker
  params:
    window: 20
limits:
  starting_cash_cents: 100000
  max_trade_notional_cents: 5000
  max_daily_spend_cents: 50000
  max_inventory: 100
logging:
  level: info
  format: text
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validSimConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Trading.Mode != "sim" {
		t.Errorf("mode = %q, want sim", cfg.Trading.Mode)
	}
	if cfg.Strategy.Params["window"] != 20 {
		t.Errorf("window param = %v, want 20", cfg.Strategy.Params["window"])
	}
	if cfg.Engine.MaxOrderAgeSec != 300 {
		t.Errorf("max order age = %d, want 300", cfg.Engine.MaxOrderAgeSec)
	}
}

func TestLoadConfig_UnknownFieldRejected(t *testing.T) {
	bad := strings.Replace(validSimConfig, "poll_interval_sec", "poll_intervall_sec", 1)
	if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
		t.Error("expected error for unknown config key")
	}
}

func TestLoadConfig_InvalidMode(t *testing.T) {
	bad := strings.Replace(validSimConfig, "mode: sim", "mode: paper", 1)
	if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
		t.Error("expected error for unsupported trading mode")
	}
}

func TestLoadConfig_LiveRequiresCredentials(t *testing.T) {
	live := strings.Replace(validSimConfig, "mode: sim", "mode: live", 1)
	if _, err := LoadConfig(writeConfig(t, live)); err == nil {
		t.Error("expected error for live mode without credentials")
	}
}

func TestLoadConfig_EnvOverridesKey(t *testing.T) {
	live := strings.Replace(validSimConfig, "mode: sim", "mode: live", 1)
	live += `
api:
  kalshi:
    rest_url: https://api.elections.kalshi.com/trade-api/v2
    tickers: [KXHIGHNY-25DEC04-B49.5]
`
	t.Setenv("KALSHI_ACCESS_KEY", "key-from-env")
	t.Setenv("KALSHI_PRIVATE_KEY_PATH", "/tmp/kalshi.pem")

	cfg, err := LoadConfig(writeConfig(t, live))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Kalshi.AccessKey != "key-from-env" {
		t.Errorf("access key = %q, want env override", cfg.API.Kalshi.AccessKey)
	}
	if cfg.API.Kalshi.PrivateKeyPath != "/tmp/kalshi.pem" {
		t.Errorf("key path = %q, want env override", cfg.API.Kalshi.PrivateKeyPath)
	}
}
