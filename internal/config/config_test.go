package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServiceConfigDefaults(t *testing.T) {
	os.Clearenv()
	cfg := LoadServiceConfig()

	if cfg.Port != "8090" {
		t.Errorf("port = %q, want 8090", cfg.Port)
	}
	if cfg.InitialCash != 100000.0 {
		t.Errorf("initial cash = %v, want 100000", cfg.InitialCash)
	}
	if !cfg.RateLimitEnabled {
		t.Error("expected rate limiting to default to enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoadServiceConfigReadsEnv(t *testing.T) {
	os.Clearenv()
	t.Setenv("PAPERBROKER_PORT", "9000")
	t.Setenv("PAPERBROKER_INITIAL_CASH", "25000")
	t.Setenv("PAPERBROKER_RATE_LIMIT_ENABLED", "false")

	cfg := LoadServiceConfig()
	if cfg.Port != "9000" {
		t.Errorf("port = %q, want 9000", cfg.Port)
	}
	if cfg.InitialCash != 25000 {
		t.Errorf("initial cash = %v, want 25000", cfg.InitialCash)
	}
	if cfg.RateLimitEnabled {
		t.Error("expected rate limiting disabled by PAPERBROKER_RATE_LIMIT_ENABLED=false")
	}
}

func TestServiceConfigValidateRejectsNonPositiveCash(t *testing.T) {
	cfg := LoadServiceConfig()
	cfg.InitialCash = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for a non-positive initial cash")
	}
}

func TestLoadRiskLimitsNoPathReturnsDefaults(t *testing.T) {
	limits, err := LoadRiskLimits("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limits.MaxDailyTrades != 50 {
		t.Errorf("max daily trades = %d, want the default 50", limits.MaxDailyTrades)
	}
}

func TestLoadRiskLimitsMissingFileReturnsDefaults(t *testing.T) {
	limits, err := LoadRiskLimits(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limits.MaxTradeSize != 10000.0 {
		t.Errorf("max trade size = %v, want the default 10000", limits.MaxTradeSize)
	}
}

func TestLoadRiskLimitsOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	if err := os.WriteFile(path, []byte(`{"risk_limits":{"max_daily_trades":5,"max_daily_loss":1,"max_daily_volume":1,"max_trade_size":1,"max_position_size":1,"max_portfolio_concentration":0.1,"max_option_delta":1,"max_option_gamma":1,"max_option_vega":1,"max_contracts_per_trade":1,"circuit_breaker_loss_pct":0.1,"circuit_breaker_duration_minutes":1,"max_consecutive_losses":1}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	limits, err := LoadRiskLimits(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limits.MaxDailyTrades != 5 {
		t.Errorf("max daily trades = %d, want the overridden 5", limits.MaxDailyTrades)
	}
}

func TestLoadRiskLimitsRejectsInvalidOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	if err := os.WriteFile(path, []byte(`{"risk_limits":{"max_daily_trades":0}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadRiskLimits(path); err == nil {
		t.Error("expected validation to reject max_daily_trades=0")
	}
}

func TestLoadBrokerConfigNoPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadBrokerConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CommissionPerShare != 0.005 {
		t.Errorf("commission per share = %v, want the default 0.005", cfg.CommissionPerShare)
	}
}
