package config

import (
	"strings"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "daemon"
	cfg.LogLevel = "trace"
	cfg.Redis.Addr = ""
	cfg.Feed.Instruments = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"mode", "log_level", "redis", "instrument"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %q: %v", want, err)
		}
	}
}

func TestValidateSlippageStrategy(t *testing.T) {
	cfg := Defaults()
	cfg.Sim.SlippageStrategy = "neural"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown slippage strategy")
	}
}

func TestValidateS3OnlyWhenArchiving(t *testing.T) {
	cfg := Defaults()
	cfg.S3.Bucket = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("s3 should not be required when archival is off: %v", err)
	}
	cfg.Archive.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing bucket with archival on")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COSTSIM_MODE", "simulate")
	t.Setenv("COSTSIM_SIM_TAKER_FEE_PCT", "0.1")
	t.Setenv("COSTSIM_FEED_INSTRUMENTS", "BTC-USDT, ETH-USDT")
	t.Setenv("COSTSIM_STRATEGY_WINDOW_SIZE", "90s")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Mode != "simulate" {
		t.Errorf("mode = %q, want simulate", cfg.Mode)
	}
	if cfg.Sim.TakerFeePct != 0.1 {
		t.Errorf("taker fee = %v, want 0.1", cfg.Sim.TakerFeePct)
	}
	if len(cfg.Feed.Instruments) != 2 || cfg.Feed.Instruments[1] != "ETH-USDT" {
		t.Errorf("instruments = %v, want trimmed two-element list", cfg.Feed.Instruments)
	}
	if cfg.Strategy.WindowSize.Seconds() != 90 {
		t.Errorf("window = %v, want 90s", cfg.Strategy.WindowSize)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Server.APIKey = "secret"

	red := RedactedConfig(&cfg)
	if red.Postgres.Password != "***" || red.Server.APIKey != "***" {
		t.Errorf("secrets not redacted: %+v", red)
	}
	if cfg.Postgres.Password != "hunter2" {
		t.Error("redaction mutated the original config")
	}
}
