// Package config defines the top-level configuration for the cost
// simulator and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by COSTSIM_* environment variables.
type Config struct {
	Feed     FeedConfig     `toml:"feed"`
	Sim      SimConfig      `toml:"sim"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Strategy StrategyConfig `toml:"strategy"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// FeedConfig holds market-data feed parameters.
type FeedConfig struct {
	WsHost      string   `toml:"ws_host"`
	Instruments []string `toml:"instruments"`
	Depth       int      `toml:"depth"`
	// UseSample serves a built-in synthetic book when the feed has no
	// data yet, keeping the API usable offline.
	UseSample bool `toml:"use_sample"`
}

// SimConfig holds execution-simulation parameters.
type SimConfig struct {
	// SlippageStrategy selects the estimator: "book_walk" or "parametric".
	SlippageStrategy string  `toml:"slippage_strategy"`
	MakerFeePct      float64 `toml:"maker_fee_pct"`
	TakerFeePct      float64 `toml:"taker_fee_pct"`
	DefaultLatencyMs int     `toml:"default_latency_ms"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// StrategyConfig holds strategy-engine parameters.
type StrategyConfig struct {
	// Active is the list of strategy names to run concurrently.
	Active        []string            `toml:"active"`
	WindowSize    duration            `toml:"window_size"`
	SizeQuote     float64             `toml:"size_quote"`
	MaxCostPct    float64             `toml:"max_cost_pct"`
	MeanReversion MeanReversionConfig `toml:"mean_reversion"`
	Momentum      MomentumConfig      `toml:"momentum"`
}

// MeanReversionConfig holds config for the mean_reversion strategy.
type MeanReversionConfig struct {
	Enabled     bool    `toml:"enabled"`
	ZScoreEntry float64 `toml:"z_score_entry"`
	MinHistory  int     `toml:"min_history"`
	CooldownSec int     `toml:"cooldown_sec"`
}

// MomentumConfig holds config for the momentum strategy.
type MomentumConfig struct {
	Enabled     bool    `toml:"enabled"`
	MinMovePct  float64 `toml:"min_move_pct"`
	MinHistory  int     `toml:"min_history"`
	CooldownSec int     `toml:"cooldown_sec"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
}

// NotifyConfig holds operator alert channels. All channels are optional;
// with none configured, alerting is disabled.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	// Events restricts alerts to the listed event types (signal,
	// impact_warning, archive_sweep, error). Empty allows all.
	Events []string `toml:"events"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimit caps requests per client IP per second; 0 disables.
	RateLimit int `toml:"rate_limit"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			WsHost:      "wss://ws.okx.com:8443/ws/v5/public",
			Instruments: []string{"BTC-USDT-SWAP"},
			Depth:       400,
			UseSample:   true,
		},
		Sim: SimConfig{
			SlippageStrategy: "book_walk",
			MakerFeePct:      0.06,
			TakerFeePct:      0.08,
			DefaultLatencyMs: 0,
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "costsim",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "costsim-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Strategy: StrategyConfig{
			Active:     []string{},
			WindowSize: duration{5 * time.Minute},
			SizeQuote:  1000,
			MaxCostPct: 0.25,
			MeanReversion: MeanReversionConfig{
				Enabled:     true,
				ZScoreEntry: 2.0,
				MinHistory:  30,
				CooldownSec: 10,
			},
			Momentum: MomentumConfig{
				Enabled:     false,
				MinMovePct:  0.2,
				MinHistory:  20,
				CooldownSec: 10,
			},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Interval:      duration{5 * time.Minute},
			RetentionDays: 90,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   100,
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":    true,
	"simulate": true,
	"archive":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSlippageStrategies enumerates the accepted slippage estimators.
var validSlippageStrategies = map[string]bool{
	"book_walk":  true,
	"parametric": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, simulate, archive)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feed
	if c.Feed.WsHost == "" {
		errs = append(errs, "feed: ws_host must not be empty")
	}
	if len(c.Feed.Instruments) == 0 {
		errs = append(errs, "feed: at least one instrument is required")
	}
	if c.Feed.Depth <= 0 {
		errs = append(errs, "feed: depth must be positive")
	}

	// Sim
	if !validSlippageStrategies[c.Sim.SlippageStrategy] {
		errs = append(errs, fmt.Sprintf("sim: unknown slippage_strategy %q (valid: book_walk, parametric)", c.Sim.SlippageStrategy))
	}
	if c.Sim.TakerFeePct < c.Sim.MakerFeePct {
		errs = append(errs, "sim: taker_fee_pct must not be below maker_fee_pct")
	}
	if c.Sim.DefaultLatencyMs < 0 {
		errs = append(errs, "sim: default_latency_ms must be non-negative")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only needed when archival is on.
	if c.Archive.Enabled || c.Mode == "archive" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Strategy
	if len(c.Strategy.Active) > 0 {
		if c.Strategy.SizeQuote <= 0 {
			errs = append(errs, "strategy: size_quote must be > 0")
		}
		if c.Strategy.WindowSize.Duration <= 0 {
			errs = append(errs, "strategy: window_size must be positive")
		}
		if c.Strategy.MaxCostPct <= 0 {
			errs = append(errs, "strategy: max_cost_pct must be > 0")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
