package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies COSTSIM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known COSTSIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.WsHost, "COSTSIM_FEED_WS_HOST")
	setStringSlice(&cfg.Feed.Instruments, "COSTSIM_FEED_INSTRUMENTS")
	setInt(&cfg.Feed.Depth, "COSTSIM_FEED_DEPTH")
	setBool(&cfg.Feed.UseSample, "COSTSIM_FEED_USE_SAMPLE")

	// ── Sim ──
	setStr(&cfg.Sim.SlippageStrategy, "COSTSIM_SIM_SLIPPAGE_STRATEGY")
	setFloat64(&cfg.Sim.MakerFeePct, "COSTSIM_SIM_MAKER_FEE_PCT")
	setFloat64(&cfg.Sim.TakerFeePct, "COSTSIM_SIM_TAKER_FEE_PCT")
	setInt(&cfg.Sim.DefaultLatencyMs, "COSTSIM_SIM_DEFAULT_LATENCY_MS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "COSTSIM_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "COSTSIM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "COSTSIM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "COSTSIM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "COSTSIM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "COSTSIM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "COSTSIM_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "COSTSIM_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "COSTSIM_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "COSTSIM_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "COSTSIM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "COSTSIM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "COSTSIM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "COSTSIM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "COSTSIM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "COSTSIM_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "COSTSIM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "COSTSIM_S3_REGION")
	setStr(&cfg.S3.Bucket, "COSTSIM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "COSTSIM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "COSTSIM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "COSTSIM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "COSTSIM_S3_FORCE_PATH_STYLE")

	// ── Strategy ──
	setStringSlice(&cfg.Strategy.Active, "COSTSIM_STRATEGY_ACTIVE")
	setDuration(&cfg.Strategy.WindowSize, "COSTSIM_STRATEGY_WINDOW_SIZE")
	setFloat64(&cfg.Strategy.SizeQuote, "COSTSIM_STRATEGY_SIZE_QUOTE")
	setFloat64(&cfg.Strategy.MaxCostPct, "COSTSIM_STRATEGY_MAX_COST_PCT")
	setBool(&cfg.Strategy.MeanReversion.Enabled, "COSTSIM_STRATEGY_MEAN_REVERSION_ENABLED")
	setBool(&cfg.Strategy.Momentum.Enabled, "COSTSIM_STRATEGY_MOMENTUM_ENABLED")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "COSTSIM_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "COSTSIM_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "COSTSIM_ARCHIVE_RETENTION_DAYS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "COSTSIM_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "COSTSIM_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "COSTSIM_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "COSTSIM_NOTIFY_EVENTS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "COSTSIM_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "COSTSIM_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "COSTSIM_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "COSTSIM_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.Mode, "COSTSIM_MODE")
	setStr(&cfg.LogLevel, "COSTSIM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
