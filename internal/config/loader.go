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
// built-in defaults, applies ROUNDORACLE_* environment variable overrides,
// and returns the final Config. An empty path skips the file. The returned
// Config has NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ROUNDORACLE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "ROUNDORACLE_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL")
	setStr(&cfg.Database.Host, "ROUNDORACLE_DATABASE_HOST")
	setInt(&cfg.Database.Port, "ROUNDORACLE_DATABASE_PORT")
	setStr(&cfg.Database.Database, "ROUNDORACLE_DATABASE_NAME")
	setStr(&cfg.Database.User, "ROUNDORACLE_DATABASE_USER")
	setStr(&cfg.Database.Password, "ROUNDORACLE_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "ROUNDORACLE_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "ROUNDORACLE_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "ROUNDORACLE_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "ROUNDORACLE_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ROUNDORACLE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ROUNDORACLE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ROUNDORACLE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ROUNDORACLE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ROUNDORACLE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ROUNDORACLE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ROUNDORACLE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "ROUNDORACLE_REDIS_KEY_PREFIX")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ROUNDORACLE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ROUNDORACLE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ROUNDORACLE_S3_REGION")
	setStr(&cfg.S3.Bucket, "ROUNDORACLE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ROUNDORACLE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ROUNDORACLE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ROUNDORACLE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ROUNDORACLE_S3_FORCE_PATH_STYLE")

	// ── Chain ──
	setInt64(&cfg.Chain.ChainID, "ROUNDORACLE_CHAIN_ID")
	setStr(&cfg.Chain.RPCURL, "ROUNDORACLE_CHAIN_RPC_URL")
	setStr(&cfg.Chain.ContractAddress, "ROUNDORACLE_CHAIN_CONTRACT_ADDRESS")

	// ── Crawl ──
	setStr(&cfg.Crawl.Provider, "ROUNDORACLE_CRAWL_PROVIDER")
	setStr(&cfg.Crawl.ScrapeURL, "ROUNDORACLE_CRAWL_SCRAPE_URL")
	setStr(&cfg.Crawl.ScrapeAPIKey, "ROUNDORACLE_CRAWL_SCRAPE_API_KEY")
	setDuration(&cfg.Crawl.BrowserSettle, "ROUNDORACLE_CRAWL_BROWSER_SETTLE")

	// ── Judge ──
	setStr(&cfg.Judge.BaseURL, "ROUNDORACLE_JUDGE_BASE_URL")
	setStr(&cfg.Judge.APIKey, "ROUNDORACLE_JUDGE_API_KEY")
	setStr(&cfg.Judge.Model, "ROUNDORACLE_JUDGE_MODEL")
	setFloat64(&cfg.Judge.Temperature, "ROUNDORACLE_JUDGE_TEMPERATURE")
	setDuration(&cfg.Judge.Timeout, "ROUNDORACLE_JUDGE_TIMEOUT")
	setInt(&cfg.Judge.RateLimitPerMinute, "ROUNDORACLE_JUDGE_RATE_LIMIT_PER_MINUTE")

	// ── Scheduler ──
	setStr(&cfg.Scheduler.Cron, "ROUNDORACLE_SCHEDULER_CRON")
	setDuration(&cfg.Scheduler.FreshnessWindow, "ROUNDORACLE_SCHEDULER_FRESHNESS_WINDOW")
	setDuration(&cfg.Scheduler.CallTimeout, "ROUNDORACLE_SCHEDULER_CALL_TIMEOUT")
	setDuration(&cfg.Scheduler.WeightRefreshInterval, "ROUNDORACLE_SCHEDULER_WEIGHT_REFRESH_INTERVAL")
	setDuration(&cfg.Scheduler.LockTTL, "ROUNDORACLE_SCHEDULER_LOCK_TTL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ROUNDORACLE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ROUNDORACLE_SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ROUNDORACLE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ROUNDORACLE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMinute, "ROUNDORACLE_SERVER_RATE_LIMIT_PER_MINUTE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ROUNDORACLE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ROUNDORACLE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ROUNDORACLE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ROUNDORACLE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ROUNDORACLE_MODE")
	setStr(&cfg.LogLevel, "ROUNDORACLE_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
