// Package config defines the roundoracle configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ROUNDORACLE_* environment variables.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Chain     ChainConfig     `toml:"chain"`
	Crawl     CrawlConfig     `toml:"crawl"`
	Judge     JudgeConfig     `toml:"judge"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
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

// RedisConfig holds Redis connection parameters. When disabled the service
// runs without the outcome cache, tick lock, judge rate limit and event bus.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds the crawl snapshot archive bucket.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ChainConfig selects the chain whose markets are processed and the
// contract the round number is read from.
type ChainConfig struct {
	ChainID         int64  `toml:"chain_id"`
	RPCURL          string `toml:"rpc_url"`
	ContractAddress string `toml:"contract_address"`
}

// CrawlConfig selects the crawler. Provider is "scrape" (hosted scrape
// service) or "browser" (local headless Chrome).
type CrawlConfig struct {
	Provider      string   `toml:"provider"`
	ScrapeURL     string   `toml:"scrape_url"`
	ScrapeAPIKey  string   `toml:"scrape_api_key"`
	BrowserSettle duration `toml:"browser_settle"`
}

// JudgeConfig holds the chat-completions endpoint used for verdicts and
// weights.
type JudgeConfig struct {
	BaseURL            string   `toml:"base_url"`
	APIKey             string   `toml:"api_key"`
	Model              string   `toml:"model"`
	Temperature        float64  `toml:"temperature"`
	Timeout            duration `toml:"timeout"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
}

// SchedulerConfig controls the reveal tick.
type SchedulerConfig struct {
	Cron                  string   `toml:"cron"`
	FreshnessWindow       duration `toml:"freshness_window"`
	CallTimeout           duration `toml:"call_timeout"`
	WeightRefreshInterval duration `toml:"weight_refresh_interval"`
	LockTTL               duration `toml:"lock_ttl"`
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

// ServerConfig holds HTTP server parameters. APIKey, when set, is required
// on mutating routes.
type ServerConfig struct {
	Enabled            bool     `toml:"enabled"`
	Port               int      `toml:"port"`
	CORSOrigins        []string `toml:"cors_origins"`
	APIKey             string   `toml:"api_key"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "roundoracle",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "roundoracle",
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "roundoracle-snapshots",
			ForcePathStyle: true,
		},
		Chain: ChainConfig{
			ChainID: 1,
		},
		Crawl: CrawlConfig{
			Provider:      "scrape",
			ScrapeURL:     "https://api.firecrawl.dev",
			BrowserSettle: duration{2 * time.Second},
		},
		Judge: JudgeConfig{
			BaseURL:            "https://api.openai.com/v1",
			Model:              "gpt-4o-mini",
			Temperature:        0,
			Timeout:            duration{2 * time.Minute},
			RateLimitPerMinute: 30,
		},
		Scheduler: SchedulerConfig{
			Cron:                  "@every 10m",
			FreshnessWindow:       duration{24 * time.Hour},
			CallTimeout:           duration{5 * time.Minute},
			WeightRefreshInterval: duration{time.Hour},
			LockTTL:               duration{15 * time.Minute},
		},
		Server: ServerConfig{
			Enabled:            true,
			Port:               8000,
			CORSOrigins:        []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerMinute: 120,
		},
		Notify: NotifyConfig{
			Events: []string{"round_resolved", "reveal_failed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scheduler": true,
	"server":    true,
	"full":      true,
	"once":      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// RunsScheduler reports whether the mode drives reveal ticks.
func (c *Config) RunsScheduler() bool {
	m := strings.ToLower(c.Mode)
	return m == "scheduler" || m == "full" || m == "once"
}

// RunsServer reports whether the mode serves the HTTP API.
func (c *Config) RunsServer() bool {
	m := strings.ToLower(c.Mode)
	return (m == "server" || m == "full") && c.Server.Enabled
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scheduler, server, full, once)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	if c.RunsScheduler() {
		// Chain
		if c.Chain.ChainID <= 0 {
			errs = append(errs, "chain: chain_id must be positive")
		}
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url must not be empty")
		}
		if c.Chain.ContractAddress == "" {
			errs = append(errs, "chain: contract_address must not be empty")
		}

		// Crawl
		switch c.Crawl.Provider {
		case "scrape":
			if c.Crawl.ScrapeURL == "" {
				errs = append(errs, "crawl: scrape_url must not be empty for provider scrape")
			}
		case "browser":
		default:
			errs = append(errs, fmt.Sprintf("crawl: unknown provider %q (valid: scrape, browser)", c.Crawl.Provider))
		}

		// Judge
		if c.Judge.BaseURL == "" {
			errs = append(errs, "judge: base_url must not be empty")
		}
		if c.Judge.Model == "" {
			errs = append(errs, "judge: model must not be empty")
		}
		if c.Judge.RateLimitPerMinute < 0 {
			errs = append(errs, "judge: rate_limit_per_minute must be >= 0")
		}

		// Scheduler
		if strings.ToLower(c.Mode) != "once" {
			if _, err := cron.ParseStandard(c.Scheduler.Cron); err != nil {
				errs = append(errs, fmt.Sprintf("scheduler: invalid cron %q: %v", c.Scheduler.Cron, err))
			}
		}
		if c.Scheduler.FreshnessWindow.Duration <= 0 {
			errs = append(errs, "scheduler: freshness_window must be > 0")
		}
		if c.Scheduler.CallTimeout.Duration <= 0 {
			errs = append(errs, "scheduler: call_timeout must be > 0")
		}
		if c.Scheduler.LockTTL.Duration < c.Scheduler.CallTimeout.Duration {
			errs = append(errs, "scheduler: lock_ttl must be >= call_timeout")
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
