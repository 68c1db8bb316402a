package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/roundoracle/internal/blob/s3"
	"github.com/alanyoungcy/roundoracle/internal/cache/redis"
	"github.com/alanyoungcy/roundoracle/internal/config"
	"github.com/alanyoungcy/roundoracle/internal/domain"
	"github.com/alanyoungcy/roundoracle/internal/notify"
	"github.com/alanyoungcy/roundoracle/internal/platform/chain"
	"github.com/alanyoungcy/roundoracle/internal/platform/crawl"
	"github.com/alanyoungcy/roundoracle/internal/platform/judge"
	"github.com/alanyoungcy/roundoracle/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function. Optional collaborators are left nil when their backend is
// disabled or the mode does not need them.
type Dependencies struct {
	// Stores
	DB            *postgres.Client
	MarketStore   domain.MarketStore
	ResourceStore domain.ResourceStore
	RoundStore    domain.RoundStore
	OutcomeStore  domain.OutcomeStore
	PositionStore domain.PositionStore

	// Caches
	OutcomeCache domain.OutcomeCache
	RateLimiter  domain.RateLimiter
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	Snapshots  *s3blob.SnapshotArchive

	// External collaborators (scheduler modes only)
	Crawler domain.Crawler
	Judge   *judge.Client
	Chain   domain.OnchainReader

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(step string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", step, err)
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		return fail("postgres", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			return fail("postgres migrations", err)
		}
	}

	pool := pgClient.Pool()
	deps.DB = pgClient
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.ResourceStore = postgres.NewResourceStore(pool)
	deps.RoundStore = postgres.NewRoundStore(pool)
	deps.OutcomeStore = postgres.NewOutcomeStore(pool)
	deps.PositionStore = postgres.NewPositionStore(pool)

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.OutcomeCache = redis.NewOutcomeCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		logger.WarnContext(ctx, "redis disabled: running without outcome cache, tick lock, rate limits or event bus")
	}

	// --- S3 snapshot archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		if err := s3Client.Ping(ctx); err != nil {
			return fail("s3", err)
		}
		deps.BlobWriter = s3Client
		deps.Snapshots = s3blob.NewSnapshotArchive(s3Client)
	}

	// --- External collaborators ---
	if cfg.RunsScheduler() {
		reader, ethClient, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.ContractAddress)
		if err != nil {
			return fail("chain", err)
		}
		closers = append(closers, ethClient.Close)
		deps.Chain = reader

		switch cfg.Crawl.Provider {
		case "browser":
			deps.Crawler = crawl.NewBrowserCrawler(cfg.Crawl.BrowserSettle.Duration, logger)
		default:
			deps.Crawler = crawl.NewScrapeClient(cfg.Crawl.ScrapeURL, cfg.Crawl.ScrapeAPIKey)
		}

		deps.Judge = judge.New(judge.Config{
			BaseURL:     cfg.Judge.BaseURL,
			APIKey:      cfg.Judge.APIKey,
			Model:       cfg.Judge.Model,
			Temperature: cfg.Judge.Temperature,
			Timeout:     cfg.Judge.Timeout.Duration,
		})
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		tg, err := notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			return fail("telegram", err)
		}
		senders = append(senders, tg)
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		dc, err := notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL)
		if err != nil {
			return fail("discord", err)
		}
		senders = append(senders, dc)
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
