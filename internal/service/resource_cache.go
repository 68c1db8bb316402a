package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

// DefaultFreshnessWindow is how long a crawled snapshot stays authoritative.
const DefaultFreshnessWindow = 24 * time.Hour

// ResourceCache serves a market resource's crawled text, re-crawling only
// when the stored snapshot is missing or older than the freshness window.
type ResourceCache struct {
	resources   domain.ResourceStore
	crawler     domain.Crawler
	archive     domain.BlobWriter
	window      time.Duration
	callTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// ResourceCacheOption customises a ResourceCache.
type ResourceCacheOption func(*ResourceCache)

// WithSnapshotArchive copies every fresh snapshot to object storage.
func WithSnapshotArchive(w domain.BlobWriter) ResourceCacheOption {
	return func(c *ResourceCache) { c.archive = w }
}

// WithFreshnessWindow overrides DefaultFreshnessWindow.
func WithFreshnessWindow(d time.Duration) ResourceCacheOption {
	return func(c *ResourceCache) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithCrawlTimeout bounds each crawl call.
func WithCrawlTimeout(d time.Duration) ResourceCacheOption {
	return func(c *ResourceCache) { c.callTimeout = d }
}

// WithResourceClock sets the clock used for freshness checks.
func WithResourceClock(now func() time.Time) ResourceCacheOption {
	return func(c *ResourceCache) { c.now = now }
}

// NewResourceCache creates a ResourceCache.
func NewResourceCache(
	resources domain.ResourceStore,
	crawler domain.Crawler,
	logger *slog.Logger,
	opts ...ResourceCacheOption,
) *ResourceCache {
	c := &ResourceCache{
		resources: resources,
		crawler:   crawler,
		window:    DefaultFreshnessWindow,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "resource_cache")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsStale reports whether res must be re-crawled at now (epoch seconds).
func (c *ResourceCache) IsStale(res domain.Resource, now int64) bool {
	if res.LastCrawledAt == nil {
		return true
	}
	return now-*res.LastCrawledAt > int64(c.window/time.Second)
}

// Context returns the judging context for res. A fresh snapshot is returned
// as stored with no network call. Otherwise the URL is crawled, the result
// persisted with lastCrawledAt = now, and the new text returned.
//
// A crawl failure returns domain.ErrCrawlFailure and leaves the stored
// snapshot untouched.
func (c *ResourceCache) Context(ctx context.Context, res domain.Resource) (string, error) {
	now := c.now().Unix()
	if !c.IsStale(res, now) {
		return res.CrawledData, nil
	}

	crawlCtx := ctx
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		crawlCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	text, err := c.crawler.Fetch(crawlCtx, res.URL)
	if err != nil {
		return "", fmt.Errorf("resource_cache: crawl %s: %w: %w", res.URL, domain.ErrCrawlFailure, err)
	}

	if err := c.resources.UpdateCrawl(ctx, res.ID, text, now); err != nil {
		return "", fmt.Errorf("resource_cache: store snapshot %s: %w", res.ID, err)
	}

	c.logger.InfoContext(ctx, "resource re-crawled",
		slog.String("resource_id", res.ID),
		slog.Int("bytes", len(text)),
	)

	if c.archive != nil {
		path := domain.SnapshotPath(res.ID, now)
		if err := c.archive.Put(ctx, path, strings.NewReader(text), "text/markdown"); err != nil {
			c.logger.WarnContext(ctx, "snapshot archive failed",
				slog.String("resource_id", res.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return text, nil
}
