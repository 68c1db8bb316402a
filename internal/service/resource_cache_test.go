package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

const cacheNow = int64(1_700_000_000)

func newCacheFixture(t *testing.T, lastCrawled *int64) (*memStore, *fakeCrawler, *ResourceCache) {
	t.Helper()
	store := newMemStore()
	store.resources["res-1"] = domain.Resource{
		ID:            "res-1",
		MarketID:      "m-1",
		URL:           "https://example.com/source",
		CrawledData:   "old snapshot",
		LastCrawledAt: lastCrawled,
	}
	crawler := &fakeCrawler{text: "new snapshot"}
	cache := NewResourceCache(memResources{store}, crawler, discardLogger(),
		WithResourceClock(fixedClock(cacheNow)))
	return store, crawler, cache
}

func TestResourceCacheFreshSnapshot(t *testing.T) {
	store, crawler, cache := newCacheFixture(t, int64Ptr(cacheNow-100))

	text, err := cache.Context(context.Background(), store.resources["res-1"])
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if text != "old snapshot" {
		t.Errorf("expected cached text, got %q", text)
	}
	if crawler.calls != 0 {
		t.Errorf("expected no crawl, got %d", crawler.calls)
	}
	if store.crawlWrites != 0 {
		t.Errorf("expected no store write, got %d", store.crawlWrites)
	}
}

func TestResourceCacheStaleSnapshot(t *testing.T) {
	tests := []struct {
		name        string
		lastCrawled *int64
	}{
		{"never crawled", nil},
		{"older than a day", int64Ptr(cacheNow - 90000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, crawler, cache := newCacheFixture(t, tt.lastCrawled)

			text, err := cache.Context(context.Background(), store.resources["res-1"])
			if err != nil {
				t.Fatalf("Context: %v", err)
			}
			if text != "new snapshot" {
				t.Errorf("expected fresh text, got %q", text)
			}
			if crawler.calls != 1 {
				t.Errorf("expected exactly one crawl, got %d", crawler.calls)
			}
			if store.crawlWrites != 1 {
				t.Errorf("expected one store write, got %d", store.crawlWrites)
			}
			res := store.resources["res-1"]
			if res.CrawledData != "new snapshot" || res.LastCrawledAt == nil || *res.LastCrawledAt != cacheNow {
				t.Errorf("resource not updated: %+v", res)
			}
		})
	}
}

func TestResourceCacheWindowBoundary(t *testing.T) {
	_, _, cache := newCacheFixture(t, nil)
	window := int64(DefaultFreshnessWindow.Seconds())

	if cache.IsStale(domain.Resource{LastCrawledAt: int64Ptr(cacheNow - window)}, cacheNow) {
		t.Error("snapshot exactly one window old should still be fresh")
	}
	if !cache.IsStale(domain.Resource{LastCrawledAt: int64Ptr(cacheNow - window - 1)}, cacheNow) {
		t.Error("snapshot older than the window should be stale")
	}
}

func TestResourceCacheCrawlFailureKeepsSnapshot(t *testing.T) {
	store, crawler, cache := newCacheFixture(t, int64Ptr(cacheNow-90000))
	crawler.err = errors.New("connection refused")

	_, err := cache.Context(context.Background(), store.resources["res-1"])
	if !errors.Is(err, domain.ErrCrawlFailure) {
		t.Fatalf("expected ErrCrawlFailure, got %v", err)
	}
	res := store.resources["res-1"]
	if res.CrawledData != "old snapshot" || *res.LastCrawledAt != cacheNow-90000 {
		t.Errorf("cached resource modified on failure: %+v", res)
	}
	if store.crawlWrites != 0 {
		t.Errorf("expected no store write, got %d", store.crawlWrites)
	}
}

type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *memBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(data); err != nil {
		return err
	}
	if b.objects == nil {
		b.objects = map[string][]byte{}
	}
	b.objects[path] = buf.Bytes()
	return nil
}

func TestResourceCacheArchivesFreshSnapshot(t *testing.T) {
	store := newMemStore()
	store.resources["res-1"] = domain.Resource{ID: "res-1", URL: "https://example.com"}
	blob := &memBlob{}
	cache := NewResourceCache(memResources{store}, &fakeCrawler{text: "body"}, discardLogger(),
		WithResourceClock(fixedClock(cacheNow)),
		WithSnapshotArchive(blob))

	if _, err := cache.Context(context.Background(), store.resources["res-1"]); err != nil {
		t.Fatalf("Context: %v", err)
	}
	got, ok := blob.objects["resources/res-1/1700000000.md"]
	if !ok || string(got) != "body" {
		t.Errorf("snapshot not archived: %v", blob.objects)
	}
}
