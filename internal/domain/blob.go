package domain

import (
	"context"
	"fmt"
	"io"
	"time"
)

// BlobInfo describes an object in blob storage.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader reads and lists objects in blob storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// SnapshotPrefix is the blob prefix holding a resource's archived crawls.
func SnapshotPrefix(resourceID string) string {
	return "resources/" + resourceID + "/"
}

// SnapshotPath is the blob path of the crawl of resourceID taken at crawledAt.
func SnapshotPath(resourceID string, crawledAt int64) string {
	return fmt.Sprintf("%s%d.md", SnapshotPrefix(resourceID), crawledAt)
}
