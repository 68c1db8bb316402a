package s3blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

// maxSnapshotBytes bounds how much of one archived crawl is read back.
const maxSnapshotBytes = 8 << 20

// Snapshot is one archived crawl of a resource.
type Snapshot struct {
	ResourceID string `json:"resource_id"`
	CrawledAt  int64  `json:"crawled_at"`
	Size       int64  `json:"size"`
	Path       string `json:"path"`
}

// SnapshotArchive reads back the crawls written by the resource cache.
type SnapshotArchive struct {
	reader domain.BlobReader
}

// NewSnapshotArchive creates a SnapshotArchive over reader.
func NewSnapshotArchive(reader domain.BlobReader) *SnapshotArchive {
	return &SnapshotArchive{reader: reader}
}

// List returns a resource's archived crawls, newest first.
func (a *SnapshotArchive) List(ctx context.Context, resourceID string) ([]Snapshot, error) {
	infos, err := a.reader.List(ctx, domain.SnapshotPrefix(resourceID))
	if err != nil {
		return nil, fmt.Errorf("s3blob: list snapshots of %s: %w", resourceID, err)
	}

	snaps := make([]Snapshot, 0, len(infos))
	for _, info := range infos {
		ts, ok := snapshotTime(info.Path)
		if !ok {
			continue
		}
		snaps = append(snaps, Snapshot{ResourceID: resourceID, CrawledAt: ts, Size: info.Size, Path: info.Path})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CrawledAt > snaps[j].CrawledAt })
	return snaps, nil
}

// Get returns the text of the crawl of resourceID taken at crawledAt.
func (a *SnapshotArchive) Get(ctx context.Context, resourceID string, crawledAt int64) (string, error) {
	p := domain.SnapshotPath(resourceID, crawledAt)
	rc, err := a.reader.Get(ctx, p)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxSnapshotBytes))
	if err != nil {
		return "", fmt.Errorf("s3blob: read snapshot %s: %w", p, err)
	}
	return string(data), nil
}

func snapshotTime(p string) (int64, bool) {
	base := path.Base(p)
	if !strings.HasSuffix(base, ".md") {
		return 0, false
	}
	ts, err := strconv.ParseInt(strings.TrimSuffix(base, ".md"), 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
