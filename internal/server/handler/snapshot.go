package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	s3blob "github.com/alanyoungcy/roundoracle/internal/blob/s3"
	"github.com/alanyoungcy/roundoracle/internal/domain"
)

// SnapshotArchive reads archived crawls of a resource.
type SnapshotArchive interface {
	List(ctx context.Context, resourceID string) ([]s3blob.Snapshot, error)
	Get(ctx context.Context, resourceID string, crawledAt int64) (string, error)
}

// ResourceLookup finds the resource attached to a market.
type ResourceLookup interface {
	GetByMarket(ctx context.Context, marketID string) (domain.Resource, error)
}

// SnapshotHandler serves the crawl snapshot archive of a market's resource.
type SnapshotHandler struct {
	resources ResourceLookup
	archive   SnapshotArchive
	logger    *slog.Logger
}

// NewSnapshotHandler creates a SnapshotHandler.
func NewSnapshotHandler(resources ResourceLookup, archive SnapshotArchive, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{resources: resources, archive: archive, logger: logger}
}

type listSnapshotsResponse struct {
	ResourceID string            `json:"resource_id"`
	Snapshots  []s3blob.Snapshot `json:"snapshots"`
}

// ListSnapshots returns the archived crawls of a market's resource, newest
// first.
// GET /api/markets/{id}/snapshots
func (h *SnapshotHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	snaps, err := h.archive.List(r.Context(), res.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list snapshots failed",
			slog.String("resource_id", res.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	if snaps == nil {
		snaps = []s3blob.Snapshot{}
	}
	writeJSON(w, http.StatusOK, listSnapshotsResponse{ResourceID: res.ID, Snapshots: snaps})
}

// GetSnapshot returns one archived crawl as markdown.
// GET /api/markets/{id}/snapshots/{ts}
func (h *SnapshotHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	ts, err := strconv.ParseInt(pathParam(r, "ts"), 10, 64)
	if err != nil || ts <= 0 {
		writeError(w, http.StatusBadRequest, "ts must be a unix timestamp")
		return
	}
	res, ok := h.resource(w, r)
	if !ok {
		return
	}

	text, err := h.archive.Get(r.Context(), res.ID, ts)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "snapshot not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get snapshot failed",
			slog.String("resource_id", res.ID),
			slog.Int64("ts", ts),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get snapshot")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}

func (h *SnapshotHandler) resource(w http.ResponseWriter, r *http.Request) (domain.Resource, bool) {
	marketID := pathParam(r, "id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return domain.Resource{}, false
	}
	res, err := h.resources.GetByMarket(r.Context(), marketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "resource not found")
			return domain.Resource{}, false
		}
		h.logger.ErrorContext(r.Context(), "handler: get resource failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get resource")
		return domain.Resource{}, false
	}
	return res, true
}
