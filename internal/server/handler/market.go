package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

// MarketService is the market read side used by the handler.
type MarketService interface {
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
	ListMarketsByChain(ctx context.Context, chainID int64) ([]domain.Market, error)
	CountMarkets(ctx context.Context) (int64, error)
}

// MarketHandler serves market endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

type marketPage struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// ListMarkets pages through every market, or returns all markets of one
// chain when chain_id is given.
// GET /api/markets?limit=50&offset=0
// GET /api/markets?chain_id=8453
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("chain_id"); raw != "" {
		chainID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || chainID <= 0 {
			writeError(w, http.StatusBadRequest, "chain_id must be a positive integer")
			return
		}
		markets, err := h.markets.ListMarketsByChain(r.Context(), chainID)
		if err != nil {
			respondErr(w, r, h.logger, "list markets", err)
			return
		}
		writeJSON(w, http.StatusOK, marketPage{Markets: nonNil(markets), Total: int64(len(markets))})
		return
	}

	opts := parseListOpts(r)
	markets, err := h.markets.ListMarkets(r.Context(), opts)
	if err != nil {
		respondErr(w, r, h.logger, "list markets", err)
		return
	}
	total, err := h.markets.CountMarkets(r.Context())
	if err != nil {
		respondErr(w, r, h.logger, "count markets", err)
		return
	}
	writeJSON(w, http.StatusOK, marketPage{
		Markets: nonNil(markets),
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns one market.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := h.markets.GetMarket(r.Context(), pathParam(r, "id"))
	if err != nil {
		respondErr(w, r, h.logger, "get market", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func nonNil(m []domain.Market) []domain.Market {
	if m == nil {
		return []domain.Market{}
	}
	return m
}
