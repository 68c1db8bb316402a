package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/roundoracle/internal/domain"
	"github.com/alanyoungcy/roundoracle/internal/payout"
	"github.com/alanyoungcy/roundoracle/internal/service"
)

// BetService defines the methods that the position handler requires.
type BetService interface {
	PlaceBet(ctx context.Context, req service.PlaceBetRequest) (domain.Position, payout.Quote, error)
	ListPositions(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Position, error)
}

// PositionHandler serves bet placement and position listing.
type PositionHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and logger.
func NewPositionHandler(bets BetService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		bets:   bets,
		logger: logger,
	}
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

type placeBetRequest struct {
	UserID    string          `json:"user_id"`
	OutcomeID string          `json:"outcome_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type placeBetResponse struct {
	Position domain.Position `json:"position"`
	Quote    payout.Quote    `json:"quote"`
}

// PlaceBet stakes an amount on an outcome of a live round.
// POST /api/markets/{id}/rounds/{round}/bets
func (h *PositionHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	marketID, roundNumber, ok := roundParams(w, r)
	if !ok {
		return
	}

	var body placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.UserID == "" || body.OutcomeID == "" {
		writeError(w, http.StatusBadRequest, "user_id and outcome_id are required")
		return
	}

	pos, quote, err := h.bets.PlaceBet(r.Context(), service.PlaceBetRequest{
		UserID:      body.UserID,
		MarketID:    marketID,
		RoundNumber: roundNumber,
		OutcomeID:   body.OutcomeID,
		Amount:      body.Amount,
	})
	if err != nil {
		if status, msg, ok := statusFor(err); ok {
			writeError(w, status, msg)
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: place bet failed",
			slog.String("market_id", marketID),
			slog.Int64("round", roundNumber),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to place bet")
		return
	}

	writeJSON(w, http.StatusCreated, placeBetResponse{Position: pos, Quote: quote})
}

// ListPositions returns a user's positions, newest first.
// GET /api/positions?user=...&limit=50&offset=0
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "user query parameter required")
		return
	}

	positions, err := h.bets.ListPositions(r.Context(), user, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("user", user),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	if positions == nil {
		positions = []domain.Position{}
	}

	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}
