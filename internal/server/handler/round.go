package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/roundoracle/internal/domain"
	"github.com/alanyoungcy/roundoracle/internal/payout"
)

// RoundService is the read side of the round lifecycle used by the handler.
type RoundService interface {
	GetRound(ctx context.Context, marketID string, roundNumber int64) (domain.Round, error)
	OutcomesForRound(ctx context.Context, marketID string, roundNumber int64) ([]domain.Outcome, error)
	ComputeOdds(outcomes []domain.Outcome, chosenOutcomeID string, stake decimal.Decimal) (payout.Quote, error)
}

// RoundHandler serves round, outcome and odds endpoints.
type RoundHandler struct {
	rounds RoundService
	logger *slog.Logger
}

// NewRoundHandler creates a RoundHandler.
func NewRoundHandler(rounds RoundService, logger *slog.Logger) *RoundHandler {
	return &RoundHandler{rounds: rounds, logger: logger}
}

type listOutcomesResponse struct {
	Outcomes []domain.Outcome `json:"outcomes"`
}

// GetRound returns a market's round by on-chain number.
// GET /api/markets/{id}/rounds/{round}
func (h *RoundHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	marketID, roundNumber, ok := roundParams(w, r)
	if !ok {
		return
	}

	rd, err := h.rounds.GetRound(r.Context(), marketID, roundNumber)
	if err != nil {
		h.fail(w, r, "get round", err)
		return
	}
	writeJSON(w, http.StatusOK, rd)
}

// ListOutcomes returns the outcome pool of a round.
// GET /api/markets/{id}/rounds/{round}/outcomes
func (h *RoundHandler) ListOutcomes(w http.ResponseWriter, r *http.Request) {
	marketID, roundNumber, ok := roundParams(w, r)
	if !ok {
		return
	}

	outcomes, err := h.rounds.OutcomesForRound(r.Context(), marketID, roundNumber)
	if err != nil {
		h.fail(w, r, "list outcomes", err)
		return
	}
	if outcomes == nil {
		outcomes = []domain.Outcome{}
	}
	writeJSON(w, http.StatusOK, listOutcomesResponse{Outcomes: outcomes})
}

// GetOdds quotes a stake on one outcome against the current pool. amount
// defaults to 1. When the weighted shares are all zero the response is
// {"available":false}.
// GET /api/markets/{id}/rounds/{round}/odds?outcome=...&amount=...
func (h *RoundHandler) GetOdds(w http.ResponseWriter, r *http.Request) {
	marketID, roundNumber, ok := roundParams(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	outcomeID := q.Get("outcome")
	if outcomeID == "" {
		writeError(w, http.StatusBadRequest, "outcome query parameter required")
		return
	}
	amount := decimal.NewFromInt(1)
	if v := q.Get("amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			writeError(w, http.StatusBadRequest, "amount must be a non-negative decimal")
			return
		}
		amount = d
	}

	outcomes, err := h.rounds.OutcomesForRound(r.Context(), marketID, roundNumber)
	if err != nil {
		h.fail(w, r, "list outcomes", err)
		return
	}
	quote, err := h.rounds.ComputeOdds(outcomes, outcomeID, amount)
	if err != nil {
		h.fail(w, r, "compute odds", err)
		return
	}
	if !quote.Available {
		writeJSON(w, http.StatusOK, map[string]bool{"available": false})
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *RoundHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	respondErr(w, r, h.logger, op, err)
}
