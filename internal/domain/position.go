package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a user's stake on an outcome. MarketID and RoundID are
// denormalized for querying.
type Position struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	MarketID         string           `json:"market_id"`
	RoundID          string           `json:"round_id"`
	OutcomeID        string           `json:"outcome_id"`
	BetAmount        decimal.Decimal  `json:"bet_amount"`
	PredictedOutcome int64            `json:"predicted_outcome"`
	Status           SettlementStatus `json:"status"`
	IsClaimed        bool             `json:"is_claimed"`
	CreatedAt        time.Time        `json:"created_at"`
}
