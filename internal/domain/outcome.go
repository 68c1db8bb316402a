package domain

import "github.com/shopspring/decimal"

// SettlementStatus is shared by outcomes and the positions placed on them.
type SettlementStatus string

const (
	StatusPending   SettlementStatus = "PENDING"
	StatusWin       SettlementStatus = "WIN"
	StatusLose      SettlementStatus = "LOSE"
	StatusCancelled SettlementStatus = "CANCELLED"
)

// Outcome is a proposed resolution candidate within a round.
type Outcome struct {
	ID                string           `json:"id"`
	RoundID           string           `json:"round_id"`
	MarketID          string           `json:"market_id"`
	OnchainID         int64            `json:"onchain_id"`
	Description       string           `json:"description"`
	TotalBetAmount    decimal.Decimal  `json:"total_bet_amount"`
	Weight            *float64         `json:"weight,omitempty"`
	ResolutionDate    *int64           `json:"resolution_date,omitempty"`
	Status            SettlementStatus `json:"status"`
	IsWon             bool             `json:"is_won"`
	IsDisputed        bool             `json:"is_disputed"`
	Result            string           `json:"result,omitempty"`
	RevealedTimestamp *int64           `json:"revealed_timestamp,omitempty"`
}

// Revealed reports whether a verdict has been written for the outcome.
func (o Outcome) Revealed() bool {
	return o.RevealedTimestamp != nil
}

// Verdict is the judge's decision for a single outcome.
type Verdict struct {
	OutcomeID   string `json:"outcome_id"`
	IsWon       bool   `json:"is_won"`
	IsDisputed  bool   `json:"is_disputed"`
	Explanation string `json:"explanation"`
}
