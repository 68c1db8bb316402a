package domain

import "github.com/shopspring/decimal"

// RoundStatus is the lifecycle state of a betting round.
type RoundStatus string

const (
	RoundPending   RoundStatus = "PENDING"
	RoundFinalized RoundStatus = "FINALIZED"
	RoundResolved  RoundStatus = "RESOLVED"
)

// Round is one on-chain betting period of a market. All timestamps are epoch
// seconds.
type Round struct {
	ID                  string          `json:"id"`
	MarketID            string          `json:"market_id"`
	OnchainID           int64           `json:"onchain_id"`
	TotalBetAmount      decimal.Decimal `json:"total_bet_amount"`
	TotalPaidAmount     decimal.Decimal `json:"total_paid_amount"`
	TotalDisputedAmount decimal.Decimal `json:"total_disputed_amount"`
	Weight              float64         `json:"weight"`
	LastWeightUpdatedAt *int64          `json:"last_weight_updated_at,omitempty"`
	Status              RoundStatus     `json:"status"`
	FinalizedTimestamp  *int64          `json:"finalized_timestamp,omitempty"`
	ResolvedTimestamp   *int64          `json:"resolved_timestamp,omitempty"`
	WinningOutcomeIDs   []string        `json:"winning_outcome_ids"`
	DisputedOutcomeIDs  []string        `json:"disputed_outcome_ids"`
}

// Resolution carries the fields written when a round becomes RESOLVED.
type Resolution struct {
	ResolvedAt          int64
	WinningOutcomeIDs   []string
	DisputedOutcomeIDs  []string
	TotalDisputedAmount decimal.Decimal
}
