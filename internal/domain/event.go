package domain

// Bus channels for round lifecycle events.
const (
	ChannelRoundFinalized  = "round:finalized"
	ChannelOutcomeRevealed = "round:outcome_revealed"
	ChannelRoundResolved   = "round:resolved"
	ChannelBetPlaced       = "round:bet_placed"
	ChannelWeightsUpdated  = "round:weights_updated"
)

// RoundEvent is the JSON payload published on the round channels.
type RoundEvent struct {
	Type      string `json:"type"`
	MarketID  string `json:"market_id"`
	RoundID   string `json:"round_id"`
	OutcomeID string `json:"outcome_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
