package domain

import "context"

// Crawler fetches a source page and returns its text as markdown.
type Crawler interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Judge decides due outcomes against the resource context. The returned
// slice may be shorter than due; it never references outcomes outside due.
type Judge interface {
	Evaluate(ctx context.Context, contextText string, due []Outcome) ([]Verdict, error)
}

// WeightAssigner scores every outcome of a live round with a weight in
// [0,100], keyed by outcome ID.
type WeightAssigner interface {
	AssignWeights(ctx context.Context, contextText string, outcomes []Outcome) (map[string]float64, error)
}

// OnchainReader returns the live round number of a market.
type OnchainReader interface {
	CurrentRound(ctx context.Context, marketOnchainID int64) (int64, error)
}
