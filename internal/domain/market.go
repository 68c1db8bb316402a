package domain

import "time"

// Market is a prediction market deployed on a chain. OnchainID is unique per
// ChainID.
type Market struct {
	ID         string    `json:"id"`
	ChainID    int64     `json:"chain_id"`
	OnchainID  int64     `json:"onchain_id"`
	Title      string    `json:"title"`
	ResourceID string    `json:"resource_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Resource is the external source page backing a market. CrawledData is the
// cached text snapshot used as judging context; LastCrawledAt is epoch seconds.
type Resource struct {
	ID            string `json:"id"`
	MarketID      string `json:"market_id"`
	URL           string `json:"url"`
	CrawledData   string `json:"crawled_data,omitempty"`
	LastCrawledAt *int64 `json:"last_crawled_at,omitempty"`
}
