// Package crawl fetches the text of a resource URL for the judge.
package crawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

var _ domain.Crawler = (*ScrapeClient)(nil)

// ScrapeClient is the REST client for a hosted scrape service that renders a
// page and returns it as markdown.
type ScrapeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewScrapeClient creates a scrape client.
//
// baseURL is the service root, e.g. "https://api.firecrawl.dev".
func NewScrapeClient(baseURL, apiKey string) *ScrapeClient {
	return &ScrapeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
}

// Fetch scrapes url and returns its markdown rendering.
func (c *ScrapeClient) Fetch(ctx context.Context, url string) (string, error) {
	body, err := c.doPost(ctx, "/v1/scrape", scrapeRequest{URL: url, Formats: []string{"markdown"}})
	if err != nil {
		return "", fmt.Errorf("crawl/scrape: fetch %s: %w", url, err)
	}

	var resp scrapeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("crawl/scrape: decode response: %w", err)
	}
	if !resp.Success {
		return "", fmt.Errorf("crawl/scrape: fetch %s: %s", url, resp.Error)
	}
	if strings.TrimSpace(resp.Data.Markdown) == "" {
		return "", fmt.Errorf("crawl/scrape: fetch %s: empty document", url)
	}
	return resp.Data.Markdown, nil
}

func (c *ScrapeClient) doPost(ctx context.Context, path string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
