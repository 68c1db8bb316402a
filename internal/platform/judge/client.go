// Package judge talks to an OpenAI-compatible chat-completions endpoint to
// evaluate round outcomes against crawled context and to score outcome
// likelihoods.
package judge

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

var (
	_ domain.Judge          = (*Client)(nil)
	_ domain.WeightAssigner = (*Client)(nil)
)

// Client is a chat-completions client.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

// Config holds the judge endpoint settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// New creates a judge client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Evaluate asks the model to judge each due outcome against contextText.
// A malformed reply, a reply with missing fields, or one with more entries
// than outcomes asked about returns domain.ErrJudgmentParse. Replies that
// cover only some outcomes are returned as-is.
func (c *Client) Evaluate(ctx context.Context, contextText string, due []domain.Outcome) ([]domain.Verdict, error) {
	if len(due) == 0 {
		return nil, nil
	}
	content, err := c.complete(ctx, evaluatePrompt(contextText, due))
	if err != nil {
		return nil, fmt.Errorf("judge: evaluate: %w", err)
	}
	verdicts, err := parseVerdicts(content, len(due))
	if err != nil {
		return nil, fmt.Errorf("judge: evaluate: %w", err)
	}
	return verdicts, nil
}

// AssignWeights asks the model for a 0-100 likelihood per outcome.
func (c *Client) AssignWeights(ctx context.Context, contextText string, outcomes []domain.Outcome) (map[string]float64, error) {
	if len(outcomes) == 0 {
		return map[string]float64{}, nil
	}
	content, err := c.complete(ctx, weightPrompt(contextText, outcomes))
	if err != nil {
		return nil, fmt.Errorf("judge: assign weights: %w", err)
	}
	weights, err := parseWeights(content)
	if err != nil {
		return nil, fmt.Errorf("judge: assign weights: %w", err)
	}
	return weights, nil
}

func (c *Client) complete(ctx context.Context, messages []chatMessage) (string, error) {
	body, err := c.doPost(ctx, "/chat/completions", chatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    c.temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion has no choices", domain.ErrJudgmentParse)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) doPost(ctx context.Context, path string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
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
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
