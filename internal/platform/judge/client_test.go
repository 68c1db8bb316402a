package judge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "judge-model" || len(req.Messages) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dueOutcomes(ids ...string) []domain.Outcome {
	out := make([]domain.Outcome, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Outcome{ID: id, Description: "outcome " + id})
	}
	return out
}

func TestEvaluate(t *testing.T) {
	content := "```json\n" + `{"results":[
		{"id":"o-1","is_won":true,"is_disputed":false,"explanation":"scored"},
		{"id":"o-2","is_won":false,"is_disputed":true,"explanation":"unclear"}]}` + "\n```"
	srv := completionServer(t, content)
	c := New(Config{BaseURL: srv.URL + "/v1", Model: "judge-model"})

	verdicts, err := c.Evaluate(context.Background(), "match report", dueOutcomes("o-1", "o-2"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(verdicts))
	}
	if !verdicts[0].IsWon || verdicts[0].IsDisputed || verdicts[0].Explanation != "scored" {
		t.Errorf("unexpected verdict %+v", verdicts[0])
	}
	if verdicts[1].IsWon || !verdicts[1].IsDisputed {
		t.Errorf("unexpected verdict %+v", verdicts[1])
	}
}

func TestEvaluateParseFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "The first outcome won."},
		{name: "missing results", content: `{"verdicts":[]}`},
		{name: "missing is_won", content: `{"results":[{"id":"o-1","is_disputed":false,"explanation":"x"}]}`},
		{name: "missing explanation", content: `{"results":[{"id":"o-1","is_won":true,"is_disputed":false}]}`},
		{name: "more results than asked", content: `{"results":[
			{"id":"o-1","is_won":true,"is_disputed":false,"explanation":"a"},
			{"id":"o-2","is_won":false,"is_disputed":false,"explanation":"b"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := completionServer(t, tt.content)
			c := New(Config{BaseURL: srv.URL + "/v1", Model: "judge-model"})
			_, err := c.Evaluate(context.Background(), "ctx", dueOutcomes("o-1"))
			if !errors.Is(err, domain.ErrJudgmentParse) {
				t.Fatalf("expected ErrJudgmentParse, got %v", err)
			}
		})
	}
}

func TestEvaluateShortReplyIsAccepted(t *testing.T) {
	srv := completionServer(t, `{"results":[{"id":"o-2","is_won":true,"is_disputed":false,"explanation":"ok"}]}`)
	c := New(Config{BaseURL: srv.URL + "/v1", Model: "judge-model"})
	verdicts, err := c.Evaluate(context.Background(), "ctx", dueOutcomes("o-1", "o-2", "o-3"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(verdicts) != 1 || verdicts[0].OutcomeID != "o-2" {
		t.Errorf("unexpected verdicts %+v", verdicts)
	}
}

func TestEvaluateNothingDue(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:0", Model: "judge-model"})
	verdicts, err := c.Evaluate(context.Background(), "ctx", nil)
	if err != nil || verdicts != nil {
		t.Errorf("expected no call, got %v %v", verdicts, err)
	}
}

func TestAssignWeights(t *testing.T) {
	srv := completionServer(t, `{"weights":[{"id":"o-1","weight":72.5},{"id":"o-2","weight":10}]}`)
	c := New(Config{BaseURL: srv.URL + "/v1", Model: "judge-model"})
	weights, err := c.AssignWeights(context.Background(), "ctx", dueOutcomes("o-1", "o-2"))
	if err != nil {
		t.Fatalf("AssignWeights: %v", err)
	}
	if weights["o-1"] != 72.5 || weights["o-2"] != 10 {
		t.Errorf("unexpected weights %v", weights)
	}

	bad := completionServer(t, `{"weights":[{"id":"o-1"}]}`)
	_, err = New(Config{BaseURL: bad.URL + "/v1", Model: "judge-model"}).AssignWeights(context.Background(), "ctx", dueOutcomes("o-1"))
	if !errors.Is(err, domain.ErrJudgmentParse) {
		t.Errorf("expected ErrJudgmentParse, got %v", err)
	}
}

func TestCompletionHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Errorf("missing bearer token")
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", Model: "judge-model"})
	_, err := c.Evaluate(context.Background(), "ctx", dueOutcomes("o-1"))
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if errors.Is(err, domain.ErrJudgmentParse) {
		t.Errorf("transport failure reported as parse failure")
	}
}
