package judge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

type verdictEnvelope struct {
	Results []struct {
		ID          string  `json:"id"`
		IsWon       *bool   `json:"is_won"`
		IsDisputed  *bool   `json:"is_disputed"`
		Explanation *string `json:"explanation"`
	} `json:"results"`
}

type weightEnvelope struct {
	Weights []struct {
		ID     string   `json:"id"`
		Weight *float64 `json:"weight"`
	} `json:"weights"`
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func parseVerdicts(content string, asked int) ([]domain.Verdict, error) {
	var env verdictEnvelope
	dec := json.NewDecoder(strings.NewReader(stripFence(content)))
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrJudgmentParse, err)
	}
	if env.Results == nil {
		return nil, fmt.Errorf("%w: missing results", domain.ErrJudgmentParse)
	}
	if len(env.Results) > asked {
		return nil, fmt.Errorf("%w: %d results for %d outcomes", domain.ErrJudgmentParse, len(env.Results), asked)
	}

	out := make([]domain.Verdict, 0, len(env.Results))
	for i, r := range env.Results {
		if r.ID == "" || r.IsWon == nil || r.IsDisputed == nil || r.Explanation == nil {
			return nil, fmt.Errorf("%w: result %d is incomplete", domain.ErrJudgmentParse, i)
		}
		out = append(out, domain.Verdict{
			OutcomeID:   r.ID,
			IsWon:       *r.IsWon,
			IsDisputed:  *r.IsDisputed,
			Explanation: *r.Explanation,
		})
	}
	return out, nil
}

func parseWeights(content string) (map[string]float64, error) {
	var env weightEnvelope
	if err := json.Unmarshal([]byte(stripFence(content)), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrJudgmentParse, err)
	}
	if env.Weights == nil {
		return nil, fmt.Errorf("%w: missing weights", domain.ErrJudgmentParse)
	}
	out := make(map[string]float64, len(env.Weights))
	for i, w := range env.Weights {
		if w.ID == "" || w.Weight == nil {
			return nil, fmt.Errorf("%w: weight %d is incomplete", domain.ErrJudgmentParse, i)
		}
		out[w.ID] = *w.Weight
	}
	return out, nil
}
