package judge

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

const evaluateSystem = `You settle prediction-market outcomes. Use only the supplied context.
For every outcome listed, decide whether it happened (is_won) and whether the
context is too ambiguous or contradictory to decide (is_disputed).
Reply with a JSON object: {"results":[{"id":"...","is_won":true,"is_disputed":false,"explanation":"..."}]}.
Return at most one result per listed outcome and no other text.`

const weightSystem = `You estimate the likelihood of prediction-market outcomes from the supplied context.
Give every listed outcome a weight from 0 (impossible) to 100 (certain).
Reply with a JSON object: {"weights":[{"id":"...","weight":42}]} and no other text.`

func evaluatePrompt(contextText string, due []domain.Outcome) []chatMessage {
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nOutcomes:\n")
	for _, o := range due {
		fmt.Fprintf(&b, "- id=%s: %s", o.ID, o.Description)
		if o.ResolutionDate != nil {
			fmt.Fprintf(&b, " (resolves %s)", time.Unix(*o.ResolutionDate, 0).UTC().Format(time.RFC3339))
		}
		b.WriteByte('\n')
	}
	return []chatMessage{
		{Role: "system", Content: evaluateSystem},
		{Role: "user", Content: b.String()},
	}
}

func weightPrompt(contextText string, outcomes []domain.Outcome) []chatMessage {
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nOutcomes:\n")
	for _, o := range outcomes {
		fmt.Fprintf(&b, "- id=%s: %s\n", o.ID, o.Description)
	}
	return []chatMessage{
		{Role: "system", Content: weightSystem},
		{Role: "user", Content: b.String()},
	}
}
