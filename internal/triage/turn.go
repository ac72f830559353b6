package triage

import (
	"regexp"
	"strings"
)

// TurnKind classifies one AI-generated turn for rendering.
type TurnKind string

const (
	TurnQuestion    TurnKind = "question"
	TurnFinalReport TurnKind = "final-report"
	TurnPlainText   TurnKind = "plain-text"
)

const (
	askMarker       = "[ASK]"
	diagnosisMarker = "[DIAGNOSIS]"
)

// Option is one selectable answer of a question turn. Label keeps the raw
// "A) ..." span the model produced; renderers strip the key prefix themselves.
type Option struct {
	Key   string
	Label string
}

// Turn is the structured form of one AI turn. It is derived, never stored:
// callers re-parse the latest combined analysis text on every render.
type Turn struct {
	Kind    TurnKind
	Prompt  string
	Options []Option
}

// HasOptions reports whether the turn renders as a button grid. A question
// without options falls back to free-text input.
func (t Turn) HasOptions() bool {
	return len(t.Options) > 0
}

var optionMarker = regexp.MustCompile(`[A-Z]\)`)

// ParseTurn classifies an opaque AI text blob into a renderable turn.
// It never fails: missing structure degrades to a lower-fidelity kind.
func ParseTurn(text string) Turn {
	trimmed := strings.TrimSpace(text)

	if strings.Contains(trimmed, askMarker) {
		body := strings.TrimSpace(strings.Replace(trimmed, askMarker, "", 1))
		return parseQuestion(body)
	}

	if strings.Contains(trimmed, diagnosisMarker) {
		report := strings.TrimSpace(strings.Replace(trimmed, diagnosisMarker, "", 1))
		return Turn{Kind: TurnFinalReport, Prompt: report}
	}

	return Turn{Kind: TurnPlainText, Prompt: trimmed}
}

// parseQuestion splits a question body into prompt and "X) label" options.
// Each option spans from its marker to the next marker or end of string.
func parseQuestion(body string) Turn {
	marks := optionMarker.FindAllStringIndex(body, -1)
	if len(marks) == 0 {
		return Turn{Kind: TurnQuestion, Prompt: body}
	}

	prompt := strings.TrimSpace(body[:marks[0][0]])
	options := make([]Option, 0, len(marks))
	for i, mark := range marks {
		end := len(body)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		// A key with no label after it is tolerated: the span is then just
		// "X)" and the renderer shows a bare pressable key.
		span := strings.TrimSpace(body[mark[0]:end])
		key := body[mark[0] : mark[0]+1]
		options = append(options, Option{Key: key, Label: span})
	}

	return Turn{Kind: TurnQuestion, Prompt: prompt, Options: options}
}
