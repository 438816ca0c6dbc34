package claude

import (
	"encoding/json"
	"strings"

	"github.com/Iron-Ham/phasegate/internal/errors"
)

// Evaluation is the structured phase judgment extracted from the model's
// result text. It is transient: the combinator consumes it immediately to
// drive a transition, and only phase and approved scope survive into the
// persisted state.
type Evaluation struct {
	Phase         string    `json:"phase"`
	Confidence    *float64  `json:"confidence"`
	ApprovedScope *string   `json:"approved_scope"`
	Concerns      []Concern `json:"concerns"`
	Suggestion    string    `json:"suggestion"`
	Reason        string    `json:"reason"`
}

// Concern is a flagged issue accompanying an evaluation.
type Concern struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// AnomalousConfidence reports whether the evaluator returned a confidence
// outside [0, 1]. A soft anomaly: the caller logs it but still uses the
// evaluation.
func (e *Evaluation) AnomalousConfidence() bool {
	return e.Confidence != nil && (*e.Confidence < 0 || *e.Confidence > 1)
}

// ExtractJSON locates a JSON object embedded in free text. It tries, in
// order:
//
//  1. a fenced block explicitly tagged as JSON
//  2. the first generic fenced block, skipping a language-identifier line
//  3. the whole text, if it starts with "{" once trimmed
//
// Only the first matching fence is considered; nested or multiple fences
// are not disambiguated.
func ExtractJSON(text string) (string, bool) {
	if start := strings.Index(text, "```json"); start >= 0 {
		rest := text[start+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end]), true
		}
	}

	if start := strings.Index(text, "```"); start >= 0 {
		rest := text[start+len("```"):]
		// Skip the optional language identifier on the fence line.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end]), true
		}
	}

	if trimmed := strings.TrimSpace(text); strings.HasPrefix(trimmed, "{") {
		return trimmed, true
	}

	return "", false
}

// ParseEvaluation extracts and decodes the phase judgment from the model's
// result text. Returns errors.ErrNoStructuredOutput when no JSON payload
// can be located. Decoding is lenient: unknown fields are ignored and
// optional fields default to absent.
func ParseEvaluation(text string) (*Evaluation, error) {
	payload, ok := ExtractJSON(text)
	if !ok {
		return nil, errors.ErrNoStructuredOutput
	}

	var eval Evaluation
	if err := json.Unmarshal([]byte(payload), &eval); err != nil {
		return nil, errors.Wrapf(errors.ErrNoStructuredOutput, "decode evaluation: %v", err)
	}
	return &eval, nil
}
