package claude

import (
	"testing"

	"github.com/Iron-Ham/phasegate/internal/errors"
)

func TestExtractJSONTaggedFence(t *testing.T) {
	text := "Here's my evaluation:\n```json\n{\"phase\":\"ready\",\"confidence\":0.9}\n```\nDone."

	got, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if got != `{"phase":"ready","confidence":0.9}` {
		t.Errorf("unexpected payload: %q", got)
	}
}

func TestExtractJSONGenericFence(t *testing.T) {
	text := "Result:\n```\n{\"phase\": \"discussing\"}\n```"

	got, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if got != `{"phase": "discussing"}` {
		t.Errorf("unexpected payload: %q", got)
	}
}

func TestExtractJSONGenericFenceWithLanguage(t *testing.T) {
	text := "```javascript\n{\"phase\": \"exploring\"}\n```"

	got, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if got != `{"phase": "exploring"}` {
		t.Errorf("language identifier line should be skipped, got %q", got)
	}
}

func TestExtractJSONBare(t *testing.T) {
	text := `  {"phase":"discussing","confidence":0.7}  `

	got, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if got != `{"phase":"discussing","confidence":0.7}` {
		t.Errorf("unexpected payload: %q", got)
	}
}

func TestExtractJSONNoPayload(t *testing.T) {
	for _, text := range []string{
		"I am thinking about this.",
		"",
		"``` unclosed fence",
	} {
		if got, ok := ExtractJSON(text); ok {
			t.Errorf("ExtractJSON(%q) should find nothing, got %q", text, got)
		}
	}
}

func TestExtractJSONFirstFenceWins(t *testing.T) {
	text := "```json\n{\"phase\":\"ready\"}\n```\n```json\n{\"phase\":\"exploring\"}\n```"

	got, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if got != `{"phase":"ready"}` {
		t.Errorf("only the first fence should be considered, got %q", got)
	}
}

func TestParseEvaluation(t *testing.T) {
	text := `{"phase": "ready", "confidence": 0.9, "approved_scope": "implement auth"}`

	eval, err := ParseEvaluation(text)
	if err != nil {
		t.Fatalf("ParseEvaluation failed: %v", err)
	}
	if eval.Phase != "ready" {
		t.Errorf("unexpected phase: %q", eval.Phase)
	}
	if eval.Confidence == nil || *eval.Confidence != 0.9 {
		t.Errorf("unexpected confidence: %v", eval.Confidence)
	}
	if eval.ApprovedScope == nil || *eval.ApprovedScope != "implement auth" {
		t.Errorf("unexpected scope: %v", eval.ApprovedScope)
	}
	if eval.AnomalousConfidence() {
		t.Error("0.9 is a valid confidence")
	}
}

func TestParseEvaluationWithConcerns(t *testing.T) {
	text := `{
		"phase": "discussing",
		"confidence": 0.8,
		"concerns": [
			{"type": "local_maxima", "description": "Haven't explored alternatives"}
		],
		"reason": "User hasn't confirmed yet"
	}`

	eval, err := ParseEvaluation(text)
	if err != nil {
		t.Fatalf("ParseEvaluation failed: %v", err)
	}
	if eval.Phase != "discussing" {
		t.Errorf("unexpected phase: %q", eval.Phase)
	}
	if len(eval.Concerns) != 1 {
		t.Fatalf("expected 1 concern, got %d", len(eval.Concerns))
	}
	if eval.Concerns[0].Type != "local_maxima" {
		t.Errorf("unexpected concern type: %q", eval.Concerns[0].Type)
	}
	if eval.Reason != "User hasn't confirmed yet" {
		t.Errorf("unexpected reason: %q", eval.Reason)
	}
}

func TestParseEvaluationIgnoresUnknownFields(t *testing.T) {
	text := `{"phase": "ready", "verdict": "ship it", "extra": {"nested": true}}`

	eval, err := ParseEvaluation(text)
	if err != nil {
		t.Fatalf("ParseEvaluation failed: %v", err)
	}
	if eval.Phase != "ready" {
		t.Errorf("unexpected phase: %q", eval.Phase)
	}
	if eval.Confidence != nil || eval.ApprovedScope != nil {
		t.Error("optional fields should default to absent")
	}
}

func TestParseEvaluationNoStructuredOutput(t *testing.T) {
	_, err := ParseEvaluation("Let me think about whether we're ready.")
	if !errors.Is(err, errors.ErrNoStructuredOutput) {
		t.Errorf("expected ErrNoStructuredOutput, got %v", err)
	}
}

func TestParseEvaluationMalformedPayload(t *testing.T) {
	_, err := ParseEvaluation("```json\n{\"phase\": \n```")
	if !errors.Is(err, errors.ErrNoStructuredOutput) {
		t.Errorf("malformed payload should map to ErrNoStructuredOutput, got %v", err)
	}
}

func TestAnomalousConfidence(t *testing.T) {
	low := -0.1
	high := 1.5
	ok := 1.0

	if !(&Evaluation{Confidence: &low}).AnomalousConfidence() {
		t.Error("negative confidence should be anomalous")
	}
	if !(&Evaluation{Confidence: &high}).AnomalousConfidence() {
		t.Error("confidence above 1 should be anomalous")
	}
	if (&Evaluation{Confidence: &ok}).AnomalousConfidence() {
		t.Error("confidence of exactly 1 is valid")
	}
	if (&Evaluation{}).AnomalousConfidence() {
		t.Error("absent confidence is not anomalous")
	}
}
