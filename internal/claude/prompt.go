package claude

import (
	"fmt"
	"strings"
)

// systemPrompt instructs the evaluator model to judge the collaboration
// phase and respond with a structured JSON object that ParseEvaluation can
// consume.
const systemPrompt = `You are a metacognitive advisor observing a pairing session between a
developer and an AI coding agent. Your only job is to judge which phase the
collaboration is in, based on the latest user message and recent context.

Phases:
- "exploring": the user is investigating, asking questions, or gathering
  context. No plan has been discussed.
- "discussing": an approach is being weighed. The user has not clearly
  committed to a plan.
- "ready": the user has clearly approved a specific plan or explicitly asked
  for the change to be made.

Respond with ONLY a JSON object, no prose:

{
  "phase": "exploring" | "discussing" | "ready",
  "confidence": 0.0-1.0,
  "approved_scope": "what was approved, when phase is ready",
  "concerns": [{"type": "...", "description": "..."}],
  "suggestion": "what the agent should do next",
  "reason": "one-line justification"
}

Be conservative: when in doubt between two phases, pick the earlier one.
Only report "ready" when the user's approval is explicit and current.`

// SystemPrompt returns the evaluator system prompt.
func SystemPrompt() string {
	return systemPrompt
}

// EvalRequest carries the material folded into one evaluation message.
type EvalRequest struct {
	// UserMessage is the latest user message from the transcript.
	UserMessage string
	// RecentMessages holds messages inside the carryover window, oldest
	// first, excluding UserMessage.
	RecentMessages []string
	// CurrentPhase names the phase recorded in state.
	CurrentPhase string
	// ApprovedScope is the scope recorded in state, if any.
	ApprovedScope string
	// RecentDecisions summarizes recent gate decisions, oldest first.
	RecentDecisions []string
}

// BuildMessage renders the evaluation message sent to the model.
func BuildMessage(req EvalRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current phase: %s\n", req.CurrentPhase)
	if req.ApprovedScope != "" {
		fmt.Fprintf(&b, "Approved scope: %s\n", req.ApprovedScope)
	}

	if len(req.RecentDecisions) > 0 {
		b.WriteString("\nRecent gate decisions:\n")
		for _, d := range req.RecentDecisions {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}

	if len(req.RecentMessages) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, m := range req.RecentMessages {
			fmt.Fprintf(&b, "> %s\n", m)
		}
	}

	fmt.Fprintf(&b, "\nLatest user message:\n%s\n", req.UserMessage)
	b.WriteString("\nJudge the phase now.")

	return b.String()
}
