// Package gate composes the tool classifier, the phase state machine, the
// tracker signal, and the most recent evaluation into a single allow/block
// verdict for one incoming tool-use request.
//
// The combinator is the only place state mutates during gating: override
// consumption and evaluation-driven phase transitions happen here, never as
// a side effect of classification or parsing. It reconciles independently
// failing external signals and fails closed under ambiguity.
package gate

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/phasegate/internal/claude"
	"github.com/Iron-Ham/phasegate/internal/errors"
	"github.com/Iron-Ham/phasegate/internal/history"
	"github.com/Iron-Ham/phasegate/internal/logging"
	"github.com/Iron-Ham/phasegate/internal/state"
	"github.com/Iron-Ham/phasegate/internal/tools"
	"github.com/Iron-Ham/phasegate/internal/tracker"
)

// GenericBlockMessage is surfaced when no evaluation is available, the
// evaluation could not be parsed, or the model timed out. A missing
// judgment always resolves to a block, never an implicit allow.
const GenericBlockMessage = "Could not determine the collaboration phase; blocking mutating actions until the next evaluation."

// Decision is the outcome of gating one tool use.
type Decision int

const (
	// Allow lets the action proceed.
	Allow Decision = iota
	// Block stops the action and surfaces feedback to the agent.
	Block
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "block"
}

// Verdict is the gate's answer for one tool-use request.
type Verdict struct {
	Decision Decision
	// Message carries block feedback, or an advisory note on an allowed
	// action (e.g. multiple tasks in progress).
	Message string
	// Phase is the phase the decision was made under.
	Phase state.Phase
	// OverrideConsumed reports that this allow spent the pending override.
	OverrideConsumed bool
}

// TaskSignaler supplies the tracker-derived read-only constraint.
// Production wiring uses *tracker.Adapter; tests inject fakes.
type TaskSignaler interface {
	Evaluate(ctx context.Context) (*tracker.Signal, error)
}

// Advisor supplies the most recent evaluation record for block feedback.
// Production wiring uses *history.Log; tests inject fakes.
type Advisor interface {
	LastEvaluation() (history.Record, bool)
}

// Gate is the decision combinator.
type Gate struct {
	registry *tools.Registry
	states   *state.Manager
	tasks    TaskSignaler
	advisor  Advisor
	log      *history.Log
	logger   *logging.Logger
}

// New creates a Gate. tasks and advisor may be nil, in which case the
// tracker imposes no constraint and block messages fall back to the
// generic text. log may be nil to skip decision recording.
func New(registry *tools.Registry, states *state.Manager, tasks TaskSignaler, advisor Advisor, log *history.Log, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Gate{
		registry: registry,
		states:   states,
		tasks:    tasks,
		advisor:  advisor,
		log:      log,
		logger:   logger,
	}
}

// Check computes the verdict for one tool-use request and applies any
// resulting state mutation (override consumption). The rule order is fixed:
//
//  1. gate disabled: allow
//  2. read-only tool: allow
//  3. tracker says no task claimed: block — a hard veto that beats both
//     Ready phase and a pending override
//  4. pending override: allow and consume it
//  5. Ready phase: allow
//  6. otherwise: block, with the latest evaluation's advice
//
// A corrupt state record is returned as an error wrapping
// errors.ErrStateCorrupt; callers surface it distinctly so the user can
// reset rather than unknowingly losing an approved scope.
func (g *Gate) Check(ctx context.Context, toolName string) (*Verdict, error) {
	logger := g.logger.WithTool(toolName)

	// Read-only tools never gate and never mutate state; skip the state
	// load entirely.
	if !g.registry.RequiresGating(toolName) {
		logger.Debug("read tool allowed", "class", g.registry.Classify(toolName).String())
		return &Verdict{Decision: Allow}, nil
	}

	// The tracker signal is independent of gate state; fetch it before
	// taking the state lock. Tracker failures degrade to "no constraint".
	signal := g.taskSignal(ctx, logger)

	var verdict *Verdict
	_, err := g.states.Update(func(s *state.State) {
		verdict = g.decide(s, signal)
	})
	if err != nil {
		return nil, err
	}

	logger.WithPhase(string(verdict.Phase)).Info("gate decision",
		"decision", verdict.Decision.String(),
		"override_consumed", verdict.OverrideConsumed,
	)
	g.record(history.Record{
		Kind:     history.KindGate,
		Tool:     toolName,
		Decision: verdict.Decision.String(),
		Phase:    string(verdict.Phase),
		Reason:   verdict.Message,
	})
	return verdict, nil
}

// taskSignal fetches the tracker constraint, degrading failures to "no
// constraint" with a diagnostic.
func (g *Gate) taskSignal(ctx context.Context, logger *logging.Logger) *tracker.Signal {
	if g.tasks == nil {
		return &tracker.Signal{}
	}
	signal, err := g.tasks.Evaluate(ctx)
	if err != nil {
		logger.Warn("tracker signal unavailable, imposing no constraint", "error", err.Error())
		return &tracker.Signal{}
	}
	return signal
}

// decide applies the rule order against a loaded state, mutating it only
// to consume a pending override. Runs under the state lock.
func (g *Gate) decide(s *state.State, signal *tracker.Signal) *Verdict {
	if s.Disabled {
		return &Verdict{Decision: Allow, Phase: s.Phase}
	}

	if signal.ReadOnly {
		return &Verdict{Decision: Block, Message: signal.Feedback, Phase: s.Phase}
	}

	if s.PendingOverride != nil {
		s.ConsumeOverride()
		return &Verdict{
			Decision:         Allow,
			Message:          signal.Feedback,
			Phase:            s.Phase,
			OverrideConsumed: true,
		}
	}

	if s.Phase == state.PhaseReady {
		return &Verdict{Decision: Allow, Message: signal.Feedback, Phase: s.Phase}
	}

	return &Verdict{Decision: Block, Message: g.blockMessage(s), Phase: s.Phase}
}

// blockMessage builds the feedback for a phase block from the most recent
// evaluation's suggestion and reason, falling back to generic text.
func (g *Gate) blockMessage(s *state.State) string {
	msg := fmt.Sprintf("Mutating actions are blocked in the %s phase.", s.Phase)

	if g.advisor != nil {
		if rec, ok := g.advisor.LastEvaluation(); ok {
			if rec.Suggestion != "" {
				return fmt.Sprintf("%s %s", msg, rec.Suggestion)
			}
			if rec.Reason != "" {
				return fmt.Sprintf("%s %s", msg, rec.Reason)
			}
		}
	}
	if s.LastEvaluated == nil {
		msg = GenericBlockMessage
	}
	return fmt.Sprintf("%s Reach agreement on a plan, or override with `phasegate override <reason>`.", msg)
}

// ApplyEvaluation drives a phase transition from a fresh evaluation. The
// transition rewrites since and last_evaluated together; a transition away
// from Ready also discards a stale override. The evaluation is recorded in
// the decision log for carryover and block feedback.
func (g *Gate) ApplyEvaluation(eval *claude.Evaluation) (*state.State, error) {
	phase, err := state.ParsePhase(eval.Phase)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrNoStructuredOutput, "%v", err)
	}

	if eval.AnomalousConfidence() {
		g.logger.Warn("evaluation confidence out of range", "confidence", *eval.Confidence)
	}

	updated, err := g.states.Update(func(s *state.State) {
		s.TransitionTo(phase, eval.ApprovedScope)
	})
	if err != nil {
		return nil, err
	}

	rec := history.Record{
		Kind:       history.KindEvaluation,
		Phase:      string(phase),
		Reason:     eval.Reason,
		Suggestion: eval.Suggestion,
		Confidence: eval.Confidence,
	}
	g.record(rec)
	g.logger.WithPhase(string(phase)).Info("phase evaluated", "reason", eval.Reason)
	return updated, nil
}

// record appends to the decision log, dropping failures with a diagnostic:
// history is advisory and must never be on the verdict's critical path.
func (g *Gate) record(rec history.Record) {
	if g.log == nil {
		return
	}
	if err := g.log.Append(rec); err != nil {
		g.logger.Warn("failed to record decision", "error", err.Error())
	}
}
