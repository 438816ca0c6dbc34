// Package state owns the durable gate decision state: the collaboration
// phase, a pending one-shot override, the disabled escape hatch, and the
// timestamps that track when the phase last changed. The state record is the
// only resource shared across hook invocations; Manager guards it with an
// exclusive file lock so overlapping processes cannot lose updates.
package state

import (
	"fmt"
	"strings"
	"time"
)

// nowFunc returns the current time. Overridden in tests.
var nowFunc = time.Now

// Phase is the inferred stage of a collaborative session. Ready is the only
// phase permitting unconstrained writes.
type Phase string

const (
	PhaseExploring  Phase = "exploring"
	PhaseDiscussing Phase = "discussing"
	PhaseReady      Phase = "ready"
)

// ParsePhase converts a phase string (as produced by the evaluator) into a
// Phase. Matching is case-insensitive.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(PhaseExploring):
		return PhaseExploring, nil
	case string(PhaseDiscussing):
		return PhaseDiscussing, nil
	case string(PhaseReady):
		return PhaseReady, nil
	default:
		return "", fmt.Errorf("unknown phase %q", s)
	}
}

// Valid reports whether p is one of the three known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseExploring, PhaseDiscussing, PhaseReady:
		return true
	}
	return false
}

// PendingOverride is a one-shot permission granted by explicit user action.
// It allows a single otherwise-blocked action to proceed, independent of
// phase, and is consumed by that action's processing.
type PendingOverride struct {
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the single durable record shared across hook invocations.
type State struct {
	Phase           Phase            `json:"phase"`
	Since           time.Time        `json:"since"`
	ApprovedScope   *string          `json:"approved_scope"`
	LastEvaluated   *time.Time       `json:"last_evaluated"`
	PendingOverride *PendingOverride `json:"pending_override"`
	Disabled        bool             `json:"disabled"`
}

// Default returns a fresh state: Exploring as of now, nothing approved.
func Default() *State {
	return &State{
		Phase: PhaseExploring,
		Since: nowFunc(),
	}
}

// WithPhase returns a fresh state in the given phase.
func WithPhase(phase Phase) *State {
	s := Default()
	s.Phase = phase
	return s
}

// AllowsWrite reports whether a mutating action may proceed: the gate is
// disabled, the phase is Ready, or a one-shot override is pending. Pure
// query, no mutation.
func (s *State) AllowsWrite() bool {
	if s.Disabled {
		return true
	}
	return s.Phase == PhaseReady || s.PendingOverride != nil
}

// TransitionTo moves the state to a new phase, rewriting Since and
// LastEvaluated together to the transition time and replacing the approved
// scope. A transition away from Ready also discards any pending override: an
// override granted under earlier circumstances must not survive a phase
// regression.
func (s *State) TransitionTo(phase Phase, scope *string) {
	now := nowFunc()
	s.Phase = phase
	s.Since = now
	s.ApprovedScope = scope
	s.LastEvaluated = &now
	if phase != PhaseReady {
		s.PendingOverride = nil
	}
}

// SetOverride replaces any existing pending override with a fresh one
// stamped now. Last write wins; overrides do not queue.
func (s *State) SetOverride(reason string) {
	s.PendingOverride = &PendingOverride{
		Reason:    reason,
		Timestamp: nowFunc(),
	}
}

// ConsumeOverride clears the pending override. Call after allowing a
// blocked action. No-op if no override is pending.
func (s *State) ConsumeOverride() {
	s.PendingOverride = nil
}

// Scope returns the approved scope, or empty when none is recorded.
func (s *State) Scope() string {
	if s.ApprovedScope == nil {
		return ""
	}
	return *s.ApprovedScope
}
