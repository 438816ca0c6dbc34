package gate

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/phasegate/internal/claude"
	"github.com/Iron-Ham/phasegate/internal/errors"
	"github.com/Iron-Ham/phasegate/internal/history"
	"github.com/Iron-Ham/phasegate/internal/state"
	"github.com/Iron-Ham/phasegate/internal/tools"
	"github.com/Iron-Ham/phasegate/internal/tracker"
)

// fakeSignaler returns a fixed signal or error.
type fakeSignaler struct {
	signal tracker.Signal
	err    error
}

func (f *fakeSignaler) Evaluate(ctx context.Context) (*tracker.Signal, error) {
	if f.err != nil {
		return nil, f.err
	}
	sig := f.signal
	return &sig, nil
}

// fakeAdvisor returns a fixed evaluation record.
type fakeAdvisor struct {
	rec history.Record
	ok  bool
}

func (f *fakeAdvisor) LastEvaluation() (history.Record, bool) {
	return f.rec, f.ok
}

type fixture struct {
	gate   *Gate
	states *state.Manager
	log    *history.Log
}

func newFixture(t *testing.T, tasks TaskSignaler, advisor Advisor) *fixture {
	t.Helper()
	dir := t.TempDir()
	states := state.NewManager(dir)
	log := history.NewLog(dir)
	return &fixture{
		gate:   New(tools.DefaultRegistry(), states, tasks, advisor, log, nil),
		states: states,
		log:    log,
	}
}

// evaluated marks a seeded state as having been through an evaluation.
func evaluated(s *state.State) *state.State {
	now := time.Now()
	s.LastEvaluated = &now
	return s
}

func (f *fixture) seed(t *testing.T, s *state.State) {
	t.Helper()
	if err := f.states.Save(s); err != nil {
		t.Fatalf("seed state: %v", err)
	}
}

func (f *fixture) loaded(t *testing.T) *state.State {
	t.Helper()
	s, _, err := f.states.Load()
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	return s
}

func TestDiscussingBlocksWriteTool(t *testing.T) {
	f := newFixture(t, &fakeSignaler{}, nil)
	f.seed(t, evaluated(state.WithPhase(state.PhaseDiscussing)))

	v, err := f.gate.Check(context.Background(), "Bash")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Decision != Block {
		t.Errorf("expected block, got %s", v.Decision)
	}
	if !strings.Contains(v.Message, "discussing") {
		t.Errorf("block message should name the phase: %q", v.Message)
	}
}

func TestNeverEvaluatedBlocksWithGenericMessage(t *testing.T) {
	f := newFixture(t, &fakeSignaler{}, nil)
	f.seed(t, state.WithPhase(state.PhaseExploring))

	v, err := f.gate.Check(context.Background(), "Bash")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Decision != Block {
		t.Errorf("expected block, got %s", v.Decision)
	}
	if !strings.Contains(v.Message, GenericBlockMessage) {
		t.Errorf("unevaluated state should use the generic message: %q", v.Message)
	}
}

func TestReadToolAlwaysAllowed(t *testing.T) {
	// Tracker veto and non-ready phase are both irrelevant for reads.
	f := newFixture(t, &fakeSignaler{signal: tracker.Signal{ReadOnly: true, Feedback: "claim a task"}}, nil)
	f.seed(t, state.WithPhase(state.PhaseExploring))

	v, err := f.gate.Check(context.Background(), "Grep")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Decision != Allow {
		t.Errorf("read tool should be allowed, got %s", v.Decision)
	}
}

func TestDisabledAllowsEverything(t *testing.T) {
	f := newFixture(t, &fakeSignaler{signal: tracker.Signal{ReadOnly: true, Feedback: "claim a task"}}, nil)
	s := state.WithPhase(state.PhaseExploring)
	s.Disabled = true
	f.seed(t, s)

	v, err := f.gate.Check(context.Background(), "Edit")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Decision != Allow {
		t.Errorf("disabled gate should allow, got %s", v.Decision)
	}
}

func TestTrackerVetoBeatsReadyPhase(t *testing.T) {
	f := newFixture(t, &fakeSignaler{signal: tracker.Signal{ReadOnly: true, Feedback: "No task in progress. Claim a task first."}}, nil)
	f.seed(t, state.WithPhase(state.PhaseReady))

	v, err := f.gate.Check(context.Background(), "Write")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Decision != Block {
		t.Errorf("tracker veto should beat ready phase, got %s", v.Decision)
	}
	if v.Message != "No task in progress. Claim a task first." {
		t.Errorf("block message should be the tracker feedback: %q", v.Message)
	}
}

func TestTrackerVetoBeatsPendingOverride(t *testing.T) {
	f := newFixture(t, &fakeSignaler{signal: tracker.Signal{ReadOnly: true, Feedback: "claim a task"}}, nil)
	s := state.WithPhase(state.PhaseDiscussing)
	s.SetOverride("user approved")
	f.seed(t, s)

	v, err := f.gate.Check(context.Background(), "Bash")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Decision != Block {
		t.Errorf("tracker veto should beat the override, got %s", v.Decision)
	}

	// The override must not be consumed by a blocked action.
	if f.loaded(t).PendingOverride == nil {
		t.Error("blocked action must not consume the override")
	}
}

func TestOverrideAllowsOnceAndIsConsumed(t *testing.T) {
	f := newFixture(t, &fakeSignaler{}, nil)
	s := state.WithPhase(state.PhaseDiscussing)
	s.SetOverride("user approved")
	f.seed(t, s)

	v, err := f.gate.Check(context.Background(), "Bash")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Decision != Allow {
		t.Errorf("pending override should allow, got %s", v.Decision)
	}
	if !v.OverrideConsumed {
		t.Error("verdict should report override consumption")
	}
	if f.loaded(t).PendingOverride != nil {
		t.Error("override should be cleared after the allowed action")
	}

	// The next identical request blocks again.
	v, err = f.gate.Check(context.Background(), "Bash")
	if err != nil {
		t.Fatalf("second Check failed: %v", err)
	}
	if v.Decision != Block {
		t.Errorf("override is one-shot, second action should block, got %s", v.Decision)
	}
}

func TestUnknownToolGatedLikeWrite(t *testing.T) {
	f := newFixture(t, &fakeSignaler{}, nil)
	f.seed(t, state.WithPhase(state.PhaseDiscussing))

	v, err := f.gate.Check(context.Background(), "BrandNewTool")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Decision != Block {
		t.Errorf("unknown tool should be gated, got %s", v.Decision)
	}
}

func TestReadyPhaseAllowsWrites(t *testing.T) {
	f := newFixture(t, &fakeSignaler{signal: tracker.Signal{CurrentTask: &tracker.Task{ID: "pg-1", Title: "Build"}}}, nil)
	f.seed(t, state.WithPhase(state.PhaseReady))

	v, err := f.gate.Check(context.Background(), "Edit")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Decision != Allow {
		t.Errorf("ready phase should allow writes, got %s", v.Decision)
	}
}

func TestMultipleTasksFeedbackSurfacesOnAllow(t *testing.T) {
	f := newFixture(t, &fakeSignaler{signal: tracker.Signal{
		CurrentTask: &tracker.Task{ID: "pg-1", Title: "First"},
		Feedback:    "Multiple tasks in progress (pg-1: First, pg-2: Second). Consider focusing on one at a time.",
	}}, nil)
	f.seed(t, state.WithPhase(state.PhaseReady))

	v, err := f.gate.Check(context.Background(), "Edit")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Decision != Allow {
		t.Errorf("multiple tasks should still allow, got %s", v.Decision)
	}
	if !strings.Contains(v.Message, "pg-1: First, pg-2: Second") {
		t.Errorf("advisory feedback should surface: %q", v.Message)
	}
}

func TestTrackerFailureDegradesToNoConstraint(t *testing.T) {
	f := newFixture(t, &fakeSignaler{err: errors.Wrap(errors.ErrTrackerCommand, "bd exploded")}, nil)
	f.seed(t, state.WithPhase(state.PhaseReady))

	v, err := f.gate.Check(context.Background(), "Bash")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Decision != Allow {
		t.Errorf("tracker failure should degrade to no constraint, got %s", v.Decision)
	}
}

func TestBlockMessageUsesLatestEvaluation(t *testing.T) {
	advisor := &fakeAdvisor{
		rec: history.Record{Kind: history.KindEvaluation, Suggestion: "Confirm the migration plan with the user first."},
		ok:  true,
	}
	f := newFixture(t, &fakeSignaler{}, advisor)
	f.seed(t, state.WithPhase(state.PhaseDiscussing))

	v, err := f.gate.Check(context.Background(), "Edit")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !strings.Contains(v.Message, "Confirm the migration plan") {
		t.Errorf("block message should carry the evaluation suggestion: %q", v.Message)
	}
}

func TestBlockMessageFallsBackToReason(t *testing.T) {
	advisor := &fakeAdvisor{
		rec: history.Record{Kind: history.KindEvaluation, Reason: "User has not agreed to an approach."},
		ok:  true,
	}
	f := newFixture(t, &fakeSignaler{}, advisor)
	f.seed(t, state.WithPhase(state.PhaseDiscussing))

	v, err := f.gate.Check(context.Background(), "Edit")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !strings.Contains(v.Message, "User has not agreed") {
		t.Errorf("block message should fall back to the reason: %q", v.Message)
	}
}

func TestCorruptStateSurfacesDistinctly(t *testing.T) {
	f := newFixture(t, &fakeSignaler{}, nil)

	if err := writeRaw(t, f.states.Path(), "{broken"); err != nil {
		t.Fatal(err)
	}

	_, err := f.gate.Check(context.Background(), "Bash")
	if !errors.Is(err, errors.ErrStateCorrupt) {
		t.Errorf("expected ErrStateCorrupt, got %v", err)
	}
}

func TestCheckRecordsHistory(t *testing.T) {
	f := newFixture(t, &fakeSignaler{}, nil)
	f.seed(t, state.WithPhase(state.PhaseDiscussing))

	if _, err := f.gate.Check(context.Background(), "Bash"); err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	records, err := f.log.Recent(0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Kind != history.KindGate || rec.Tool != "Bash" || rec.Decision != "block" || rec.Phase != "discussing" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestApplyEvaluationTransitions(t *testing.T) {
	f := newFixture(t, &fakeSignaler{}, nil)
	f.seed(t, state.WithPhase(state.PhaseDiscussing))

	scope := "implement auth"
	conf := 0.9
	s, err := f.gate.ApplyEvaluation(&claude.Evaluation{
		Phase:         "Ready",
		Confidence:    &conf,
		ApprovedScope: &scope,
		Suggestion:    "Proceed with the agreed scope.",
	})
	if err != nil {
		t.Fatalf("ApplyEvaluation failed: %v", err)
	}
	if s.Phase != state.PhaseReady {
		t.Errorf("expected ready, got %s", s.Phase)
	}
	if s.Scope() != "implement auth" {
		t.Errorf("unexpected scope: %q", s.Scope())
	}
	if s.LastEvaluated == nil {
		t.Error("last_evaluated should be set")
	}

	rec, ok := f.log.LastEvaluation()
	if !ok {
		t.Fatal("evaluation should be recorded")
	}
	if rec.Phase != "ready" || rec.Suggestion != "Proceed with the agreed scope." {
		t.Errorf("unexpected record: %+v", rec)
	}

	// The recorded suggestion now feeds block messages.
	v, err := f.gate.Check(context.Background(), "SomethingNew")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if v.Decision != Allow {
		t.Errorf("ready phase should allow, got %s", v.Decision)
	}
}

func TestApplyEvaluationUnknownPhase(t *testing.T) {
	f := newFixture(t, &fakeSignaler{}, nil)
	f.seed(t, state.WithPhase(state.PhaseDiscussing))

	_, err := f.gate.ApplyEvaluation(&claude.Evaluation{Phase: "shipping"})
	if !errors.Is(err, errors.ErrNoStructuredOutput) {
		t.Errorf("unknown phase should map to ErrNoStructuredOutput, got %v", err)
	}

	// State must be untouched.
	if f.loaded(t).Phase != state.PhaseDiscussing {
		t.Error("failed evaluation must not transition state")
	}
}

func writeRaw(t *testing.T, path, content string) error {
	t.Helper()
	return os.WriteFile(path, []byte(content), 0644)
}
