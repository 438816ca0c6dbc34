// Package tracker adapts the external bd task tracker into a read-only
// constraint for the gate. Task state comes from bd, not from conversation
// analysis: claiming no task is treated as a stronger safety signal than
// conversational readiness, so an empty in-progress list vetoes writes even
// in Ready phase.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Iron-Ham/phasegate/internal/errors"
)

// commandTimeout bounds a single tracker subprocess call.
const commandTimeout = 10 * time.Second

// Task is one work item from `bd list --json`.
type Task struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Signal is the tracker-derived constraint, recomputed per evaluation.
type Signal struct {
	// ReadOnly is true when no task is claimed: mutating actions are
	// vetoed until one is.
	ReadOnly bool
	// CurrentTask is the claimed task, when exactly one or more exist.
	CurrentTask *Task
	// Feedback is a human-readable message for the agent, when any.
	Feedback string
}

// Runner executes a tracker command and returns stdout, stderr, and an
// error for non-zero exit. Production code shells out to bd; tests inject
// deterministic fakes.
type Runner interface {
	Run(ctx context.Context, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs the real bd binary.
type ExecRunner struct {
	command string
}

// NewExecRunner creates a runner for the given tracker command.
// Empty defaults to "bd".
func NewExecRunner(command string) *ExecRunner {
	if command == "" {
		command = "bd"
	}
	return &ExecRunner{command: command}
}

// Run executes the tracker with a bounded timeout.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.command, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Adapter queries the tracker and derives the gate's task signal.
type Adapter struct {
	runner Runner
}

// NewAdapter creates an Adapter over the given runner.
func NewAdapter(runner Runner) *Adapter {
	return &Adapter{runner: runner}
}

// initialized probes the tracker with `bd stats`. Any failure is treated
// as "not initialized": the absence of a tracker is not itself a blocker.
func (a *Adapter) initialized(ctx context.Context) bool {
	_, _, err := a.runner.Run(ctx, "stats")
	return err == nil
}

// notInitializedPhrases are the stderr fragments bd emits when it has no
// database. Matching error text is fragile across tracker versions; an
// explicit status code or dedicated query would be better, but bd offers
// neither today.
var notInitializedPhrases = []string{
	"not initialized",
	"No database",
}

// inProgress lists tasks currently claimed as in_progress.
func (a *Adapter) inProgress(ctx context.Context) ([]Task, error) {
	stdout, stderr, err := a.runner.Run(ctx, "list", "--status", "in_progress", "--json")
	if err != nil {
		for _, phrase := range notInitializedPhrases {
			if strings.Contains(stderr, phrase) {
				return nil, errors.ErrTrackerNotInitialized
			}
		}
		return nil, errors.Wrapf(errors.ErrTrackerCommand, "%v: %s", err, strings.TrimSpace(stderr))
	}

	// Empty output and an empty array are both valid "no tasks" results.
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" || trimmed == "[]" {
		return nil, nil
	}

	var tasks []Task
	if err := json.Unmarshal([]byte(trimmed), &tasks); err != nil {
		return nil, errors.Wrapf(errors.ErrTrackerOutput, "%v: %s", err, trimmed)
	}
	return tasks, nil
}

// Evaluate derives the current task signal:
//
//   - tracker not initialized: no constraint
//   - zero in-progress tasks: read-only, with a claim-a-task instruction
//   - exactly one: no constraint, that task is current
//   - two or more: allowed but flagged, first task is current
//
// Failures other than missing initialization propagate as typed errors;
// the caller decides whether they block or degrade to "no constraint".
func (a *Adapter) Evaluate(ctx context.Context) (*Signal, error) {
	if !a.initialized(ctx) {
		return &Signal{}, nil
	}

	tasks, err := a.inProgress(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrTrackerNotInitialized) {
			return &Signal{}, nil
		}
		return nil, err
	}

	switch len(tasks) {
	case 0:
		return &Signal{
			ReadOnly: true,
			Feedback: "No task in progress. Claim a task with `bd update <id> --status in_progress` before making changes.",
		}, nil
	case 1:
		return &Signal{CurrentTask: &tasks[0]}, nil
	default:
		labels := make([]string, len(tasks))
		for i, t := range tasks {
			labels[i] = fmt.Sprintf("%s: %s", t.ID, t.Title)
		}
		return &Signal{
			CurrentTask: &tasks[0],
			Feedback: fmt.Sprintf("Multiple tasks in progress (%s). Consider focusing on one at a time.",
				strings.Join(labels, ", ")),
		}, nil
	}
}
