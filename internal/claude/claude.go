// Package claude invokes the Claude Code CLI non-interactively and parses
// the phase evaluation out of its free-form result text.
//
// The model's output is untrusted: it may wrap the JSON judgment in
// markdown fencing, prose, or nothing at all. Extraction is therefore
// maximally permissive about wrapping and strict about payload shape — a
// failed extraction fails closed (the gate blocks), while a wrong
// extraction could wrongly unlock writes.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/Iron-Ham/phasegate/internal/errors"
)

// DefaultTimeout bounds a single model invocation. On timeout the caller
// must treat the missing evaluation as a block, never an implicit allow.
const DefaultTimeout = 120 * time.Second

// Response is the JSON envelope produced by `claude -p --output-format json`.
type Response struct {
	Type         string  `json:"type"`
	Subtype      string  `json:"subtype"`
	IsError      bool    `json:"is_error"`
	DurationMS   int64   `json:"duration_ms"`
	Result       string  `json:"result"`
	SessionID    string  `json:"session_id"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// Options configures a model invocation.
type Options struct {
	// Model selects the model identifier. Empty defaults to "sonnet".
	Model string
	// SessionID resumes an existing evaluator session when set.
	SessionID string
	// Timeout bounds the subprocess. Zero defaults to DefaultTimeout.
	Timeout time.Duration
	// NoSessionPersistence asks the CLI not to persist the session.
	NoSessionPersistence bool
}

// Invoker runs one non-interactive model call. Production code wires the
// CLI subprocess; tests inject deterministic fakes.
type Invoker interface {
	Invoke(ctx context.Context, systemPrompt, message string, opts Options) (*Response, error)
}

// CLIInvoker implements Invoker by shelling out to the claude CLI.
type CLIInvoker struct {
	command string
}

// NewCLIInvoker creates an invoker for the given CLI command.
// Empty defaults to "claude".
func NewCLIInvoker(command string) *CLIInvoker {
	if command == "" {
		command = "claude"
	}
	return &CLIInvoker{command: command}
}

// Invoke runs the CLI with a system prompt and user message and parses the
// JSON envelope. The subprocess is bounded by opts.Timeout; exceeding it
// returns errors.ErrTimeout.
func (c *CLIInvoker) Invoke(ctx context.Context, systemPrompt, message string, opts Options) (*Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model := opts.Model
	if model == "" {
		model = "sonnet"
	}

	args := []string{
		"-p",
		"--output-format", "json",
		"--system-prompt", systemPrompt,
		"--model", model,
	}
	if opts.SessionID != "" {
		args = append(args, "--resume", opts.SessionID)
	}
	if opts.NoSessionPersistence {
		args = append(args, "--no-session-persistence")
	}
	args = append(args, message)

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, errors.Wrapf(errors.ErrTimeout, "model invocation exceeded %s", timeout)
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrModelCommand, "%v: %s", err, strings.TrimSpace(stderr.String()))
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, errors.Wrapf(errors.ErrModelCommand, "parse response envelope: %v", err)
	}
	return &resp, nil
}
