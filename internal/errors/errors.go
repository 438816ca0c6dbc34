// Package errors provides centralized error definitions for the phasegate
// codebase. It defines sentinel errors for the external boundaries (state
// storage, tracker subprocess, model subprocess, logging integration) and a
// typed error for remote API failures, along with classification helpers
// used to decide whether a failure degrades gracefully or blocks the gate.
//
// # Usage
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrStateCorrupt) { ... }
//
//	var apiErr *errors.RemoteAPIError
//	if errors.As(err, &apiErr) { ... }
//
//	if errors.IsDegradable(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// State storage sentinel errors
var (
	// ErrStateCorrupt indicates that a state record exists on disk but
	// cannot be parsed. It must never be papered over by reverting to
	// defaults; the user is expected to run an explicit reset.
	ErrStateCorrupt = New("state file is corrupt")
	// ErrStateIO indicates a filesystem failure reading or writing state.
	ErrStateIO = New("state storage failed")
)

// Tracker sentinel errors
var (
	// ErrTrackerNotInitialized indicates the task tracker has no database
	// for this project. This is not a constraint, only a diagnostic.
	ErrTrackerNotInitialized = New("task tracker not initialized")
	// ErrTrackerCommand indicates the tracker subprocess failed to run
	// or exited non-zero for a reason other than missing initialization.
	ErrTrackerCommand = New("tracker command failed")
	// ErrTrackerOutput indicates the tracker produced output that could
	// not be parsed.
	ErrTrackerOutput = New("malformed tracker output")
)

// Model invocation sentinel errors
var (
	// ErrModelCommand indicates the model subprocess failed to run.
	ErrModelCommand = New("model command failed")
	// ErrNoStructuredOutput indicates the model's free-form result did
	// not contain an extractable JSON payload.
	ErrNoStructuredOutput = New("no structured output in model response")
	// ErrTimeout indicates the model subprocess exceeded its deadline.
	ErrTimeout = New("operation timed out")
)

// Logging integration sentinel errors
var (
	// ErrLoggingNotConfigured indicates the optional decision-logging
	// integration is not set up. Never fatal; callers skip logging.
	ErrLoggingNotConfigured = New("decision logging not configured")
)

// RemoteAPIError represents a non-success response from the decision-logging
// endpoint. The status and body are retained for diagnostics only; the gate
// never blocks on a remote API failure.
type RemoteAPIError struct {
	Status int
	Body   string
}

// Error returns the formatted error message.
func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("remote API error (%d): %s", e.Status, e.Body)
}

// Is reports whether target is also a RemoteAPIError.
func (e *RemoteAPIError) Is(target error) bool {
	_, ok := target.(*RemoteAPIError)
	return ok
}

// IsDegradable returns true for failures that must not block the gate:
// tracker problems degrade to "no constraint" and logging problems degrade
// to "skip logging". Everything else is handled by the caller, with parse
// failures and timeouts resolving to a conservative block.
func IsDegradable(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrTrackerNotInitialized) || Is(err, ErrTrackerCommand) || Is(err, ErrTrackerOutput) {
		return true
	}
	if Is(err, ErrLoggingNotConfigured) {
		return true
	}
	var apiErr *RemoteAPIError
	return As(err, &apiErr)
}

// IsBlocking returns true for failures that must resolve to a conservative
// block rather than an implicit allow: a missing or malformed evaluation and
// a model timeout are both treated as "could not determine phase".
func IsBlocking(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrNoStructuredOutput) || Is(err, ErrTimeout) || Is(err, ErrModelCommand)
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
