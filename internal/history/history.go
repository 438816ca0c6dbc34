// Package history persists an append-only JSONL log of gate decisions and
// phase evaluations. The log serves three readers: the history subcommand,
// the carryover context folded into the next evaluation call, and the gate
// itself, which surfaces the most recent evaluation's suggestion when it
// blocks an action.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// logFileName is the decision log inside the project dot directory.
const logFileName = "decisions.jsonl"

// Kind distinguishes record types in the log.
type Kind string

const (
	// KindGate records an allow/block verdict for one tool use.
	KindGate Kind = "gate"
	// KindEvaluation records a phase judgment from the evaluator.
	KindEvaluation Kind = "evaluation"
	// KindOverride records a user-granted one-shot override.
	KindOverride Kind = "override"
)

// Record is one entry in the decision log.
type Record struct {
	Time       time.Time `json:"time"`
	Kind       Kind      `json:"kind"`
	Tool       string    `json:"tool,omitempty"`
	Decision   string    `json:"decision,omitempty"`
	Phase      string    `json:"phase,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Suggestion string    `json:"suggestion,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// Summary renders the record as a single line for carryover context and
// the history listing.
func (r Record) Summary() string {
	stamp := r.Time.Format("15:04:05")
	switch r.Kind {
	case KindGate:
		if r.Reason != "" {
			return fmt.Sprintf("%s %s %s (%s): %s", stamp, r.Decision, r.Tool, r.Phase, r.Reason)
		}
		return fmt.Sprintf("%s %s %s (%s)", stamp, r.Decision, r.Tool, r.Phase)
	case KindEvaluation:
		if r.Reason != "" {
			return fmt.Sprintf("%s phase=%s: %s", stamp, r.Phase, r.Reason)
		}
		return fmt.Sprintf("%s phase=%s", stamp, r.Phase)
	case KindOverride:
		return fmt.Sprintf("%s override: %s", stamp, r.Reason)
	default:
		return fmt.Sprintf("%s %s", stamp, r.Kind)
	}
}

// Log reads and appends the decision log.
type Log struct {
	path string
}

// NewLog creates a Log rooted at the given dot directory.
func NewLog(dir string) *Log {
	return &Log{path: filepath.Join(dir, logFileName)}
}

// Append adds a record to the log. A zero Time is stamped now.
func (l *Log) Append(r Record) error {
	if r.Time.IsZero() {
		r.Time = time.Now()
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}
	data = append(data, '\n')

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append history record: %w", err)
	}
	return nil
}

// all reads every parseable record, oldest first. Malformed lines are
// skipped: the log is advisory and a torn write must not break the gate.
func (l *Log) all() ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history log: %w", err)
	}
	return records, nil
}

// Recent returns up to limit of the newest records, oldest first.
func (l *Log) Recent(limit int) ([]Record, error) {
	records, err := l.all()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// LastEvaluation returns the newest evaluation record, if any.
func (l *Log) LastEvaluation() (Record, bool) {
	records, err := l.all()
	if err != nil {
		return Record{}, false
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Kind == KindEvaluation {
			return records[i], true
		}
	}
	return Record{}, false
}

// Clear removes the log. Used by reset.
func (l *Log) Clear() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove history log: %w", err)
	}
	return nil
}
