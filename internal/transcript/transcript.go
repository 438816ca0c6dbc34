// Package transcript reads Claude Code session transcripts, which are JSONL
// files of conversation entries. The evaluator needs two views: the latest
// user message (the prompt being evaluated) and the recent exchange inside
// the carryover window (context folded into the evaluation prompt).
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn extracted from the transcript.
type Message struct {
	Role Role
	Text string
	Time time.Time
}

// entry mirrors one transcript JSONL line. Content is either a plain string
// or an array of typed blocks; rawContent defers that choice to extraction.
type entry struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Message   struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

// contentBlock is one element of an array-form content field.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// extractText flattens a content field into plain text. String content is
// returned as-is; array content concatenates its text blocks, skipping
// tool-use and other non-text block types.
func extractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Read parses a transcript file into messages, oldest first. Lines that are
// not valid JSON, carry no text, or are not user/assistant turns are
// skipped: transcripts interleave tool results and metadata entries that
// the evaluator has no use for.
func Read(path string) ([]Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var messages []Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		var e entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if e.Type != string(RoleUser) && e.Type != string(RoleAssistant) {
			continue
		}
		text := strings.TrimSpace(extractText(e.Message.Content))
		if text == "" {
			continue
		}
		msg := Message{Role: Role(e.Type), Text: text}
		if ts, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
			msg.Time = ts
		}
		messages = append(messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return messages, nil
}

// LatestUserMessage returns the newest user turn in the transcript.
func LatestUserMessage(path string) (Message, bool, error) {
	messages, err := Read(path)
	if err != nil {
		return Message{}, false, err
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i], true, nil
		}
	}
	return Message{}, false, nil
}

// Recent returns the messages whose timestamps fall within window of now,
// oldest first. Messages without a parseable timestamp are excluded. Used
// to build carryover context for the next evaluation.
func Recent(path string, now time.Time, window time.Duration) ([]Message, error) {
	messages, err := Read(path)
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-window)
	var recent []Message
	for _, m := range messages {
		if m.Time.IsZero() || m.Time.Before(cutoff) {
			continue
		}
		recent = append(recent, m)
	}
	return recent, nil
}
