package cmd

import (
	"os"
	"path/filepath"
	"strings"
)

// sessionFileName holds the evaluator's Claude session id so successive
// evaluations resume the same session instead of paying for cold context.
const sessionFileName = "session"

func (a *app) sessionPath() string {
	return filepath.Join(a.dotDir, sessionFileName)
}

// loadSessionID returns the stored evaluator session id, or empty.
func (a *app) loadSessionID() string {
	data, err := os.ReadFile(a.sessionPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// saveSessionID persists the evaluator session id for the next run.
func (a *app) saveSessionID(id string) {
	if id == "" {
		return
	}
	if err := os.MkdirAll(a.dotDir, 0755); err != nil {
		return
	}
	_ = os.WriteFile(a.sessionPath(), []byte(id+"\n"), 0644)
}

// clearSessionID removes the stored session id.
func (a *app) clearSessionID() error {
	if err := os.Remove(a.sessionPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
