package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/phasegate/internal/state"
	"github.com/Iron-Ham/phasegate/internal/tools"
)

var contextInjectCmd = &cobra.Command{
	Use:   "context-inject",
	Short: "Print gate context for a new session (SessionStart hook)",
	Long: `Context-inject writes the current phase, approved scope, and any
pre-compaction snapshot to stdout. Claude Code folds the output into the
session context, so the agent starts aware of what has been agreed.`,
	RunE: runContextInject,
}

func init() {
	rootCmd.AddCommand(contextInjectCmd)
}

func runContextInject(cmd *cobra.Command, args []string) error {
	a, err := newApp("context-inject")
	if err != nil {
		return err
	}
	defer a.close()

	s, found, err := a.states.Load()
	if err != nil {
		// A corrupt record should not break session start; say so instead.
		fmt.Printf("Phasegate state could not be read (%v). Run `phasegate reset` to recover.\n", err)
		return nil
	}
	if !found {
		return nil
	}
	if s.Disabled {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Phasegate: collaboration phase is %q (since %s).\n",
		s.Phase, s.Since.Format("2006-01-02 15:04"))
	if scope := s.Scope(); scope != "" {
		fmt.Fprintf(&b, "Approved scope: %s\n", scope)
	}
	if s.Phase != state.PhaseReady {
		b.WriteString("Mutating tool actions are blocked until the user agrees to a plan.\n")
		fmt.Fprintf(&b, "Read-only tools stay available: %s.\n",
			strings.Join(tools.DefaultRegistry().ReadTools(), ", "))
	}

	// A precompact snapshot carries agreements across context compaction.
	snapshotPath := filepath.Join(a.dotDir, precompactFileName)
	if data, err := os.ReadFile(snapshotPath); err == nil {
		b.WriteString("\n")
		b.Write(data)
		_ = os.Remove(snapshotPath)
	}

	fmt.Print(b.String())
	return nil
}
