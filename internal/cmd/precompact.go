package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/phasegate/internal/transcript"
)

// precompactFileName is the snapshot consumed by the next context-inject.
const precompactFileName = "precompact.md"

var precompactTranscriptPath string

var precompactCmd = &cobra.Command{
	Use:   "precompact",
	Short: "Snapshot gate context before compaction (PreCompact hook)",
	Long: `Precompact writes the current phase, approved scope, and the tail of
the conversation to a snapshot file. The next session start re-injects the
snapshot, so agreements survive context compaction.`,
	RunE: runPrecompact,
}

func init() {
	precompactCmd.Flags().StringVar(&precompactTranscriptPath, "transcript-path", "", "path to the transcript JSONL file")
	_ = precompactCmd.MarkFlagRequired("transcript-path")
	rootCmd.AddCommand(precompactCmd)
}

func runPrecompact(cmd *cobra.Command, args []string) error {
	a, err := newApp("precompact")
	if err != nil {
		return err
	}
	defer a.close()

	s, _, err := a.states.Load()
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("Pre-compaction snapshot:\n")
	fmt.Fprintf(&b, "- Phase: %s (since %s)\n", s.Phase, s.Since.Format("2006-01-02 15:04"))
	if scope := s.Scope(); scope != "" {
		fmt.Fprintf(&b, "- Approved scope: %s\n", scope)
	}
	if s.PendingOverride != nil {
		fmt.Fprintf(&b, "- Unspent override: %s\n", s.PendingOverride.Reason)
	}

	tail := transcriptTail(precompactTranscriptPath, a.cfg.CarryoverWindow())
	if len(tail) > 0 {
		b.WriteString("- Recent exchange:\n")
		for _, line := range tail {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}

	path := filepath.Join(a.dotDir, precompactFileName)
	if err := os.MkdirAll(a.dotDir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	a.logger.Info("precompact snapshot written", "path", path)
	return nil
}

// transcriptTail renders the windowed tail of the transcript as one-line
// summaries. Transcript problems degrade to an empty tail.
func transcriptTail(path string, window time.Duration) []string {
	messages, err := transcript.Recent(path, time.Now(), window)
	if err != nil {
		return nil
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		text := m.Text
		if len(text) > 200 {
			text = text[:197] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, text))
	}
	return lines
}
