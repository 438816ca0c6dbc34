package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/phasegate/internal/errors"
	"github.com/Iron-Ham/phasegate/internal/gate"
)

var checkToolName string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether a tool action is allowed (PreToolUse hook)",
	Long: `Check gates one tool-use request. Exit code 0 allows the action;
exit code 2 blocks it, with feedback for the agent on stderr. Claude Code
surfaces that feedback to the agent in place of the tool result.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkToolName, "tool-name", "", "name of the tool being used")
	_ = checkCmd.MarkFlagRequired("tool-name")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp("check")
	if err != nil {
		return err
	}
	defer a.close()

	verdict, err := a.gate.Check(cmd.Context(), checkToolName)
	if err != nil {
		if errors.Is(err, errors.ErrStateCorrupt) {
			fmt.Fprintf(os.Stderr, "Phasegate state is corrupt: %v\nRun `phasegate reset` to recover.\n", err)
			os.Exit(2)
		}
		return err
	}

	if verdict.Decision == gate.Block {
		a.mirrorFeedback(fmt.Sprintf("Blocked %s: %s", checkToolName, verdict.Message))
		fmt.Fprintln(os.Stderr, verdict.Message)
		os.Exit(2)
	}

	// Advisory feedback on an allowed action (multiple in-progress tasks).
	if verdict.Message != "" {
		fmt.Fprintln(os.Stderr, verdict.Message)
	}
	return nil
}

// mirrorFeedback posts feedback to the OH endeavor log, best effort. OH
// failures never change a verdict.
func (a *app) mirrorFeedback(feedback string) {
	integ, ok := a.integration()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := integ.LogFeedback(ctx, feedback); err != nil {
		a.logger.Warn("failed to mirror feedback to OH", "error", err.Error())
	}
}
