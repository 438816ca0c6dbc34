package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/phasegate/internal/history"
	"github.com/Iron-Ham/phasegate/internal/state"
)

var overrideCmd = &cobra.Command{
	Use:   "override <reason>",
	Short: "Allow the next blocked action to proceed",
	Long: `Override grants a one-shot permission: the next mutating action that
would be blocked by phase is allowed instead, and the permission is spent.
A later override replaces an unspent one; overrides do not queue. The
tracker's no-task veto is not overridable.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOverride,
}

func init() {
	rootCmd.AddCommand(overrideCmd)
}

func runOverride(cmd *cobra.Command, args []string) error {
	reason := strings.Join(args, " ")

	a, err := newApp("override")
	if err != nil {
		return err
	}
	defer a.close()

	updated, err := a.states.Update(func(s *state.State) {
		s.SetOverride(reason)
	})
	if err != nil {
		return err
	}

	if err := a.decisions.Append(history.Record{
		Kind:   history.KindOverride,
		Phase:  string(updated.Phase),
		Reason: reason,
	}); err != nil {
		a.logger.Warn("failed to record override", "error", err.Error())
	}

	a.logger.Info("override set", "reason", reason)
	fmt.Printf("Override set: the next blocked action will be allowed (%s).\n", reason)
	return nil
}
