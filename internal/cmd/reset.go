package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetClearSession bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset phasegate state",
	Long: `Reset removes the state record and the decision log, reinstating
defaults on the next run. This is the recovery path for a corrupt state
file. With --clear-session the evaluator's Claude session is also
forgotten.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetClearSession, "clear-session", false, "also forget the evaluator session")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	a, err := newApp("reset")
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.states.Clear(); err != nil {
		return err
	}
	if err := a.decisions.Clear(); err != nil {
		return err
	}
	if resetClearSession {
		if err := a.clearSessionID(); err != nil {
			return err
		}
	}

	a.logger.Info("state reset", "clear_session", resetClearSession)
	fmt.Println("Phasegate state reset. The next evaluation starts from exploring.")
	return nil
}
