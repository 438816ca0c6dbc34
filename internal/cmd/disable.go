package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/phasegate/internal/state"
)

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable the gate for this project",
	Long: `Disable stops all gating: every tool action is allowed until enable
is run. The state record is kept so re-enabling restores the last known
phase.`,
	RunE: runDisable,
}

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Re-enable the gate for this project",
	RunE:  runEnable,
}

func init() {
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(enableCmd)
}

func runDisable(cmd *cobra.Command, args []string) error {
	a, err := newApp("disable")
	if err != nil {
		return err
	}
	defer a.close()

	_, err = a.states.Update(func(s *state.State) {
		s.Disabled = true
	})
	if err != nil {
		return err
	}

	a.logger.Info("gate disabled")
	fmt.Println("Phasegate disabled. All tool actions are allowed.")
	return nil
}

func runEnable(cmd *cobra.Command, args []string) error {
	a, err := newApp("enable")
	if err != nil {
		return err
	}
	defer a.close()

	updated, err := a.states.Update(func(s *state.State) {
		s.Disabled = false
	})
	if err != nil {
		return err
	}

	a.logger.Info("gate enabled", "phase", string(updated.Phase))
	fmt.Printf("Phasegate enabled. Current phase: %s.\n", updated.Phase)
	return nil
}
