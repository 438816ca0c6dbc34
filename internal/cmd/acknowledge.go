package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/phasegate/internal/state"
)

var acknowledgeCmd = &cobra.Command{
	Use:   "acknowledge",
	Short: "Accept gate feedback and clear a pending override",
	Long: `Acknowledge withdraws an unspent override without performing the
action it would have allowed. Use it after deciding the blocked action
should not happen after all.`,
	RunE: runAcknowledge,
}

func init() {
	rootCmd.AddCommand(acknowledgeCmd)
}

func runAcknowledge(cmd *cobra.Command, args []string) error {
	a, err := newApp("acknowledge")
	if err != nil {
		return err
	}
	defer a.close()

	hadOverride := false
	_, err = a.states.Update(func(s *state.State) {
		hadOverride = s.PendingOverride != nil
		s.ConsumeOverride()
	})
	if err != nil {
		return err
	}

	if hadOverride {
		a.logger.Info("pending override withdrawn")
		fmt.Println("Pending override withdrawn.")
	} else {
		fmt.Println("Nothing pending to acknowledge.")
	}
	return nil
}
