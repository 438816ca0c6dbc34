package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/phasegate/internal/setup"
)

var setupOHCmd = &cobra.Command{
	Use:   "setup-oh",
	Short: "Set up the Open Horizons integration",
	Long: `Setup-oh runs an interactive wizard that collects an OH API key,
verifies it, and writes the shared credentials file. Decisions are then
mirrored to the endeavor named by oh_endeavor_id or OH_ENDEAVOR_ID.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setup.Run()
	},
}

func init() {
	rootCmd.AddCommand(setupOHCmd)
}
