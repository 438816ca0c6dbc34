package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/phasegate/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent gate decisions and evaluations",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "maximum number of records to show")
	rootCmd.AddCommand(historyCmd)
}

var (
	allowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	blockStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	phaseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	faintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp("history")
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.decisions.Recent(historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(faintStyle.Render("No decisions recorded yet."))
		return nil
	}

	for _, rec := range records {
		line := rec.Summary()
		switch {
		case rec.Kind == history.KindGate && rec.Decision == "allow":
			line = allowStyle.Render(line)
		case rec.Kind == history.KindGate:
			line = blockStyle.Render(line)
		case rec.Kind == history.KindEvaluation:
			line = phaseStyle.Render(line)
		}
		fmt.Println(line)
	}
	return nil
}
