package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/phasegate/internal/config"
	"github.com/Iron-Ham/phasegate/internal/state"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize phasegate for a project",
	Long: `Init creates the .phasegate directory with a default config and an
initial state record, and prints the hook configuration to add to the
project's Claude Code settings.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

const hookSettings = `{
  "hooks": {
    "UserPromptSubmit": [
      {"hooks": [{"type": "command", "command": "phasegate evaluate --transcript-path \"$CLAUDE_TRANSCRIPT_PATH\""}]}
    ],
    "PreToolUse": [
      {"matcher": "*", "hooks": [{"type": "command", "command": "phasegate check --tool-name \"$CLAUDE_TOOL_NAME\""}]}
    ],
    "SessionStart": [
      {"hooks": [{"type": "command", "command": "phasegate context-inject"}]}
    ],
    "PreCompact": [
      {"hooks": [{"type": "command", "command": "phasegate precompact --transcript-path \"$CLAUDE_TRANSCRIPT_PATH\""}]}
    ]
  }
}`

func runInit(cmd *cobra.Command, args []string) error {
	projectDir, err := os.Getwd()
	if err != nil {
		return err
	}
	dotDir := config.Dir(projectDir)

	if err := os.MkdirAll(dotDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dotDir, err)
	}

	configPath := config.File(projectDir)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		defaults := config.Default()
		content := fmt.Sprintf(
			"mode: %s\nmodel: %s\neval_timeout_seconds: %d\ncarryover_decision_count: %d\ncarryover_window_minutes: %d\n",
			defaults.Mode, defaults.Model, defaults.EvalTimeoutSeconds,
			defaults.CarryoverDecisionCount, defaults.CarryoverWindowMinutes,
		)
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created %s\n", configPath)
	} else {
		fmt.Printf("Config already exists at %s\n", configPath)
	}

	states := state.NewManager(dotDir)
	if !states.Exists() {
		if err := states.Save(state.Default()); err != nil {
			return err
		}
		fmt.Printf("Created %s\n", states.Path())
	}

	fmt.Println("\nAdd these hooks to .claude/settings.json:")
	fmt.Println(hookSettings)
	return nil
}
