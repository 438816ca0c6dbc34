// Package cmd implements the phasegate CLI. Each subcommand maps to either
// a Claude Code hook entry point (evaluate, check, context-inject,
// precompact) or a user-facing operation (init, override, acknowledge,
// history, reset, disable, enable, setup-oh).
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/phasegate/internal/config"
	"github.com/Iron-Ham/phasegate/internal/gate"
	"github.com/Iron-Ham/phasegate/internal/history"
	"github.com/Iron-Ham/phasegate/internal/logging"
	"github.com/Iron-Ham/phasegate/internal/oh"
	"github.com/Iron-Ham/phasegate/internal/state"
	"github.com/Iron-Ham/phasegate/internal/tools"
	"github.com/Iron-Ham/phasegate/internal/tracker"
)

var rootCmd = &cobra.Command{
	Use:   "phasegate",
	Short: "Collaboration phase gate for Claude Code",
	Long: `Phasegate infers which phase a pairing session is in (exploring,
discussing, ready) and blocks mutating tool actions until the user has
agreed to a plan. It runs as Claude Code hooks: evaluate on each user
prompt, check before each tool use.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// app bundles the wired components every subcommand needs.
type app struct {
	projectDir string
	dotDir     string
	cfg        *config.Config
	logger     *logging.Logger
	states     *state.Manager
	decisions  *history.Log
	gate       *gate.Gate
}

// newApp wires the components for the current working directory. The debug
// log is only written once init has created the dot directory; before that
// logging is discarded rather than littering unvisited projects.
func newApp(command string) (*app, error) {
	projectDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	dotDir := config.Dir(projectDir)

	cfg, err := config.Load(projectDir)
	if err != nil {
		return nil, err
	}

	logger := logging.Discard()
	if _, err := os.Stat(dotDir); err == nil {
		if l, err := logging.NewLogger(dotDir, cfg.LogLevel); err == nil {
			logger = l
		}
	}
	logger = logger.WithCommand(command)
	for _, w := range cfg.Warnings {
		logger.Warn("config value skipped", "detail", w)
	}

	states := state.NewManager(dotDir)
	decisions := history.NewLog(dotDir)
	tasks := tracker.NewAdapter(tracker.NewExecRunner(""))

	return &app{
		projectDir: projectDir,
		dotDir:     dotDir,
		cfg:        cfg,
		logger:     logger,
		states:     states,
		decisions:  decisions,
		gate:       gate.New(tools.DefaultRegistry(), states, tasks, decisions, decisions, logger),
	}, nil
}

// close releases the app's resources.
func (a *app) close() {
	_ = a.logger.Close()
}

// integration assembles the optional OH integration, when configured.
func (a *app) integration() (*oh.Integration, bool) {
	return oh.NewIntegration(a.cfg.EndeavorID())
}
