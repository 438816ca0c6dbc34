package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/phasegate/internal/claude"
	"github.com/Iron-Ham/phasegate/internal/config"
	"github.com/Iron-Ham/phasegate/internal/errors"
	"github.com/Iron-Ham/phasegate/internal/transcript"
)

var evaluateTranscriptPath string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate the collaboration phase (UserPromptSubmit hook)",
	Long: `Evaluate reads the latest user message from the session transcript,
asks the evaluator model which phase the collaboration is in, and records
the resulting transition. A failed or timed-out evaluation leaves state
untouched, so the gate keeps blocking on the last known phase.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateTranscriptPath, "transcript-path", "", "path to the transcript JSONL file")
	_ = evaluateCmd.MarkFlagRequired("transcript-path")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	a, err := newApp("evaluate")
	if err != nil {
		return err
	}
	defer a.close()

	mode, err := config.ParseMode(a.cfg.Mode)
	if err != nil {
		return err
	}
	if mode == config.ModePull {
		a.logger.Debug("pull mode, skipping evaluation")
		return nil
	}

	s, _, err := a.states.Load()
	if err != nil {
		return err
	}
	if s.Disabled {
		a.logger.Debug("gate disabled, skipping evaluation")
		return nil
	}

	latest, ok, err := transcript.LatestUserMessage(evaluateTranscriptPath)
	if err != nil {
		return err
	}
	if !ok {
		a.logger.Debug("no user message in transcript, skipping evaluation")
		return nil
	}

	req := claude.EvalRequest{
		UserMessage:   latest.Text,
		CurrentPhase:  string(s.Phase),
		ApprovedScope: s.Scope(),
	}

	recent, err := transcript.Recent(evaluateTranscriptPath, time.Now(), a.cfg.CarryoverWindow())
	if err == nil {
		for _, m := range recent {
			if m.Text == latest.Text {
				continue
			}
			req.RecentMessages = append(req.RecentMessages, fmt.Sprintf("%s: %s", m.Role, m.Text))
		}
	}

	if records, err := a.decisions.Recent(a.cfg.CarryoverDecisionCount); err == nil {
		for _, rec := range records {
			req.RecentDecisions = append(req.RecentDecisions, rec.Summary())
		}
	}

	invoker := claude.NewCLIInvoker("")
	resp, err := invoker.Invoke(cmd.Context(), claude.SystemPrompt(), claude.BuildMessage(req), claude.Options{
		Model:     a.cfg.Model,
		SessionID: a.loadSessionID(),
		Timeout:   a.cfg.EvalTimeout(),
	})
	if err != nil {
		// State stays as it was; the gate blocks on the stale phase.
		a.logger.Error("evaluation failed", "error", err.Error())
		if errors.IsBlocking(err) {
			fmt.Fprintln(os.Stderr, "Phase evaluation failed; mutating actions stay gated on the previous phase.")
			return nil
		}
		return err
	}
	a.saveSessionID(resp.SessionID)

	eval, err := claude.ParseEvaluation(resp.Result)
	if err != nil {
		a.logger.Error("unparsable evaluation", "error", err.Error(), "result", resp.Result)
		fmt.Fprintln(os.Stderr, "Phase evaluation produced no structured output; mutating actions stay gated.")
		return nil
	}

	updated, err := a.gate.ApplyEvaluation(eval)
	if err != nil {
		if errors.Is(err, errors.ErrNoStructuredOutput) {
			a.logger.Error("evaluation named an unknown phase", "phase", eval.Phase)
			fmt.Fprintln(os.Stderr, "Phase evaluation named an unknown phase; mutating actions stay gated.")
			return nil
		}
		return err
	}

	a.logger.Info("evaluation applied",
		"phase", string(updated.Phase),
		"duration_ms", resp.DurationMS,
		"cost_usd", resp.TotalCostUSD,
	)
	fmt.Printf("phase: %s\n", updated.Phase)
	if scope := updated.Scope(); scope != "" {
		fmt.Printf("approved scope: %s\n", scope)
	}
	return nil
}
