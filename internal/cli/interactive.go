package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/dyike/tradecortex/internal/reflection"
	"go.uber.org/zap"
)

// learnInteractive walks the user through picking an unlearned decision and
// recording its outcome. A failed attempt can be retried with the same input.
func learnInteractive(ctx context.Context, w io.Writer, a *app) error {
	records := a.records()
	logs, err := records.ListDecisionLogs()
	if err != nil {
		return err
	}
	logs, err = records.FilterUnlearned(logs)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		fmt.Fprintln(w, "Every decision log has already been learned from.")
		return nil
	}

	picked, err := PromptForDecisionLog(logs)
	if err != nil {
		return interrupted(err)
	}
	pnl, notes, err := PromptForOutcome()
	if err != nil {
		return interrupted(err)
	}
	ok, err := Confirm(fmt.Sprintf("Learn from %s with pnl %+.4f?", picked.DecisionID, pnl), true)
	if err != nil || !ok {
		return interrupted(err)
	}

	engine, err := a.reflectionEngine(ctx)
	if err != nil {
		return err
	}
	req := reflection.ManualRequest{DecisionLogPath: picked.Path, PnL: pnl, Notes: notes}
	for {
		res, err := engine.LearnManual(ctx, req)
		if err == nil {
			renderManualResult(w, res)
			return nil
		}
		a.logger.Warn("manual learning failed", zap.String("log", picked.Path), zap.Error(err))
		fmt.Fprintln(w, errorStyle.Render("Learning failed: ")+err.Error())
		retry, perr := Confirm("Retry?", true)
		if perr != nil || !retry {
			return err
		}
	}
}

// interrupted turns a Ctrl-C at a prompt into a clean exit.
func interrupted(err error) error {
	if err == nil || errors.Is(err, terminal.InterruptErr) {
		return nil
	}
	return err
}
