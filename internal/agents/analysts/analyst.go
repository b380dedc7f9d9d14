package analysts

import (
	"context"
	"fmt"
	"time"

	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
	"go.uber.org/zap"
)

// Analyst runs one tool-augmented report loop and stores the report on the state.
type Analyst struct {
	env    *agents.Env
	kind   models.ReportKind
	node   string
	prompt string
}

var _ agents.Stage = (*Analyst)(nil)

func (a *Analyst) Name() string { return a.node }

func (a *Analyst) Kind() models.ReportKind { return a.kind }

func (a *Analyst) Run(ctx context.Context, s *models.DeliberationState) error {
	logger := a.env.LoggerFor(a.node)
	tools, err := a.env.Tools.ForReport(s.AssetClass, a.kind)
	if err != nil {
		return err
	}

	msgs, err := agents.Render(ctx, a.prompt, map[string]any{
		"ticker":       s.CompanyOfInterest,
		"current_date": s.TradeDate,
		"asset_class":  s.AssetClass.String(),
	})
	if err != nil {
		return err
	}

	loop := &agents.ToolLoop{
		Model:   a.env.Quick,
		Tools:   tools,
		Ceiling: a.env.Config.ToolLoopCeiling,
		Logger:  logger,
	}
	start := time.Now()
	report, err := loop.Run(ctx, msgs)
	if err != nil {
		return fmt.Errorf("%s: %w", a.node, err)
	}
	if report == "" {
		report = fmt.Sprintf("%s report: %s.", a.kind, consts.DataUnavailableMarker)
	}
	s.SetReport(a.kind, report)
	logger.Info("report ready", zap.Int("chars", len(report)), zap.Duration("took", time.Since(start)))
	return nil
}

// For returns the analysts applicable to class, in canonical report order.
func For(env *agents.Env, class models.AssetClass) []*Analyst {
	ctors := map[models.ReportKind]func(*agents.Env) *Analyst{
		models.ReportMarket:       NewMarketAnalyst,
		models.ReportSentiment:    NewSocialAnalyst,
		models.ReportNews:         NewNewsAnalyst,
		models.ReportFundamentals: NewFundamentalsAnalyst,
	}
	var out []*Analyst
	for _, kind := range models.Capabilities(class).Reports {
		out = append(out, ctors[kind](env))
	}
	return out
}
