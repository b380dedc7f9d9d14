package trader

import (
	"context"
	"strings"

	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
	"go.uber.org/zap"
)

const noPortfolio = "No live portfolio context available."

type Trader struct {
	env *agents.Env
}

func New(env *agents.Env) *Trader {
	return &Trader{env: env}
}

func (t *Trader) Name() string { return consts.Trader }

func (t *Trader) Run(ctx context.Context, s *models.DeliberationState) error {
	logger := t.env.LoggerFor(consts.Trader)

	live := noPortfolio
	if t.env.Portfolio != nil {
		text, err := t.env.Portfolio.LiveContext(ctx, s.CompanyOfInterest)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			logger.Warn("portfolio context unavailable", zap.Error(err))
		case strings.TrimSpace(text) != "":
			live = text
		}
	}

	plan, err := agents.Complete(ctx, t.env.Quick, "trader/trader", map[string]any{
		"ticker":            s.CompanyOfInterest,
		"investment_plan":   s.InvestmentPlan,
		"portfolio_context": live,
		"past_memories":     t.env.Recall.For(ctx, consts.RoleTrader, s),
	})
	if err != nil {
		return err
	}
	if _, ok := models.ExtractProposal(plan); !ok {
		logger.Warn("trader reply has no FINAL TRADING PROPOSAL marker", zap.String("symbol", s.CompanyOfInterest))
	}
	s.TraderInvestmentPlan = plan
	return nil
}
