package managers

import (
	"context"

	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
)

// ResearchManager judges the bull/bear debate and writes the investment plan.
type ResearchManager struct {
	env *agents.Env
}

func NewResearchManager(env *agents.Env) *ResearchManager {
	return &ResearchManager{env: env}
}

func (m *ResearchManager) Name() string { return consts.ResearchManager }

func (m *ResearchManager) Run(ctx context.Context, s *models.DeliberationState) error {
	d := s.InvestmentDebateState
	plan, err := agents.Complete(ctx, m.env.Deep, "managers/research_manager", map[string]any{
		"ticker":        s.CompanyOfInterest,
		"history":       d.History,
		"past_memories": m.env.Recall.For(ctx, consts.RoleInvestJudge, s),
	})
	if err != nil {
		return err
	}
	d.JudgeDecision = plan
	d.CurrentResponse = plan
	s.InvestmentPlan = plan
	return nil
}
