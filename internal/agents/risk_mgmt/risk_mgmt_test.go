package risk_mgmt

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents/agentstest"
	"github.com/dyike/tradecortex/internal/llm/fake"
	"github.com/dyike/tradecortex/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskRotationNeverInventsTurns(t *testing.T) {
	m := fake.NewChatModel(func(in []*schema.Message, _ []*schema.ToolInfo) (*schema.Message, error) {
		p := fake.Prompt(in)
		switch {
		case strings.Contains(p, "As the Risky"):
			return schema.AssistantMessage("go big", nil), nil
		case strings.Contains(p, "As the Safe"):
			return schema.AssistantMessage("protect capital", nil), nil
		}
		return schema.AssistantMessage("size moderately", nil), nil
	})
	env := agentstest.NewEnv(m, m)
	s := models.NewDeliberationState("AAPL", "2025-01-02")
	s.TraderInvestmentPlan = "FINAL TRADING PROPOSAL: LONG"

	for _, st := range []interface {
		Run(context.Context, *models.DeliberationState) error
	}{NewRiskyAnalyst(env), NewSafeAnalyst(env), NewNeutralAnalyst(env)} {
		require.NoError(t, st.Run(context.Background(), s))
	}

	d := s.RiskDebateState
	assert.Equal(t, 3, d.Count)
	assert.Equal(t, consts.Agent_NeutralAnalyst, d.LatestSpeaker)
	assert.Equal(t, "Risky Analyst: go big", d.CurrentRiskyResponse)
	assert.Equal(t, "Safe Analyst: protect capital", d.SafeHistory)
	assert.Equal(t, "Neutral Analyst: size moderately", d.NeutralHistory)

	calls := m.Calls()
	risky := fake.Prompt(calls[0])
	assert.Contains(t, risky, "Last argument from the safe analyst: (has not spoken yet)")
	assert.Contains(t, risky, "Last argument from the neutral analyst: (has not spoken yet)")
	assert.Contains(t, risky, "FINAL TRADING PROPOSAL: LONG")

	safe := fake.Prompt(calls[1])
	assert.Contains(t, safe, "Last response from the risky analyst: Risky Analyst: go big")
	assert.Contains(t, safe, "Last response from the neutral analyst: (has not spoken yet)")
}
