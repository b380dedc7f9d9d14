package trader

import (
	"context"
	"testing"

	"github.com/dyike/tradecortex/internal/agents/agentstest"
	"github.com/dyike/tradecortex/internal/llm/fake"
	"github.com/dyike/tradecortex/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraderUsesPlanAndPortfolio(t *testing.T) {
	m := fake.Text("Buy 10%.\nFINAL TRADING PROPOSAL: LONG")
	env := agentstest.NewEnv(m, m)
	env.Portfolio = agentstest.Portfolio("Positions:\n- AAPL 100 shares")

	s := models.NewDeliberationState("AAPL", "2025-01-02")
	s.InvestmentPlan = "accumulate on dips"
	require.NoError(t, New(env).Run(context.Background(), s))

	assert.Equal(t, "Buy 10%.\nFINAL TRADING PROPOSAL: LONG", s.TraderInvestmentPlan)
	prompt := fake.Prompt(m.Calls()[0])
	assert.Contains(t, prompt, "accumulate on dips")
	assert.Contains(t, prompt, "AAPL 100 shares")

	action, ok := models.ExtractProposal(s.TraderInvestmentPlan)
	require.True(t, ok)
	assert.Equal(t, models.ActionLong, action)
}

func TestTraderWithoutPortfolio(t *testing.T) {
	m := fake.Text("FINAL TRADING PROPOSAL: HOLD")
	s := models.NewDeliberationState("BTC-USD", "2025-01-02")
	require.NoError(t, New(agentstest.NewEnv(m, m)).Run(context.Background(), s))
	assert.Contains(t, fake.Prompt(m.Calls()[0]), noPortfolio)
}
