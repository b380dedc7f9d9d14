package risk_mgmt

import (
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
)

func NewRiskyAnalyst(env *agents.Env) agents.Stage {
	return &debater{
		env:    env,
		node:   consts.RiskyAnalyst,
		label:  consts.Agent_RiskyAnalyst,
		prompt: "risk_mgmt/risky_analyst",
		record: func(d *models.RiskDebateState, turn string) {
			d.RiskyHistory = agents.Append(d.RiskyHistory, turn)
			d.CurrentRiskyResponse = turn
		},
	}
}
