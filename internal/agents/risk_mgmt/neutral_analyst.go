package risk_mgmt

import (
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
)

func NewNeutralAnalyst(env *agents.Env) agents.Stage {
	return &debater{
		env:    env,
		node:   consts.NeutralAnalyst,
		label:  consts.Agent_NeutralAnalyst,
		prompt: "risk_mgmt/neutral_analyst",
		record: func(d *models.RiskDebateState, turn string) {
			d.NeutralHistory = agents.Append(d.NeutralHistory, turn)
			d.CurrentNeutralResponse = turn
		},
	}
}
