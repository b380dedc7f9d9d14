package risk_mgmt

import (
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
)

func NewSafeAnalyst(env *agents.Env) agents.Stage {
	return &debater{
		env:    env,
		node:   consts.SafeAnalyst,
		label:  consts.Agent_SafeAnalyst,
		prompt: "risk_mgmt/safe_analyst",
		record: func(d *models.RiskDebateState, turn string) {
			d.SafeHistory = agents.Append(d.SafeHistory, turn)
			d.CurrentSafeResponse = turn
		},
	}
}
