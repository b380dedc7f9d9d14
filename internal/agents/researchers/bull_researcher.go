package researchers

import (
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
)

func NewBullResearcher(env *agents.Env) agents.Stage {
	return &researcher{
		env:    env,
		node:   consts.BullResearcher,
		role:   consts.RoleBull,
		label:  consts.Agent_BullResearcher,
		prompt: "researchers/bull_researcher",
		own:    func(d *models.InvestDebateState) *string { return &d.BullHistory },
	}
}
