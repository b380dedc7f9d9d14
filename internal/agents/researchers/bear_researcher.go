package researchers

import (
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
)

func NewBearResearcher(env *agents.Env) agents.Stage {
	return &researcher{
		env:    env,
		node:   consts.BearResearcher,
		role:   consts.RoleBear,
		label:  consts.Agent_BearResearcher,
		prompt: "researchers/bear_researcher",
		own:    func(d *models.InvestDebateState) *string { return &d.BearHistory },
	}
}
