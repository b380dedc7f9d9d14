package analysts

import (
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
)

func NewSocialAnalyst(env *agents.Env) *Analyst {
	return &Analyst{env: env, kind: models.ReportSentiment, node: consts.SocialMediaAnalyst, prompt: "analysts/social_analyst"}
}
