package analysts

import (
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
)

// NewNewsAnalyst covers asset headlines and macro news.
func NewNewsAnalyst(env *agents.Env) *Analyst {
	return &Analyst{env: env, kind: models.ReportNews, node: consts.NewsAnalyst, prompt: "analysts/news_analyst"}
}
