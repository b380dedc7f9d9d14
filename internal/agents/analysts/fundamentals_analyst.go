package analysts

import (
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
)

// NewFundamentalsAnalyst only applies to stocks.
func NewFundamentalsAnalyst(env *agents.Env) *Analyst {
	return &Analyst{env: env, kind: models.ReportFundamentals, node: consts.FundamentalsAnalyst, prompt: "analysts/fundamentals_analyst"}
}
