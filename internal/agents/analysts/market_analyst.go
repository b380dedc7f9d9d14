package analysts

import (
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
)

// NewMarketAnalyst reads candles and technical indicators.
func NewMarketAnalyst(env *agents.Env) *Analyst {
	return &Analyst{env: env, kind: models.ReportMarket, node: consts.MarketAnalyst, prompt: "analysts/market_analyst"}
}
