package consts

const (
	// 分析师节点
	MarketAnalyst       = "market_analyst"
	SocialMediaAnalyst  = "social_media_analyst"
	NewsAnalyst         = "news_analyst"
	FundamentalsAnalyst = "fundamentals_analyst"

	// 研究员节点
	BullResearcher  = "bull_researcher"
	BearResearcher  = "bear_researcher"
	ResearchManager = "research_manager"

	// 交易员节点
	Trader = "trader"

	// 风险分析节点
	RiskyAnalyst   = "risky_analyst"
	SafeAnalyst    = "safe_analyst"
	NeutralAnalyst = "neutral_analyst"
	RiskJudge      = "risk_judge"
)

// Memory roles. Each role owns an independent memory collection.
const (
	RoleBull        = "bull"
	RoleBear        = "bear"
	RoleTrader      = "trader"
	RoleInvestJudge = "invest_judge"
	RoleRiskManager = "risk_manager"
)

// MemoryRoles lists every role the reflection engine writes for, in reflection order.
var MemoryRoles = []string{RoleBull, RoleBear, RoleTrader, RoleInvestJudge, RoleRiskManager}
