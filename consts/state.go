package consts

const (
	// Analyst Team
	Agent_MarketAnalyst       = "Market Analyst"
	Agent_SocialAnalyst       = "Social Analyst"
	Agent_NewsAnalyst         = "News Analyst"
	Agent_FundamentalsAnalyst = "Fundamentals Analyst"
	// Research Team
	Agent_BullResearcher  = "Bull Analyst"
	Agent_BearResearcher  = "Bear Analyst"
	Agent_ResearchManager = "Research Manager"
	// Trading Team
	Agent_Trader = "Trader"
	// Risk Management Team
	Agent_RiskyAnalyst   = "Risky Analyst"
	Agent_NeutralAnalyst = "Neutral Analyst"
	Agent_SafeAnalyst    = "Safe Analyst"
	Agent_RiskJudge      = "Judge"
)

// Run status values persisted in the run ledger.
const (
	State_Pending   = "pending"
	State_Running   = "running"
	State_Completed = "completed"
	State_Failed    = "failed"
	State_Cancelled = "cancelled"
)

// Decision log layout: <root>/<market>/TradingAgentsStrategy_logs/full_states_log_<date>.json
const (
	DecisionLogDir        = "TradingAgentsStrategy_logs"
	DecisionLogPrefix     = "full_states_log_"
	LearningRecordPrefix  = "manual_learning_"
	LearningRecordLayout  = "20060102_150405"
	ProcessedFillsLogName = "processed_fills.log"
	PerpSuffix            = "-PERP"
	DateLayout            = "2006-01-02"
	NoPastMemories        = "No past memories found."
	DataUnavailableMarker = "data unavailable"
)
