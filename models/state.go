package models

import (
	"strings"
)

// InvestDebateState represents the investment debate state
type InvestDebateState struct {
	BullHistory     string `json:"bull_history"`     // Bullish conversation history
	BearHistory     string `json:"bear_history"`     // Bearish conversation history
	History         string `json:"history"`          // Conversation history
	CurrentResponse string `json:"current_response"` // Latest response
	JudgeDecision   string `json:"judge_decision"`   // Final judge decision
	Count           int    `json:"count"`            // Turns taken so far
}

// RiskDebateState represents the risk management team debate state
type RiskDebateState struct {
	RiskyHistory           string `json:"risky_history"`            // Risky Agent's conversation history
	SafeHistory            string `json:"safe_history"`             // Safe Agent's conversation history
	NeutralHistory         string `json:"neutral_history"`          // Neutral Agent's conversation history
	History                string `json:"history"`                  // Overall conversation history
	LatestSpeaker          string `json:"latest_speaker"`           // Analyst that spoke last
	CurrentRiskyResponse   string `json:"current_risky_response"`   // Latest response by risky analyst
	CurrentSafeResponse    string `json:"current_safe_response"`    // Latest response by safe analyst
	CurrentNeutralResponse string `json:"current_neutral_response"` // Latest response by neutral analyst
	JudgeDecision          string `json:"judge_decision"`           // Judge's decision
	Count                  int    `json:"count"`                    // Turns taken so far
}

// DeliberationState is the single record every stage reads from and appends to.
type DeliberationState struct {
	DecisionID        string       `json:"decision_id"`
	Timestamp         string       `json:"timestamp"`
	CompanyOfInterest string       `json:"company_of_interest"`
	TradeDate         string       `json:"trade_date"`
	AssetClass        AssetClass   `json:"asset_class"`
	SelectedAnalysts  []ReportKind `json:"selected_analysts"`

	MarketReport       string `json:"market_report"`
	SentimentReport    string `json:"sentiment_report"`
	NewsReport         string `json:"news_report"`
	FundamentalsReport string `json:"fundamentals_report"`

	InvestmentDebateState *InvestDebateState `json:"investment_debate_state"`
	InvestmentPlan        string             `json:"investment_plan"`
	TraderInvestmentPlan  string             `json:"trader_investment_plan"`
	RiskDebateState       *RiskDebateState   `json:"risk_debate_state"`
	FinalTradeDecision    string             `json:"final_trade_decision"`
	FinalDecision         *FinalDecision     `json:"final_decision,omitempty"`
}

// NewDeliberationState seeds a state for symbol on date, resolving the asset class once.
func NewDeliberationState(symbol, date string) *DeliberationState {
	class := ClassifyAsset(symbol)
	reports := Capabilities(class).Reports
	selected := make([]ReportKind, len(reports))
	copy(selected, reports)
	return &DeliberationState{
		CompanyOfInterest:     symbol,
		TradeDate:             date,
		AssetClass:            class,
		SelectedAnalysts:      selected,
		InvestmentDebateState: &InvestDebateState{},
		RiskDebateState:       &RiskDebateState{},
	}
}

// Report returns the report text for kind.
func (s *DeliberationState) Report(kind ReportKind) string {
	switch kind {
	case ReportMarket:
		return s.MarketReport
	case ReportSentiment:
		return s.SentimentReport
	case ReportNews:
		return s.NewsReport
	case ReportFundamentals:
		return s.FundamentalsReport
	}
	return ""
}

// SetReport stores the report text for kind.
func (s *DeliberationState) SetReport(kind ReportKind, text string) {
	switch kind {
	case ReportMarket:
		s.MarketReport = text
	case ReportSentiment:
		s.SentimentReport = text
	case ReportNews:
		s.NewsReport = text
	case ReportFundamentals:
		s.FundamentalsReport = text
	}
}

// Situation is the concatenation of the four reports, used as the memory query and record key.
func (s *DeliberationState) Situation() string {
	parts := make([]string, 0, len(AllReports))
	for _, kind := range AllReports {
		parts = append(parts, s.Report(kind))
	}
	return strings.Join(parts, "\n\n")
}

// Clone returns a deep copy so a stage can read a snapshot outside the state lock.
func (s *DeliberationState) Clone() *DeliberationState {
	if s == nil {
		return nil
	}
	c := *s
	if s.SelectedAnalysts != nil {
		c.SelectedAnalysts = append([]ReportKind(nil), s.SelectedAnalysts...)
	}
	if s.InvestmentDebateState != nil {
		d := *s.InvestmentDebateState
		c.InvestmentDebateState = &d
	}
	if s.RiskDebateState != nil {
		r := *s.RiskDebateState
		c.RiskDebateState = &r
	}
	if s.FinalDecision != nil {
		f := *s.FinalDecision
		c.FinalDecision = &f
	}
	return &c
}

func (s *DeliberationState) ensureDebateStates() {
	if s.InvestmentDebateState == nil {
		s.InvestmentDebateState = &InvestDebateState{}
	}
	if s.RiskDebateState == nil {
		s.RiskDebateState = &RiskDebateState{}
	}
}
