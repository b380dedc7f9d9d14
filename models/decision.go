package models

import (
	"regexp"
	"strings"
)

// Action is the directional outcome of a deliberation.
type Action string

const (
	ActionLong    Action = "LONG"
	ActionShort   Action = "SHORT"
	ActionNeutral Action = "NEUTRAL"
)

// FinalDecision is the structured output of the risk judge.
type FinalDecision struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ParseAction normalizes current and legacy vocabularies. BUY/SELL/HOLD map to LONG/SHORT/NEUTRAL.
func ParseAction(s string) (Action, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return ActionLong, true
	case "SHORT", "SELL":
		return ActionShort, true
	case "NEUTRAL", "HOLD":
		return ActionNeutral, true
	}
	return "", false
}

var proposalPattern = regexp.MustCompile(`(?i)FINAL (TRADING PROPOSAL|TRADE DECISION)[:：]\s*(LONG|SHORT|NEUTRAL|BUY|SELL|HOLD)`)

// ExtractProposal recovers the action from the first FINAL TRADING PROPOSAL / FINAL TRADE DECISION
// marker in text.
func ExtractProposal(text string) (Action, bool) {
	m := proposalPattern.FindStringSubmatch(text)
	if len(m) < 3 {
		return "", false
	}
	return ParseAction(m[2])
}
