package graph

import (
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/models"
)

// ConditionalLogic manages debate and risk discussion cycles.
// Both loops run a fixed number of turns; there is no early exit on consensus.
type ConditionalLogic struct {
	MaxDebateRounds      int
	MaxRiskDiscussRounds int
}

func NewConditionalLogic(debateRounds, riskRounds int) *ConditionalLogic {
	if debateRounds <= 0 {
		debateRounds = 1
	}
	if riskRounds <= 0 {
		riskRounds = 1
	}
	return &ConditionalLogic{MaxDebateRounds: debateRounds, MaxRiskDiscussRounds: riskRounds}
}

// StepBudget is the graph step limit for a run with the given number of analysts. The
// configured limit is raised when the round counts need more steps than it allows:
// analysts, 2n debate turns, research manager, trader, 3n risk turns, risk judge,
// collect and the end transition.
func (cl *ConditionalLogic) StepBudget(configured, analysts int) int {
	required := analysts + 2*cl.MaxDebateRounds + 3*cl.MaxRiskDiscussRounds + 4 + 2
	return max(configured, required)
}

// ShouldContinueDebate is true until bull and bear have each spoken MaxDebateRounds times.
func (cl *ConditionalLogic) ShouldContinueDebate(state *models.DeliberationState) bool {
	return state.InvestmentDebateState.Count < 2*cl.MaxDebateRounds
}

// ShouldContinueRiskDiscussion is true until each risk persona has spoken MaxRiskDiscussRounds times.
func (cl *ConditionalLogic) ShouldContinueRiskDiscussion(state *models.DeliberationState) bool {
	return state.RiskDebateState.Count < 3*cl.MaxRiskDiscussRounds
}

// NextDebater alternates starting with the bull.
func (cl *ConditionalLogic) NextDebater(state *models.DeliberationState) string {
	if !cl.ShouldContinueDebate(state) {
		return consts.ResearchManager
	}
	if state.InvestmentDebateState.Count%2 == 0 {
		return consts.BullResearcher
	}
	return consts.BearResearcher
}

// NextRiskSpeaker rotates Risky -> Safe -> Neutral.
func (cl *ConditionalLogic) NextRiskSpeaker(state *models.DeliberationState) string {
	if !cl.ShouldContinueRiskDiscussion(state) {
		return consts.RiskJudge
	}
	switch state.RiskDebateState.LatestSpeaker {
	case consts.Agent_RiskyAnalyst:
		return consts.SafeAnalyst
	case consts.Agent_SafeAnalyst:
		return consts.NeutralAnalyst
	default:
		return consts.RiskyAnalyst
	}
}
