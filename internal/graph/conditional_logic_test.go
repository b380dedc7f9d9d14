package graph

import (
	"testing"

	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/models"
	"github.com/stretchr/testify/assert"
)

func TestDebateAlternatesAndStopsAt2n(t *testing.T) {
	for _, rounds := range []int{1, 2, 3} {
		cl := NewConditionalLogic(rounds, 1)
		s := models.NewDeliberationState("AAPL", "2025-01-02")
		var seq []string
		for next := cl.NextDebater(s); next != consts.ResearchManager; next = cl.NextDebater(s) {
			seq = append(seq, next)
			s.InvestmentDebateState.Count++
		}
		assert.Len(t, seq, 2*rounds)
		for i, who := range seq {
			if i%2 == 0 {
				assert.Equal(t, consts.BullResearcher, who)
			} else {
				assert.Equal(t, consts.BearResearcher, who)
			}
		}
	}
}

func TestRiskRotatesAndStopsAt3n(t *testing.T) {
	labels := map[string]string{
		consts.RiskyAnalyst:   consts.Agent_RiskyAnalyst,
		consts.SafeAnalyst:    consts.Agent_SafeAnalyst,
		consts.NeutralAnalyst: consts.Agent_NeutralAnalyst,
	}
	cl := NewConditionalLogic(1, 2)
	s := models.NewDeliberationState("AAPL", "2025-01-02")
	var seq []string
	for next := cl.NextRiskSpeaker(s); next != consts.RiskJudge; next = cl.NextRiskSpeaker(s) {
		seq = append(seq, next)
		s.RiskDebateState.LatestSpeaker = labels[next]
		s.RiskDebateState.Count++
	}
	assert.Equal(t, []string{
		consts.RiskyAnalyst, consts.SafeAnalyst, consts.NeutralAnalyst,
		consts.RiskyAnalyst, consts.SafeAnalyst, consts.NeutralAnalyst,
	}, seq)
}

func TestConditionalLogicClampsRounds(t *testing.T) {
	cl := NewConditionalLogic(0, -1)
	assert.Equal(t, 1, cl.MaxDebateRounds)
	assert.Equal(t, 1, cl.MaxRiskDiscussRounds)
}
