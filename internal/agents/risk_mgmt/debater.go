package risk_mgmt

import (
	"context"

	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
)

// debater is one of the three risk personas. Turns rotate Risky, Safe, Neutral.
type debater struct {
	env    *agents.Env
	node   string
	label  string
	prompt string
	// record stores the turn in the speaker's own transcript and latest-response slot.
	record func(d *models.RiskDebateState, turn string)
}

func (r *debater) Name() string { return r.node }

func (r *debater) Run(ctx context.Context, s *models.DeliberationState) error {
	d := s.RiskDebateState
	reply, err := agents.Complete(ctx, r.env.Quick, r.prompt, map[string]any{
		"trader_decision":          s.TraderInvestmentPlan,
		"market_report":            s.MarketReport,
		"sentiment_report":         s.SentimentReport,
		"news_report":              s.NewsReport,
		"fundamentals_report":      s.FundamentalsReport,
		"history":                  d.History,
		"current_risky_response":   absent(d.CurrentRiskyResponse),
		"current_safe_response":    absent(d.CurrentSafeResponse),
		"current_neutral_response": absent(d.CurrentNeutralResponse),
	})
	if err != nil {
		return err
	}

	turn := agents.Label(r.label, reply)
	d.History = agents.Append(d.History, turn)
	r.record(d, turn)
	d.LatestSpeaker = r.label
	d.Count++
	return nil
}

// absent marks a persona that has not spoken yet so the prompt never implies a turn that did not happen.
func absent(s string) string {
	if s == "" {
		return "(has not spoken yet)"
	}
	return s
}
