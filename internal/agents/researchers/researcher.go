package researchers

import (
	"context"

	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
)

// researcher is one side of the investment debate.
type researcher struct {
	env    *agents.Env
	node   string
	role   string
	label  string
	prompt string
	// own returns a pointer to the speaker's private transcript.
	own func(d *models.InvestDebateState) *string
}

func (r *researcher) Name() string { return r.node }

// Run takes one turn: retrieve memories, argue against the latest opposing turn, append to both transcripts.
func (r *researcher) Run(ctx context.Context, s *models.DeliberationState) error {
	d := s.InvestmentDebateState
	memories := r.env.Recall.For(ctx, r.role, s)

	reply, err := agents.Complete(ctx, r.env.Quick, r.prompt, map[string]any{
		"ticker":              s.CompanyOfInterest,
		"market_report":       s.MarketReport,
		"sentiment_report":    s.SentimentReport,
		"news_report":         s.NewsReport,
		"fundamentals_report": s.FundamentalsReport,
		"history":             d.History,
		"current_response":    d.CurrentResponse,
		"past_memories":       memories,
	})
	if err != nil {
		return err
	}

	turn := agents.Label(r.label, reply)
	d.History = agents.Append(d.History, turn)
	own := r.own(d)
	*own = agents.Append(*own, turn)
	d.CurrentResponse = turn
	d.Count++
	return nil
}
