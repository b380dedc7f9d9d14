package managers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
	"go.uber.org/zap"
)

const (
	SubmitDecisionTool = "submit_final_decision"
	// confidence assigned when the decision is recovered from free text
	FallbackConfidence = 0.5
)

var submitDecisionInfo = &schema.ToolInfo{
	Name: SubmitDecisionTool,
	Desc: "Submit the final trade decision for this deliberation",
	ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
		"action":     {Type: schema.String, Desc: "LONG, SHORT or NEUTRAL", Enum: []string{"LONG", "SHORT", "NEUTRAL"}, Required: true},
		"confidence": {Type: schema.Number, Desc: "Confidence between 0 and 1", Required: true},
		"reasoning":  {Type: schema.String, Desc: "Why this action, citing the debate", Required: true},
	}),
}

// RiskManager is the terminal judge. It asks for structured output and falls back to the marker regex.
type RiskManager struct {
	env *agents.Env
}

func NewRiskManager(env *agents.Env) *RiskManager {
	return &RiskManager{env: env}
}

func (m *RiskManager) Name() string { return consts.RiskJudge }

func (m *RiskManager) Run(ctx context.Context, s *models.DeliberationState) error {
	d := s.RiskDebateState
	in, err := agents.Render(ctx, "managers/risk_manager", map[string]any{
		"ticker":        s.CompanyOfInterest,
		"trader_plan":   s.TraderInvestmentPlan,
		"history":       d.History,
		"past_memories": m.env.Recall.For(ctx, consts.RoleRiskManager, s),
	})
	if err != nil {
		return err
	}

	bound, err := m.env.Deep.WithTools([]*schema.ToolInfo{submitDecisionInfo})
	if err != nil {
		return fmt.Errorf("bind decision tool: %w", err)
	}
	out, err := bound.Generate(ctx, in)
	if err != nil {
		return err
	}

	decision, text, err := ParseDecision(out)
	if err != nil {
		return &models.ServiceError{Op: "risk judge", Err: err}
	}
	m.env.LoggerFor(consts.RiskJudge).Info("final decision",
		zap.String("symbol", s.CompanyOfInterest),
		zap.String("action", string(decision.Action)),
		zap.Float64("confidence", decision.Confidence))

	d.JudgeDecision = text
	d.LatestSpeaker = consts.Agent_RiskJudge
	s.FinalTradeDecision = text
	s.FinalDecision = decision
	return nil
}

type submittedDecision struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ParseDecision reads the structured tool call if present, else the FINAL TRADE DECISION marker.
// The returned text always ends with the marker so the regex shim can recover the action later.
func ParseDecision(msg *schema.Message) (*models.FinalDecision, string, error) {
	for _, call := range msg.ToolCalls {
		if call.Function.Name != SubmitDecisionTool {
			continue
		}
		var sub submittedDecision
		if err := json.Unmarshal([]byte(call.Function.Arguments), &sub); err != nil {
			return nil, "", fmt.Errorf("decode %s arguments: %w", SubmitDecisionTool, err)
		}
		action, ok := models.ParseAction(sub.Action)
		if !ok {
			return nil, "", fmt.Errorf("invalid action %q", sub.Action)
		}
		conf := sub.Confidence
		if conf < 0 {
			conf = 0
		} else if conf > 1 {
			conf = 1
		}
		reasoning := strings.TrimSpace(sub.Reasoning)
		if reasoning == "" {
			reasoning = strings.TrimSpace(msg.Content)
		}
		text := strings.TrimSpace(reasoning + "\n\nFINAL TRADE DECISION: " + string(action))
		return &models.FinalDecision{Action: action, Confidence: conf, Reasoning: reasoning}, text, nil
	}

	text := strings.TrimSpace(msg.Content)
	action, ok := models.ExtractProposal(text)
	if !ok {
		return nil, "", errors.New("judge returned neither a structured decision nor a FINAL TRADE DECISION marker")
	}
	return &models.FinalDecision{Action: action, Confidence: FallbackConfidence, Reasoning: text}, text, nil
}
