package reflection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
	"go.uber.org/zap"
)

// MemoryWriter is the write side of the memory store.
type MemoryWriter interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Add(ctx context.Context, rec models.MemoryRecord) (bool, error)
}

// Reflector turns a past decision and its outcome into one lesson per role.
type Reflector struct {
	model  model.BaseChatModel
	memory MemoryWriter
	logger *zap.Logger
}

func NewReflector(m model.BaseChatModel, mem MemoryWriter, logger *zap.Logger) *Reflector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reflector{model: m, memory: mem, logger: logger.With(zap.String("component", "reflector"))}
}

// RolePortion is the part of s a role was responsible for.
func RolePortion(role string, s *models.DeliberationState) string {
	var text string
	switch role {
	case consts.RoleBull:
		if s.InvestmentDebateState != nil {
			text = s.InvestmentDebateState.BullHistory
		}
	case consts.RoleBear:
		if s.InvestmentDebateState != nil {
			text = s.InvestmentDebateState.BearHistory
		}
	case consts.RoleTrader:
		text = s.TraderInvestmentPlan
	case consts.RoleInvestJudge:
		if s.InvestmentDebateState != nil {
			text = s.InvestmentDebateState.JudgeDecision
		}
		if strings.TrimSpace(text) == "" {
			text = s.InvestmentPlan
		}
	case consts.RoleRiskManager:
		if s.RiskDebateState != nil {
			text = s.RiskDebateState.JudgeDecision
		}
		if strings.TrimSpace(text) == "" {
			text = s.FinalTradeDecision
		}
	}
	return strings.TrimSpace(text)
}

// Reflect asks for a lesson per role whose portion is non-empty and stores each one.
// sourceID makes the write idempotent: reflecting twice with the same sourceID stores nothing new.
// On error the lessons produced so far are returned with it.
func (r *Reflector) Reflect(ctx context.Context, s *models.DeliberationState, pnl float64, notes, sourceID string) (map[string]string, error) {
	situation := s.Situation()
	if strings.TrimSpace(situation) == "" {
		return nil, &models.DataFormatError{Err: errors.New("decision has no reports to reflect on")}
	}
	if strings.TrimSpace(notes) == "" {
		notes = "(none)"
	}

	// one embedding per decision, shared by every role
	vec, err := r.memory.Embed(ctx, situation)
	if err != nil {
		return nil, fmt.Errorf("embed situation: %w", err)
	}

	lessons := make(map[string]string, len(consts.MemoryRoles))
	for _, role := range consts.MemoryRoles {
		portion := RolePortion(role, s)
		if portion == "" {
			r.logger.Debug("role absent from decision, skipped", zap.String("role", role))
			continue
		}
		lesson, err := agents.Complete(ctx, r.model, "reflection/reflector", map[string]any{
			"role":      role,
			"pnl":       strconv.FormatFloat(pnl, 'f', -1, 64),
			"notes":     notes,
			"decision":  portion,
			"situation": situation,
		})
		if err != nil {
			return lessons, fmt.Errorf("reflect %s: %w", role, err)
		}
		if lesson == "" {
			return lessons, &models.ServiceError{Op: "reflect " + role, Err: errors.New("empty reflection")}
		}
		if _, err := r.memory.Add(ctx, models.MemoryRecord{
			Role:           role,
			DecisionID:     s.DecisionID,
			SourceID:       sourceID,
			Situation:      situation,
			Recommendation: lesson,
			Embedding:      vec,
		}); err != nil {
			return lessons, fmt.Errorf("store %s lesson: %w", role, err)
		}
		lessons[role] = lesson
	}
	r.logger.Info("reflection stored",
		zap.String("decision_id", s.DecisionID),
		zap.String("source", sourceID),
		zap.Int("roles", len(lessons)))
	return lessons, nil
}
