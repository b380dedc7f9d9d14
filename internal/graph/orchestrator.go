package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/internal/storage"
	"github.com/dyike/tradecortex/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrRunInProgress = errors.New("deliberation already in progress")

// DeliberationRun is the caller's handle on one deliberation.
type DeliberationRun struct {
	ID         string
	Symbol     string
	Date       string
	AssetClass models.AssetClass
	State      *models.DeliberationState
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	LogPath    string
	Err        error

	mu     sync.Mutex
	cancel context.CancelFunc
}

// InProgress reports whether the run has started and not yet finished.
func (r *DeliberationRun) InProgress() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Status == consts.State_Running
}

// Cancel stops the run before its next stage.
func (r *DeliberationRun) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *DeliberationRun) finish(status string, state *models.DeliberationState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = status
	r.FinishedAt = time.Now()
	r.Err = err
	if state != nil {
		r.State = state
	}
	r.cancel = nil
}

// Orchestrator runs deliberations. It is safe to run several at once for different assets.
type Orchestrator struct {
	env    *agents.Env
	ledger *storage.Store
	logger *zap.Logger
}

// NewOrchestrator returns an orchestrator over env. ledger may be nil.
func NewOrchestrator(env *agents.Env, ledger *storage.Store) *Orchestrator {
	logger := env.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{env: env, ledger: ledger, logger: logger.With(zap.String("component", "orchestrator"))}
}

// NewRun seeds a run for symbol on date (YYYY-MM-DD).
func (o *Orchestrator) NewRun(symbol, date string) (*DeliberationRun, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.New("empty symbol")
	}
	if _, err := time.Parse(consts.DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid trade date %q: %w", date, err)
	}
	state := models.NewDeliberationState(symbol, date)
	state.DecisionID = uuid.NewString()
	return &DeliberationRun{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Date:       date,
		AssetClass: state.AssetClass,
		State:      state,
		Status:     consts.State_Pending,
	}, nil
}

// Run executes the full pipeline and persists the decision log. A failed or cancelled run
// leaves no decision log behind.
func (o *Orchestrator) Run(ctx context.Context, run *DeliberationRun) (*models.DeliberationState, error) {
	run.mu.Lock()
	if run.Status == consts.State_Running {
		run.mu.Unlock()
		return nil, ErrRunInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	run.cancel = cancel
	run.Status = consts.State_Running
	run.StartedAt = time.Now()
	seed := run.State.Clone()
	run.mu.Unlock()

	cfg := o.env.Config
	logger := o.logger.With(zap.String("run_id", run.ID), zap.String("symbol", run.Symbol), zap.String("date", run.Date))
	defer o.env.Recall.Forget(seed.DecisionID)

	var recorder *storage.RunRecorder
	if o.ledger != nil {
		// the ledger row must be written even when the caller has already cancelled
		rec, err := storage.NewRunRecorder(context.WithoutCancel(ctx), o.ledger, models.RunRecord{
			ID:         run.ID,
			Symbol:     run.Symbol,
			TradeDate:  run.Date,
			AssetClass: run.AssetClass,
			DecisionID: seed.DecisionID,
			CreatedAt:  run.StartedAt,
		}, logger)
		if err != nil {
			logger.Warn("run ledger unavailable", zap.Error(err))
		} else {
			recorder = rec
		}
	}
	reports := newReportWriter(cfg.ResultsDir, run.Symbol, run.Date, logger)

	observe := func(stage string, s *models.DeliberationState) {
		out := StageOutput(stage, s)
		reports.Stage(stage, out)
		if recorder != nil {
			recorder.RecordStage(stage, out)
		}
	}

	logger.Info("deliberation started", zap.Stringer("asset_class", run.AssetClass))
	final, err := o.execute(ctx, seed, observe, logger)
	if err == nil {
		final.Timestamp = time.Now().UTC().Format(time.RFC3339)
		run.LogPath, err = models.WriteDecisionLog(cfg.EvalResultsDir, final)
	}

	status := consts.State_Completed
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		status = consts.State_Cancelled
	default:
		status = consts.State_Failed
	}

	if recorder != nil {
		rec := models.RunRecord{Status: status, DecisionID: seed.DecisionID, LogPath: run.LogPath}
		if err != nil {
			rec.Error = err.Error()
		}
		if final != nil && final.FinalDecision != nil {
			rec.Action = final.FinalDecision.Action
		}
		recorder.Finish(rec)
	}

	if err != nil {
		run.finish(status, nil, err)
		logger.Warn("deliberation ended", zap.String("status", status), zap.Error(err))
		return nil, err
	}
	reports.Final(final)
	run.finish(status, final, nil)
	logger.Info("deliberation completed",
		zap.String("action", string(final.FinalDecision.Action)),
		zap.Float64("confidence", final.FinalDecision.Confidence),
		zap.String("log", run.LogPath))
	return final.Clone(), nil
}

func (o *Orchestrator) execute(ctx context.Context, seed *models.DeliberationState, observe StageObserver,
	logger *zap.Logger) (*models.DeliberationState, error) {
	cfg := o.env.Config
	cl := NewConditionalLogic(cfg.MaxDebateRounds, cfg.MaxRiskDiscussRounds)
	stages := NewStages(o.env, seed.AssetClass)
	runnable, err := NewDeliberationGraph(ctx, stages, cl, seed, observe)
	if err != nil {
		return nil, fmt.Errorf("build deliberation graph: %w", err)
	}
	final, err := runnable.Invoke(ctx, seed.CompanyOfInterest,
		compose.WithRuntimeMaxSteps(cl.StepBudget(cfg.MaxRecurLimit, len(stages.Analysts))),
		compose.WithCallbacks(NewLoggerCallback(logger).Handler()),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, err
	}
	if final == nil || final.FinalDecision == nil {
		return nil, &models.ServiceError{Op: consts.RiskJudge, Err: errors.New("deliberation produced no final decision")}
	}
	return final, nil
}

// StageOutput picks the text a stage contributed.
func StageOutput(stage string, s *models.DeliberationState) string {
	switch stage {
	case consts.MarketAnalyst:
		return s.MarketReport
	case consts.SocialMediaAnalyst:
		return s.SentimentReport
	case consts.NewsAnalyst:
		return s.NewsReport
	case consts.FundamentalsAnalyst:
		return s.FundamentalsReport
	case consts.BullResearcher, consts.BearResearcher:
		return s.InvestmentDebateState.CurrentResponse
	case consts.ResearchManager:
		return s.InvestmentPlan
	case consts.Trader:
		return s.TraderInvestmentPlan
	case consts.RiskyAnalyst:
		return s.RiskDebateState.CurrentRiskyResponse
	case consts.SafeAnalyst:
		return s.RiskDebateState.CurrentSafeResponse
	case consts.NeutralAnalyst:
		return s.RiskDebateState.CurrentNeutralResponse
	case consts.RiskJudge:
		return s.FinalTradeDecision
	}
	return ""
}
