package reflection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dyike/tradecortex/config"
	"github.com/dyike/tradecortex/models"
	"go.uber.org/zap"
)

// FillSource supplies recent fills from the exchange.
type FillSource interface {
	RecentFills(ctx context.Context, limit int, since time.Time) ([]models.Fill, error)
}

// AutoSummary counts what one automatic run did with the fetched fills.
type AutoSummary struct {
	Fetched        int `json:"fetched"`
	New            int `json:"new"`
	Reflected      int `json:"reflected"`
	SkippedZeroPnL int `json:"skipped_zero_pnl"`
	SkippedNoMatch int `json:"skipped_no_match"`
	Failed         int `json:"failed"`
}

// ManualRequest asks for a reflection on a specific decision log with a user supplied PnL.
type ManualRequest struct {
	DecisionLogPath string
	PnL             float64
	Notes           string
}

// ManualResult is the persisted outcome of manual learning.
type ManualResult = models.LearningRecord

// Engine learns from realized outcomes. Automatic runs are serialized within the process;
// separate processes must not run it concurrently.
type Engine struct {
	fills     FillSource
	reflector *Reflector
	matcher   *Matcher
	processed *ProcessedLog
	records   *Records
	limit     int
	days      int
	logger    *zap.Logger
	now       func() time.Time

	mu sync.Mutex
}

func NewEngine(cfg *config.Config, fills FillSource, reflector *Reflector, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "reflection"))
	return &Engine{
		fills:     fills,
		reflector: reflector,
		matcher:   NewMatcher(cfg.EvalResultsDir, cfg.MatchWindowDays, nil),
		processed: NewProcessedLog(cfg.ProcessedFillsLog),
		records:   NewRecords(cfg.EvalResultsDir, logger),
		limit:     cfg.FillsLimit,
		days:      cfg.FillsDays,
		logger:    logger,
		now:       time.Now,
	}
}

func (e *Engine) Records() *Records { return e.records }

func (e *Engine) Processed() *ProcessedLog { return e.processed }

type outcome int

const (
	outcomeReflected outcome = iota + 1
	outcomeZeroPnL
	outcomeNoMatch
)

// RunAuto reflects on every new fill with a realized PnL and a matching decision log.
// Fills with zero PnL or no match are consumed. A fill whose reflection fails on a service
// error stays unprocessed and is retried by the next run.
func (e *Engine) RunAuto(ctx context.Context) (*AutoSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fills == nil {
		return nil, errors.New("no fill source configured")
	}
	if err := e.processed.Load(); err != nil {
		return nil, err
	}
	since := e.now().AddDate(0, 0, -e.days)
	fills, err := e.fills.RecentFills(ctx, e.limit, since)
	if err != nil {
		return nil, fmt.Errorf("fetch fills: %w", err)
	}

	sum := &AutoSummary{Fetched: len(fills)}
	seen := make(map[string]bool, len(fills))
	for _, fill := range fills {
		if fill.ID == "" || seen[fill.ID] || e.processed.Contains(fill.ID) {
			continue
		}
		seen[fill.ID] = true
		sum.New++

		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := e.processFill(ctx, fill)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return sum, ctx.Err()
		case models.IsDataFormatError(err):
			// an unreadable log will not become readable; consume the fill
			sum.Failed++
			e.logger.Warn("decision log unreadable", zap.String("fill_id", fill.ID), zap.Error(err))
			if err := e.processed.Append(fill.ID); err != nil {
				return sum, err
			}
			continue
		default:
			sum.Failed++
			e.logger.Warn("reflection failed, fill left for next run", zap.String("fill_id", fill.ID), zap.Error(err))
			continue
		}
		switch res {
		case outcomeReflected:
			sum.Reflected++
		case outcomeZeroPnL:
			sum.SkippedZeroPnL++
		case outcomeNoMatch:
			sum.SkippedNoMatch++
		}
	}
	e.logger.Info("automatic learning finished",
		zap.Int("fetched", sum.Fetched), zap.Int("new", sum.New), zap.Int("reflected", sum.Reflected),
		zap.Int("zero_pnl", sum.SkippedZeroPnL), zap.Int("no_match", sum.SkippedNoMatch), zap.Int("failed", sum.Failed))
	return sum, nil
}

// ProcessFill reflects on a single fill. It refuses fills already in the processed log.
func (e *Engine) ProcessFill(ctx context.Context, fill models.Fill) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.processed.Load(); err != nil {
		return err
	}
	_, err := e.processFill(ctx, fill)
	return err
}

// processFill checks the ledger before reflecting and appends to it afterwards.
func (e *Engine) processFill(ctx context.Context, fill models.Fill) (outcome, error) {
	if e.processed.Contains(fill.ID) {
		return 0, &models.IdempotenceViolation{FillID: fill.ID}
	}
	logger := e.logger.With(zap.String("fill_id", fill.ID), zap.String("market", fill.Market))

	if fill.RealizedPnL.IsZero() {
		logger.Debug("no realized pnl, consumed")
		return outcomeZeroPnL, e.processed.Append(fill.ID)
	}

	path, err := e.matcher.Find(fill)
	if err != nil {
		if models.IsMatchError(err) {
			logger.Info("no decision log for fill, consumed", zap.Error(err))
			return outcomeNoMatch, e.processed.Append(fill.ID)
		}
		return 0, err
	}

	state, err := models.LoadDecisionLog(path)
	if err != nil {
		return 0, err
	}
	logger.Info("reflecting on fill", zap.String("decision_id", state.DecisionID), zap.Float64("pnl", fill.PnL()))
	if _, err := e.reflector.Reflect(ctx, state, fill.PnL(), "", fill.ID); err != nil {
		return 0, err
	}
	return outcomeReflected, e.processed.Append(fill.ID)
}

// LearnManual reflects on req.DecisionLogPath with the user supplied PnL. The processed
// fills log is not touched. A successful result is also saved as a learning record.
func (e *Engine) LearnManual(ctx context.Context, req ManualRequest) (*ManualResult, error) {
	at := e.now()
	res := &ManualResult{
		DecisionLogPath: req.DecisionLogPath,
		InputPnL:        req.PnL,
		UserNotes:       req.Notes,
		Reflections:     map[string]string{},
		Timestamp:       at.Format(time.RFC3339),
	}
	fail := func(err error) (*ManualResult, error) {
		res.Error = err.Error()
		return res, err
	}

	if strings.TrimSpace(req.DecisionLogPath) == "" {
		return fail(errors.New("decision log path is required"))
	}
	state, err := models.LoadDecisionLog(req.DecisionLogPath)
	if err != nil {
		return fail(err)
	}
	if state.DecisionID == "" {
		return fail(&models.DataFormatError{Path: req.DecisionLogPath, Err: errors.New("decision log has no decision_id")})
	}
	res.DecisionID = state.DecisionID

	sourceID := fmt.Sprintf("manual:%s:%s", state.DecisionID, at.Format(time.RFC3339Nano))
	lessons, err := e.reflector.Reflect(ctx, state, req.PnL, req.Notes, sourceID)
	for role, text := range lessons {
		res.Reflections[role] = text
	}
	if err != nil {
		return fail(err)
	}

	res.Success = true
	if _, err := e.records.Save(res, at); err != nil {
		e.logger.Warn("save learning record", zap.Error(err))
	}
	e.logger.Info("manual learning finished",
		zap.String("decision_id", res.DecisionID), zap.Float64("pnl", req.PnL), zap.Int("roles", len(res.Reflections)))
	return res, nil
}
