package reflection

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/dyike/tradecortex/config"
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/llm/fake"
	"github.com/dyike/tradecortex/internal/memory"
	"github.com/dyike/tradecortex/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decidedState(symbol, date, id string) *models.DeliberationState {
	s := models.NewDeliberationState(symbol, date)
	s.DecisionID = id
	s.MarketReport = "uptrend above the 50 day average"
	s.SentimentReport = "retail euphoric"
	s.NewsReport = "ETF inflows"
	s.InvestmentDebateState.BullHistory = "Bull Analyst: momentum"
	s.InvestmentDebateState.BearHistory = "Bear Analyst: froth"
	s.InvestmentDebateState.JudgeDecision = "Buy on dips"
	s.InvestmentPlan = "Buy on dips"
	s.TraderInvestmentPlan = "FINAL TRADING PROPOSAL: LONG"
	s.RiskDebateState.JudgeDecision = "FINAL TRADE DECISION: LONG"
	s.FinalTradeDecision = "FINAL TRADE DECISION: LONG"
	s.FinalDecision = &models.FinalDecision{Action: models.ActionLong, Confidence: 0.6}
	return s
}

type fills []models.Fill

func (f fills) RecentFills(context.Context, int, time.Time) ([]models.Fill, error) {
	return f, nil
}

type harness struct {
	cfg    *config.Config
	engine *Engine
	store  *memory.Store
	model  *fake.ChatModel
}

func newHarness(t *testing.T, src FillSource, model *fake.ChatModel) *harness {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfigWithRoot(root)
	store, err := memory.Open(filepath.Join(root, "memory.db"), &fake.Embedder{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	if model == nil {
		model = fake.Text("Lesson: trim size into euphoric sentiment.")
	}
	e := NewEngine(cfg, src, NewReflector(model, store, nil), nil)
	e.matcher = NewMatcher(cfg.EvalResultsDir, cfg.MatchWindowDays, time.UTC)
	return &harness{cfg: cfg, engine: e, store: store, model: model}
}

func (h *harness) writeLog(t *testing.T, s *models.DeliberationState) string {
	t.Helper()
	path, err := models.WriteDecisionLog(h.cfg.EvalResultsDir, s)
	require.NoError(t, err)
	return path
}

func memCount(t *testing.T, s *memory.Store, role string) int {
	n, err := s.Count(context.Background(), role)
	require.NoError(t, err)
	return n
}

func TestProcessedLogAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", consts.ProcessedFillsLogName)
	p := NewProcessedLog(path)
	require.NoError(t, p.Load())
	assert.False(t, p.Contains("f1"))

	require.NoError(t, p.Append("f1"))
	require.NoError(t, p.Append("f1"))
	require.NoError(t, p.Append("f2"))
	assert.Error(t, p.Append("bad\nid"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "f1\nf2\n", string(data))

	again := NewProcessedLog(path)
	require.NoError(t, again.Load())
	assert.True(t, again.Contains("f2"))
	assert.Equal(t, 2, again.Len())
}

func TestProcessedLogUnterminatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), consts.ProcessedFillsLogName)
	require.NoError(t, os.WriteFile(path, []byte("fillA"), 0o644))

	p := NewProcessedLog(path)
	require.NoError(t, p.Load())
	require.True(t, p.Contains("fillA"))
	require.NoError(t, p.Append("fillB"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fillA\nfillB\n", string(data))

	again := NewProcessedLog(path)
	require.NoError(t, again.Load())
	assert.True(t, again.Contains("fillA"))
	assert.True(t, again.Contains("fillB"))
	assert.Equal(t, 2, again.Len())
}

func TestProcessedLogConcurrentAppends(t *testing.T) {
	p := NewProcessedLog(filepath.Join(t.TempDir(), "p.log"))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Append("same"))
		}()
	}
	wg.Wait()
	data, err := os.ReadFile(p.Path())
	require.NoError(t, err)
	assert.Equal(t, "same\n", string(data))
}

func TestMatcherWindow(t *testing.T) {
	root := t.TempDir()
	_, err := models.WriteDecisionLog(root, decidedState("BTC-USD", "2025-03-01", "d1"))
	require.NoError(t, err)
	m := NewMatcher(root, 2, time.UTC)

	at := func(s string) time.Time {
		ts, err := time.Parse(time.RFC3339, s)
		require.NoError(t, err)
		return ts
	}
	for _, ts := range []string{"2025-03-01T08:00:00Z", "2025-03-02T23:59:00Z"} {
		path, err := m.Find(models.Fill{ID: "x", Market: "BTC-USD-PERP", CreatedAt: at(ts)})
		require.NoError(t, err, ts)
		assert.Equal(t, models.DecisionLogPath(root, "BTC-USD", "2025-03-01"), path)
	}

	_, err = m.Find(models.Fill{ID: "late", Market: "BTC-USD-PERP", CreatedAt: at("2025-03-03T00:01:00Z")})
	var me *models.MatchError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "BTC-USD", me.Market)
	assert.Equal(t, []string{"2025-03-03", "2025-03-02"}, me.Dates)

	_, err = m.Find(models.Fill{ID: "early", Market: "BTC-USD-PERP", CreatedAt: at("2025-02-28T12:00:00Z")})
	assert.True(t, models.IsMatchError(err))
}

func TestRolePortion(t *testing.T) {
	s := decidedState("AAPL", "2025-01-02", "d1")
	assert.Equal(t, "Bull Analyst: momentum", RolePortion(consts.RoleBull, s))
	assert.Equal(t, "Buy on dips", RolePortion(consts.RoleInvestJudge, s))
	s.RiskDebateState.JudgeDecision = ""
	assert.Equal(t, s.FinalTradeDecision, RolePortion(consts.RoleRiskManager, s))
	s.InvestmentDebateState = nil
	assert.Empty(t, RolePortion(consts.RoleBear, s))
}

func TestLearnManualWritesFiveRoles(t *testing.T) {
	h := newHarness(t, nil, nil)
	path := h.writeLog(t, decidedState("BTC-USD", "2025-03-01", "d-manual"))

	res, err := h.engine.LearnManual(context.Background(), ManualRequest{DecisionLogPath: path, PnL: 5.25, Notes: "closed early"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "d-manual", res.DecisionID)
	assert.Equal(t, 5.25, res.InputPnL)
	assert.Len(t, res.Reflections, 5)
	for _, role := range consts.MemoryRoles {
		assert.NotEmpty(t, res.Reflections[role], role)
		assert.Equal(t, 1, memCount(t, h.store, role), role)
	}
	assert.Contains(t, fake.Prompt(h.model.Calls()[0]), "5.25")
	assert.Contains(t, fake.Prompt(h.model.Calls()[0]), "closed early")

	recs, err := h.engine.Records().List()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, path, recs[0].DecisionLogPath)
	assert.FileExists(t, recs[0].File)
	assert.Equal(t, 0, h.engine.Processed().Len())

	unlearned, err := h.engine.Records().FilterUnlearned([]DecisionLogRef{{Path: path}, {Path: "/other.json"}})
	require.NoError(t, err)
	require.Len(t, unlearned, 1)
	assert.Equal(t, "/other.json", unlearned[0].Path)
}

func TestLearnManualSkipsAbsentRoles(t *testing.T) {
	h := newHarness(t, nil, nil)
	s := decidedState("AAPL", "2025-01-02", "d-partial")
	s.InvestmentDebateState.BearHistory = ""
	path := h.writeLog(t, s)

	res, err := h.engine.LearnManual(context.Background(), ManualRequest{DecisionLogPath: path, PnL: -1})
	require.NoError(t, err)
	assert.Len(t, res.Reflections, 4)
	assert.NotContains(t, res.Reflections, consts.RoleBear)
}

func TestLearnManualFailures(t *testing.T) {
	h := newHarness(t, nil, nil)
	res, err := h.engine.LearnManual(context.Background(), ManualRequest{})
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)

	bad := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = h.engine.LearnManual(context.Background(), ManualRequest{DecisionLogPath: bad, PnL: 1})
	assert.True(t, models.IsDataFormatError(err))

	failing := fake.NewChatModel(func([]*schema.Message, []*schema.ToolInfo) (*schema.Message, error) {
		return nil, &models.ServiceError{Op: "chat", Err: errors.New("503")}
	})
	h = newHarness(t, nil, failing)
	path := h.writeLog(t, decidedState("AAPL", "2025-01-02", "d1"))
	res, err = h.engine.LearnManual(context.Background(), ManualRequest{DecisionLogPath: path, PnL: 1})
	assert.True(t, models.IsServiceError(err))
	assert.False(t, res.Success)
	recs, err := h.engine.Records().List()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func fill(id, market string, pnl float64, at time.Time) models.Fill {
	return models.Fill{ID: id, Market: market, Side: "SELL", RealizedPnL: decimal.NewFromFloat(pnl), CreatedAt: at}
}

func TestRunAutoIsIdempotent(t *testing.T) {
	day := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	src := fills{
		fill("f-win", "BTC-USD-PERP", 12.5, day),
		fill("f-open", "BTC-USD-PERP", 0, day),
		fill("f-orphan", "ETH-USD-PERP", -3, day),
		fill("f-win", "BTC-USD-PERP", 12.5, day),
	}
	h := newHarness(t, src, nil)
	h.writeLog(t, decidedState("BTC-USD", "2025-03-01", "d-auto"))

	sum, err := h.engine.RunAuto(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AutoSummary{Fetched: 4, New: 3, Reflected: 1, SkippedZeroPnL: 1, SkippedNoMatch: 1}, *sum)
	for _, role := range consts.MemoryRoles {
		assert.Equal(t, 1, memCount(t, h.store, role), role)
	}
	calls := len(h.model.Calls())

	again, err := h.engine.RunAuto(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AutoSummary{Fetched: 4}, *again)
	assert.Len(t, h.model.Calls(), calls, "processed fills must never be reflected again")

	err = h.engine.ProcessFill(context.Background(), src[0])
	assert.True(t, models.IsIdempotenceViolation(err))
}

func TestRunAutoLeavesServiceFailuresForRetry(t *testing.T) {
	day := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	fail := true
	model := fake.NewChatModel(func([]*schema.Message, []*schema.ToolInfo) (*schema.Message, error) {
		if fail {
			return nil, &models.ServiceError{Op: "chat", Err: errors.New("rate limited"), Temporary: true}
		}
		return schema.AssistantMessage("Lesson learned.", nil), nil
	})
	h := newHarness(t, fills{fill("f1", "BTC-USD-PERP", 4, day)}, model)
	h.writeLog(t, decidedState("BTC-USD", "2025-03-01", "d1"))

	sum, err := h.engine.RunAuto(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.False(t, h.engine.Processed().Contains("f1"))

	fail = false
	sum, err = h.engine.RunAuto(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Reflected)
	assert.True(t, h.engine.Processed().Contains("f1"))
}

func TestRecordsListingAndDelete(t *testing.T) {
	h := newHarness(t, nil, nil)
	btc := h.writeLog(t, decidedState("BTC-USD", "2025-03-01", "d-btc"))
	h.writeLog(t, decidedState("BTC-USD", "2025-03-05", "d-btc2"))
	h.writeLog(t, decidedState("AAPL", "2025-03-02", "d-aapl"))

	_, err := h.engine.LearnManual(context.Background(), ManualRequest{DecisionLogPath: btc, PnL: 2})
	require.NoError(t, err)

	grouped, err := h.engine.Records().DecisionLogs()
	require.NoError(t, err)
	require.Len(t, grouped["BTC-USD"], 2)
	assert.Equal(t, "2025-03-05", grouped["BTC-USD"][0].Date)
	assert.True(t, grouped["BTC-USD"][1].Learned)
	assert.Len(t, grouped["AAPL"], 1)

	found, err := h.engine.Records().Search("d-aapl")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "AAPL", found[0].Market)

	res, err := h.engine.Records().DeleteDecision(context.Background(), btc, h.store)
	require.NoError(t, err)
	assert.Equal(t, "d-btc", res.DecisionID)
	assert.Equal(t, 1, res.RecordsRemoved)
	assert.Equal(t, int64(5), res.MemoriesRemoved)
	assert.NoFileExists(t, btc)
	assert.Equal(t, 0, memCount(t, h.store, consts.RoleBull))

	recs, err := h.engine.Records().List()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDeleteLegacyDecisionCascadesMemories(t *testing.T) {
	day := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	h := newHarness(t, fills{fill("f-legacy", "BTC-USD-PERP", 3.5, day)}, nil)

	s := decidedState("BTC-USD", "2025-03-10", "")
	data, err := json.Marshal(map[string]any{s.TradeDate: s})
	require.NoError(t, err)
	path := models.DecisionLogPath(h.cfg.EvalResultsDir, "BTC-USD", "2025-03-10")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))

	sum, err := h.engine.RunAuto(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Reflected)
	assert.Equal(t, 1, memCount(t, h.store, consts.RoleBull))

	res, err := h.engine.Records().DeleteDecision(context.Background(), path, h.store)
	require.NoError(t, err)
	assert.Equal(t, models.LegacyDecisionID("BTC-USD", "2025-03-10"), res.DecisionID)
	assert.Equal(t, int64(5), res.MemoriesRemoved)
	assert.NoFileExists(t, path)
	for _, role := range consts.MemoryRoles {
		assert.Equal(t, 0, memCount(t, h.store, role), role)
	}
}
