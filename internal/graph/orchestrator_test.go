package graph

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/internal/agents/agentstest"
	"github.com/dyike/tradecortex/internal/agents/managers"
	"github.com/dyike/tradecortex/internal/llm/fake"
	"github.com/dyike/tradecortex/internal/storage"
	"github.com/dyike/tradecortex/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted is a stage that logs its turn and applies the same counter updates as the real stage.
type scripted struct {
	name  string
	order *[]string
	mu    *sync.Mutex
	apply func(s *models.DeliberationState)
}

func (st *scripted) Name() string { return st.name }

func (st *scripted) Run(_ context.Context, s *models.DeliberationState) error {
	st.mu.Lock()
	*st.order = append(*st.order, st.name)
	st.mu.Unlock()
	if st.apply != nil {
		st.apply(s)
	}
	return nil
}

func scriptedStages(order *[]string) *Stages {
	mu := &sync.Mutex{}
	mk := func(name string, apply func(*models.DeliberationState)) agents.Stage {
		return &scripted{name: name, order: order, mu: mu, apply: apply}
	}
	debate := func(s *models.DeliberationState) { s.InvestmentDebateState.Count++ }
	risk := func(label string) func(*models.DeliberationState) {
		return func(s *models.DeliberationState) {
			s.RiskDebateState.LatestSpeaker = label
			s.RiskDebateState.Count++
		}
	}
	return &Stages{
		Analysts:        []agents.Stage{mk(consts.MarketAnalyst, nil), mk(consts.NewsAnalyst, nil)},
		Bull:            mk(consts.BullResearcher, debate),
		Bear:            mk(consts.BearResearcher, debate),
		ResearchManager: mk(consts.ResearchManager, nil),
		Trader:          mk(consts.Trader, nil),
		Risky:           mk(consts.RiskyAnalyst, risk(consts.Agent_RiskyAnalyst)),
		Safe:            mk(consts.SafeAnalyst, risk(consts.Agent_SafeAnalyst)),
		Neutral:         mk(consts.NeutralAnalyst, risk(consts.Agent_NeutralAnalyst)),
		RiskJudge: mk(consts.RiskJudge, func(s *models.DeliberationState) {
			s.FinalDecision = &models.FinalDecision{Action: models.ActionNeutral, Confidence: 0.5}
		}),
	}
}

func TestGraphRunsStagesInOrder(t *testing.T) {
	var order []string
	cl := NewConditionalLogic(2, 1)
	seed := models.NewDeliberationState("SPY", "2025-01-02")
	var observed []string
	r, err := NewDeliberationGraph(context.Background(), scriptedStages(&order), cl, seed,
		func(stage string, _ *models.DeliberationState) { observed = append(observed, stage) })
	require.NoError(t, err)

	final, err := r.Invoke(context.Background(), "SPY")
	require.NoError(t, err)

	assert.Equal(t, []string{
		consts.MarketAnalyst, consts.NewsAnalyst,
		consts.BullResearcher, consts.BearResearcher, consts.BullResearcher, consts.BearResearcher,
		consts.ResearchManager, consts.Trader,
		consts.RiskyAnalyst, consts.SafeAnalyst, consts.NeutralAnalyst,
		consts.RiskJudge,
	}, order)
	assert.Equal(t, order, observed)
	assert.Equal(t, 4, final.InvestmentDebateState.Count)
	assert.Equal(t, 3, final.RiskDebateState.Count)
	assert.Equal(t, 0, seed.InvestmentDebateState.Count, "seed must not be mutated")
}

func TestGraphRunsManyRoundsWithinStepBudget(t *testing.T) {
	var order []string
	cl := NewConditionalLogic(20, 20)
	stages := scriptedStages(&order)
	seed := models.NewDeliberationState("SPY", "2025-01-02")
	r, err := NewDeliberationGraph(context.Background(), stages, cl, seed, nil)
	require.NoError(t, err)

	budget := cl.StepBudget(100, len(stages.Analysts))
	assert.Greater(t, budget, 100)
	final, err := r.Invoke(context.Background(), "SPY", compose.WithRuntimeMaxSteps(budget))
	require.NoError(t, err)
	assert.Equal(t, 40, final.InvestmentDebateState.Count)
	assert.Equal(t, 60, final.RiskDebateState.Count)
	assert.Len(t, order, 2+40+2+60+1)
	assert.Equal(t, 200, cl.StepBudget(200, len(stages.Analysts)))
}

func TestStageNodeWithoutStateFails(t *testing.T) {
	var order []string
	st := scriptedStages(&order).Trader
	g := compose.NewGraph[string, string]()
	require.NoError(t, g.AddLambdaNode("trader", stageNode(st, nil)))
	require.NoError(t, g.AddEdge(compose.START, "trader"))
	require.NoError(t, g.AddEdge("trader", compose.END))
	r, err := g.Compile(context.Background())
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), "SPY")
	require.Error(t, err)
	assert.Empty(t, order)
}

// pipelineModels returns a quick model that always answers with a trading proposal and a deep
// model that submits a structured decision whenever the decision tool is bound.
func pipelineModels() (*fake.ChatModel, *fake.ChatModel) {
	quick := fake.NewChatModel(func(in []*schema.Message, _ []*schema.ToolInfo) (*schema.Message, error) {
		return schema.AssistantMessage("Looks constructive.\nFINAL TRADING PROPOSAL: LONG", nil), nil
	})
	deep := fake.NewChatModel(func(in []*schema.Message, tools []*schema.ToolInfo) (*schema.Message, error) {
		if len(tools) > 0 {
			return schema.AssistantMessage("", []schema.ToolCall{{
				ID: "d1",
				Function: schema.FunctionCall{
					Name:      managers.SubmitDecisionTool,
					Arguments: `{"action":"LONG","confidence":0.7,"reasoning":"trend and flows agree"}`,
				},
			}}), nil
		}
		return schema.AssistantMessage("Recommendation: Buy. Scale in over two sessions.", nil), nil
	})
	return quick, deep
}

func newTestOrchestrator(t *testing.T, rounds int) (*Orchestrator, *agents.Env, *storage.Store) {
	quick, deep := pipelineModels()
	env := agentstest.NewEnv(quick, deep)
	root := t.TempDir()
	env.Config.ResultsDir = filepath.Join(root, "results")
	env.Config.EvalResultsDir = filepath.Join(root, "eval_results")
	env.Config.MaxDebateRounds = rounds
	env.Config.MaxRiskDiscussRounds = rounds

	ledger, err := storage.Open(filepath.Join(root, "runs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	return NewOrchestrator(env, ledger), env, ledger
}

func TestStockDeliberationEndToEnd(t *testing.T) {
	o, env, ledger := newTestOrchestrator(t, 2)
	run, err := o.NewRun("aapl", "2025-01-02")
	require.NoError(t, err)
	assert.Equal(t, models.AssetStock, run.AssetClass)

	final, err := o.Run(context.Background(), run)
	require.NoError(t, err)

	for _, kind := range models.AllReports {
		assert.NotEmpty(t, final.Report(kind), kind)
	}
	assert.NotEmpty(t, final.InvestmentPlan)
	assert.NotEmpty(t, final.TraderInvestmentPlan)
	require.NotNil(t, final.FinalDecision)
	assert.Equal(t, models.ActionLong, final.FinalDecision.Action)

	assert.Equal(t, 4, final.InvestmentDebateState.Count)
	assert.Equal(t, 2, strings.Count(final.InvestmentDebateState.BullHistory, consts.Agent_BullResearcher+":"))
	assert.Equal(t, 2, strings.Count(final.InvestmentDebateState.BearHistory, consts.Agent_BearResearcher+":"))
	assert.Equal(t, 6, final.RiskDebateState.Count)
	assert.Equal(t, 2, strings.Count(final.RiskDebateState.SafeHistory, consts.Agent_SafeAnalyst+":"))

	assert.False(t, run.InProgress())
	assert.Equal(t, consts.State_Completed, run.Status)
	assert.NotEmpty(t, final.DecisionID)

	loaded, err := models.LoadDecisionLog(run.LogPath)
	require.NoError(t, err)
	assert.Equal(t, final.DecisionID, loaded.DecisionID)
	assert.Equal(t, final.FinalDecision.Action, loaded.FinalDecision.Action)

	_, err = os.Stat(filepath.Join(env.Config.ResultsDir, "AAPL", "2025-01-02", "reports", "complete_report.md"))
	assert.NoError(t, err)

	rec, err := ledger.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, consts.State_Completed, rec.Status)
	assert.Equal(t, models.ActionLong, rec.Action)
	stages, err := ledger.ListStages(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, stages, 4+4+1+1+6+1)
}

func TestCryptoDeliberationHasNoFundamentals(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, 1)
	run, err := o.NewRun("BTC-USD", "2025-01-02")
	require.NoError(t, err)

	final, err := o.Run(context.Background(), run)
	require.NoError(t, err)
	assert.Empty(t, final.FundamentalsReport)
	assert.NotEmpty(t, final.MarketReport)
	assert.NotEmpty(t, final.SentimentReport)
	assert.NotEmpty(t, final.NewsReport)
	assert.NotNil(t, final.FinalDecision)
}

func TestCancelledRunLeavesNoDecisionLog(t *testing.T) {
	o, env, ledger := newTestOrchestrator(t, 1)
	run, err := o.NewRun("AAPL", "2025-01-02")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.Run(ctx, run)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, consts.State_Cancelled, run.Status)
	assert.Empty(t, run.LogPath)

	_, statErr := os.Stat(models.DecisionLogPath(env.Config.EvalResultsDir, "AAPL", "2025-01-02"))
	assert.True(t, os.IsNotExist(statErr))

	rec, err := ledger.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, consts.State_Cancelled, rec.Status)
}

func TestJudgeFailureIsFatal(t *testing.T) {
	o, env, _ := newTestOrchestrator(t, 1)
	env.Deep = fake.Text("I cannot decide.")
	run, err := o.NewRun("AAPL", "2025-01-02")
	require.NoError(t, err)

	_, err = o.Run(context.Background(), run)
	require.Error(t, err)
	assert.True(t, models.IsServiceError(err))
	assert.Equal(t, consts.State_Failed, run.Status)
	assert.Nil(t, run.State.FinalDecision)
}

func TestNewRunValidates(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, 1)
	_, err := o.NewRun(" ", "2025-01-02")
	assert.Error(t, err)
	_, err = o.NewRun("AAPL", "01/02/2025")
	assert.Error(t, err)
}
