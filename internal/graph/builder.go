package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/internal/agents/analysts"
	"github.com/dyike/tradecortex/internal/agents/managers"
	"github.com/dyike/tradecortex/internal/agents/researchers"
	"github.com/dyike/tradecortex/internal/agents/risk_mgmt"
	"github.com/dyike/tradecortex/internal/agents/trader"
	"github.com/dyike/tradecortex/models"
)

const collectNode = "collect"

// StageObserver sees a copy of the state after every stage.
type StageObserver func(stage string, s *models.DeliberationState)

// Stages is the cast of one deliberation.
type Stages struct {
	Analysts        []agents.Stage
	Bull            agents.Stage
	Bear            agents.Stage
	ResearchManager agents.Stage
	Trader          agents.Stage
	Risky           agents.Stage
	Safe            agents.Stage
	Neutral         agents.Stage
	RiskJudge       agents.Stage
}

// NewStages builds the stages applicable to class.
func NewStages(env *agents.Env, class models.AssetClass) *Stages {
	st := &Stages{
		Bull:            researchers.NewBullResearcher(env),
		Bear:            researchers.NewBearResearcher(env),
		ResearchManager: managers.NewResearchManager(env),
		Trader:          trader.New(env),
		Risky:           risk_mgmt.NewRiskyAnalyst(env),
		Safe:            risk_mgmt.NewSafeAnalyst(env),
		Neutral:         risk_mgmt.NewNeutralAnalyst(env),
		RiskJudge:       managers.NewRiskManager(env),
	}
	for _, a := range analysts.For(env, class) {
		st.Analysts = append(st.Analysts, a)
	}
	return st
}

// debateHandOff handles the bull/bear researcher debate cycle
func (cl *ConditionalLogic) debateHandOff(ctx context.Context, _ string) (next string, err error) {
	err = compose.ProcessState[*models.DeliberationState](ctx, func(_ context.Context, s *models.DeliberationState) error {
		next = cl.NextDebater(s)
		return nil
	})
	return next, err
}

// riskHandOff handles the three-way risk analysis cycle
func (cl *ConditionalLogic) riskHandOff(ctx context.Context, _ string) (next string, err error) {
	err = compose.ProcessState[*models.DeliberationState](ctx, func(_ context.Context, s *models.DeliberationState) error {
		next = cl.NextRiskSpeaker(s)
		return nil
	})
	return next, err
}

// stageNode runs st on a private snapshot and writes the result back. The state lock is not held
// while the stage talks to the model.
func stageNode(st agents.Stage, observe StageObserver) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		var snap *models.DeliberationState
		if err := compose.ProcessState[*models.DeliberationState](ctx, func(_ context.Context, s *models.DeliberationState) error {
			snap = s.Clone()
			return nil
		}); err != nil {
			return "", fmt.Errorf("%s: %w", st.Name(), err)
		}
		if snap == nil {
			return "", fmt.Errorf("%s: no deliberation state", st.Name())
		}
		if err := st.Run(ctx, snap); err != nil {
			return "", fmt.Errorf("%s: %w", st.Name(), err)
		}
		if err := compose.ProcessState[*models.DeliberationState](ctx, func(_ context.Context, s *models.DeliberationState) error {
			*s = *snap
			return nil
		}); err != nil {
			return "", err
		}
		if observe != nil {
			observe(st.Name(), snap.Clone())
		}
		return st.Name(), nil
	})
}

func collect(ctx context.Context, _ string) (out *models.DeliberationState, err error) {
	err = compose.ProcessState[*models.DeliberationState](ctx, func(_ context.Context, s *models.DeliberationState) error {
		out = s.Clone()
		return nil
	})
	return out, err
}

// NewDeliberationGraph compiles the pipeline for one run. seed becomes the graph's local state.
func NewDeliberationGraph(ctx context.Context, st *Stages, cl *ConditionalLogic, seed *models.DeliberationState,
	observe StageObserver) (compose.Runnable[string, *models.DeliberationState], error) {
	g := compose.NewGraph[string, *models.DeliberationState](
		compose.WithGenLocalState(func(context.Context) *models.DeliberationState {
			return seed.Clone()
		}),
	)

	nodes := append([]agents.Stage{}, st.Analysts...)
	nodes = append(nodes, st.Bull, st.Bear, st.ResearchManager, st.Trader, st.Risky, st.Safe, st.Neutral, st.RiskJudge)
	for _, node := range nodes {
		if err := g.AddLambdaNode(node.Name(), stageNode(node, observe), compose.WithNodeName(node.Name())); err != nil {
			return nil, fmt.Errorf("add node %s: %w", node.Name(), err)
		}
	}
	if err := g.AddLambdaNode(collectNode, compose.InvokableLambda(collect)); err != nil {
		return nil, err
	}

	// 分析师顺序执行
	prev := compose.START
	for _, a := range st.Analysts {
		if err := g.AddEdge(prev, a.Name()); err != nil {
			return nil, err
		}
		prev = a.Name()
	}

	debateOut := map[string]bool{
		consts.BullResearcher:  true,
		consts.BearResearcher:  true,
		consts.ResearchManager: true,
	}
	riskOut := map[string]bool{
		consts.RiskyAnalyst:   true,
		consts.SafeAnalyst:    true,
		consts.NeutralAnalyst: true,
		consts.RiskJudge:      true,
	}

	edges := [][2]string{
		{prev, consts.BullResearcher},
		{consts.ResearchManager, consts.Trader},
		{consts.Trader, consts.RiskyAnalyst},
		{consts.RiskJudge, collectNode},
		{collectNode, compose.END},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("add edge %s -> %s: %w", e[0], e[1], err)
		}
	}
	for _, node := range []string{consts.BullResearcher, consts.BearResearcher} {
		if err := g.AddBranch(node, compose.NewGraphBranch(cl.debateHandOff, debateOut)); err != nil {
			return nil, err
		}
	}
	for _, node := range []string{consts.RiskyAnalyst, consts.SafeAnalyst, consts.NeutralAnalyst} {
		if err := g.AddBranch(node, compose.NewGraphBranch(cl.riskHandOff, riskOut)); err != nil {
			return nil, err
		}
	}

	return g.Compile(ctx,
		compose.WithGraphName("TradeCortex-"+seed.AssetClass.String()),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
	)
}
