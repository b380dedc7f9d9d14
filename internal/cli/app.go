package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dyike/tradecortex/config"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/internal/graph"
	"github.com/dyike/tradecortex/internal/llm"
	"github.com/dyike/tradecortex/internal/memory"
	"github.com/dyike/tradecortex/internal/portfolio"
	"github.com/dyike/tradecortex/internal/reflection"
	"github.com/dyike/tradecortex/internal/storage"
	"github.com/dyike/tradecortex/internal/tools"
	"go.uber.org/zap"
)

const (
	runLedgerName = "runs.db"
	// runs left in running state longer than this belong to a crashed process
	abandonAfter = 6 * time.Hour
)

// app builds the services a command needs on first use and closes them on exit.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	mu        sync.Mutex
	llmModels *llm.Models
	memory    *memory.Store
	ledger    *storage.Store
	portfolio *portfolio.Composite
	orch      *graph.Orchestrator
	engine    *reflection.Engine
}

func newApp(cfg *config.Config, logger *zap.Logger) *app {
	return &app{cfg: cfg, logger: logger}
}

func (a *app) models(ctx context.Context) (*llm.Models, error) {
	if a.llmModels != nil {
		return a.llmModels, nil
	}
	m, err := llm.NewModels(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.llmModels = m
	return m, nil
}

func (a *app) memoryStore(ctx context.Context) (*memory.Store, error) {
	if a.memory != nil {
		return a.memory, nil
	}
	m, err := a.models(ctx)
	if err != nil {
		return nil, err
	}
	store, err := memory.Open(a.cfg.MemoryDBPath, m.Embedder, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	a.memory = store
	return store, nil
}

func (a *app) runLedger(ctx context.Context) (*storage.Store, error) {
	if a.ledger != nil {
		return a.ledger, nil
	}
	store, err := storage.Open(filepath.Join(a.cfg.DataDir, runLedgerName), a.logger)
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}
	if n, err := store.MarkAbandoned(ctx, abandonAfter); err != nil {
		a.logger.Warn("mark abandoned runs", zap.Error(err))
	} else if n > 0 {
		a.logger.Info("marked abandoned runs", zap.Int64("count", n))
	}
	a.ledger = store
	return store, nil
}

func (a *app) portfolioSource() *portfolio.Composite {
	if a.portfolio == nil {
		a.portfolio = portfolio.New(a.cfg, a.logger)
	}
	return a.portfolio
}

func (a *app) orchestrator(ctx context.Context) (*graph.Orchestrator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.orch != nil {
		return a.orch, nil
	}
	m, err := a.models(ctx)
	if err != nil {
		return nil, err
	}
	mem, err := a.memoryStore(ctx)
	if err != nil {
		return nil, err
	}
	retryer := llm.NewRetryer(llm.PolicyFromConfig(a.cfg), a.logger)
	registry, err := tools.NewRegistry(ctx, tools.NewSources(a.cfg, a.logger), retryer, a.cfg.CallTimeout, a.logger)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}
	// the ledger is optional; deliberations still run without it
	ledger, err := a.runLedger(ctx)
	if err != nil {
		a.logger.Warn("run ledger disabled", zap.Error(err))
	}
	env := &agents.Env{
		Config:    a.cfg,
		Quick:     m.Quick,
		Deep:      m.Deep,
		Tools:     registry,
		Recall:    agents.NewRecall(mem, a.cfg.MemoryMatches, a.logger),
		Portfolio: a.portfolioSource(),
		Logger:    a.logger,
	}
	a.orch = graph.NewOrchestrator(env, ledger)
	return a.orch, nil
}

func (a *app) reflectionEngine(ctx context.Context) (*reflection.Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.engine != nil {
		return a.engine, nil
	}
	m, err := a.models(ctx)
	if err != nil {
		return nil, err
	}
	mem, err := a.memoryStore(ctx)
	if err != nil {
		return nil, err
	}
	a.engine = reflection.NewEngine(a.cfg, a.portfolioSource(), reflection.NewReflector(m.Deep, mem, a.logger), a.logger)
	return a.engine, nil
}

// records works without model credentials.
func (a *app) records() *reflection.Records {
	return reflection.NewRecords(a.cfg.EvalResultsDir, a.logger)
}

func (a *app) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	if a.memory != nil {
		errs = append(errs, a.memory.Close())
	}
	if a.ledger != nil {
		errs = append(errs, a.ledger.Close())
	}
	return errors.Join(errs...)
}
