package agents

import (
	"context"
	"sync"

	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/memory"
	"github.com/dyike/tradecortex/models"
	"go.uber.org/zap"
)

// MemoryReader is the read side of the memory store.
type MemoryReader interface {
	Count(ctx context.Context, role string) (int, error)
	Embed(ctx context.Context, text string) ([]float64, error)
	GetMemoriesByVector(ctx context.Context, role string, vec []float64, n int) ([]memory.Match, error)
}

// Recall retrieves past lessons for a role. The situation embedding is computed once per decision.
type Recall struct {
	store  MemoryReader
	n      int
	logger *zap.Logger

	mu      sync.Mutex
	vectors map[string]embedded
}

type embedded struct {
	vec []float64
	err error
}

func NewRecall(store MemoryReader, n int, logger *zap.Logger) *Recall {
	if logger == nil {
		logger = zap.NewNop()
	}
	if n <= 0 {
		n = 2
	}
	return &Recall{store: store, n: n, logger: logger, vectors: make(map[string]embedded)}
}

// For returns formatted memories for role. Retrieval failures degrade to the empty-memory text.
func (r *Recall) For(ctx context.Context, role string, s *models.DeliberationState) string {
	if r == nil || r.store == nil {
		return consts.NoPastMemories
	}
	n, err := r.store.Count(ctx, role)
	if err != nil {
		r.logger.Warn("memory count failed", zap.String("role", role), zap.Error(err))
		return consts.NoPastMemories
	}
	if n == 0 {
		return consts.NoPastMemories
	}
	vec, err := r.vector(ctx, s)
	if err != nil {
		r.logger.Warn("memory retrieval skipped", zap.String("role", role), zap.Error(err))
		return consts.NoPastMemories
	}
	matches, err := r.store.GetMemoriesByVector(ctx, role, vec, r.n)
	if err != nil {
		r.logger.Warn("memory retrieval failed", zap.String("role", role), zap.Error(err))
		return consts.NoPastMemories
	}
	return memory.FormatMatches(matches)
}

// Forget drops the cached embedding for a finished decision.
func (r *Recall) Forget(decisionID string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.vectors, decisionID)
	r.mu.Unlock()
}

func (r *Recall) vector(ctx context.Context, s *models.DeliberationState) ([]float64, error) {
	key := s.DecisionID
	if key == "" {
		key = s.CompanyOfInterest + "|" + s.TradeDate
	}
	r.mu.Lock()
	e, ok := r.vectors[key]
	r.mu.Unlock()
	if ok {
		return e.vec, e.err
	}
	vec, err := r.store.Embed(ctx, s.Situation())
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	// failures are cached too so one outage costs one call per decision
	r.mu.Lock()
	r.vectors[key] = embedded{vec: vec, err: err}
	r.mu.Unlock()
	return vec, err
}
