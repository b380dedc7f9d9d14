package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/memory"
	"github.com/dyike/tradecortex/models"
	"github.com/stretchr/testify/assert"
)

type stubReader struct {
	embeds  int
	embErr  error
	matches map[string][]memory.Match
}

func (s *stubReader) Embed(ctx context.Context, text string) ([]float64, error) {
	s.embeds++
	return []float64{1}, s.embErr
}

func (s *stubReader) Count(ctx context.Context, role string) (int, error) {
	return len(s.matches[role]), nil
}

func (s *stubReader) GetMemoriesByVector(ctx context.Context, role string, vec []float64, n int) ([]memory.Match, error) {
	m := s.matches[role]
	if len(m) > n {
		m = m[:n]
	}
	return m, nil
}

func TestRecallEmbedsOncePerDecision(t *testing.T) {
	r := &stubReader{matches: map[string][]memory.Match{
		consts.RoleBull: {{Recommendation: "lesson one"}, {Recommendation: "lesson two"}, {Recommendation: "lesson three"}},
	}}
	rc := NewRecall(r, 2, nil)
	s := models.NewDeliberationState("AAPL", "2025-01-02")
	s.DecisionID = "d1"

	bull := rc.For(context.Background(), consts.RoleBull, s)
	bear := rc.For(context.Background(), consts.RoleBear, s)

	assert.Equal(t, 1, r.embeds)
	assert.Equal(t, "lesson one\n\nlesson two\n\n", bull)
	assert.Equal(t, consts.NoPastMemories, bear)

	rc.Forget("d1")
	rc.For(context.Background(), consts.RoleBull, s)
	assert.Equal(t, 2, r.embeds)
}

func TestRecallDegradesOnEmbeddingFailure(t *testing.T) {
	r := &stubReader{embErr: errors.New("quota"), matches: map[string][]memory.Match{
		consts.RoleTrader: {{Recommendation: "t"}},
		consts.RoleBull:   {{Recommendation: "b"}},
	}}
	rc := NewRecall(r, 2, nil)
	s := models.NewDeliberationState("AAPL", "2025-01-02")

	assert.Equal(t, consts.NoPastMemories, rc.For(context.Background(), consts.RoleTrader, s))
	assert.Equal(t, consts.NoPastMemories, rc.For(context.Background(), consts.RoleBull, s))
	assert.Equal(t, 1, r.embeds)
}

func TestRecallSkipsEmbeddingForEmptyRoles(t *testing.T) {
	r := &stubReader{}
	rc := NewRecall(r, 2, nil)
	s := models.NewDeliberationState("AAPL", "2025-01-02")
	s.DecisionID = "d-empty"

	for _, role := range consts.MemoryRoles {
		assert.Equal(t, consts.NoPastMemories, rc.For(context.Background(), role, s), role)
	}
	assert.Zero(t, r.embeds)
}

func TestNilRecall(t *testing.T) {
	var rc *Recall
	assert.Equal(t, consts.NoPastMemories, rc.For(context.Background(), consts.RoleBull, models.NewDeliberationState("X", "2025-01-01")))
}
