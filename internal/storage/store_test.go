package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecorderPersistsStagesAndOutcome(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec, err := NewRunRecorder(ctx, s, models.RunRecord{ID: "r1", Symbol: "AAPL", TradeDate: "2025-01-02", AssetClass: models.AssetStock}, nil)
	require.NoError(t, err)

	run, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, consts.State_Running, run.Status)

	rec.RecordStage(consts.MarketAnalyst, "uptrend")
	rec.RecordStage(consts.BullResearcher, "Bull Analyst: buy")
	rec.Finish(models.RunRecord{Status: consts.State_Completed, DecisionID: "d1", Action: models.ActionLong, LogPath: "/x.json"})

	run, err = s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, consts.State_Completed, run.Status)
	assert.Equal(t, "d1", run.DecisionID)
	assert.Equal(t, models.ActionLong, run.Action)
	assert.Equal(t, models.AssetStock, run.AssetClass)

	stages, err := s.ListStages(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, consts.MarketAnalyst, stages[0].Stage)
	assert.Equal(t, 2, stages[1].Seq)

	// late events after Finish are dropped, not panics
	rec.RecordStage(consts.Trader, "late")
}

func TestListRunsFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateRun(ctx, models.RunRecord{ID: "a", Symbol: "AAPL", TradeDate: "2025-01-02", Status: consts.State_Running}))
	require.NoError(t, s.CreateRun(ctx, models.RunRecord{ID: "b", Symbol: "BTC-USD", TradeDate: "2025-01-02", Status: consts.State_Failed}))

	all, err := s.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := s.ListRuns(ctx, consts.State_Failed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].ID)

	missing, err := s.GetRun(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
