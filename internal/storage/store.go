package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/models"
	"github.com/dyike/tradecortex/pkg/sqlite"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    trade_date TEXT NOT NULL,
    asset_class TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    decision_id TEXT NOT NULL DEFAULT '',
    action TEXT NOT NULL DEFAULT '',
    log_path TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stages (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    stage TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_decision ON runs(decision_id);
`

// Store is the run ledger: one row per deliberation plus the output of each stage.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}
	s, err := New(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init run ledger schema: %w", err)
	}
	return &Store{db: db, logger: logger.With(zap.String("component", "run_ledger"))}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) CreateRun(ctx context.Context, run models.RunRecord) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	if run.Status == "" {
		run.Status = consts.State_Pending
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, symbol, trade_date, asset_class, status)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    symbol=excluded.symbol,
    trade_date=excluded.trade_date,
    asset_class=excluded.asset_class,
    status=excluded.status,
    updated_at=CURRENT_TIMESTAMP
`, run.ID, run.Symbol, run.TradeDate, run.AssetClass.String(), run.Status)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the terminal status of a run.
func (s *Store) FinishRun(ctx context.Context, run models.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE runs
SET status = ?, decision_id = ?, action = ?, log_path = ?, error = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, run.Status, run.DecisionID, string(run.Action), run.LogPath, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (s *Store) UpdateRunStatus(ctx context.Context, runID, status string) error {
	if strings.TrimSpace(runID) == "" || strings.TrimSpace(status) == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, runID)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

func (s *Store) InsertStage(ctx context.Context, st models.StageRecord) error {
	if st.Seq <= 0 {
		return fmt.Errorf("stage seq must be positive")
	}
	if strings.TrimSpace(st.Stage) == "" {
		return fmt.Errorf("stage name is required")
	}
	if st.Status == "" {
		st.Status = consts.State_Completed
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO stages (run_id, seq, stage, content, status)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(run_id, seq) DO NOTHING
`, st.RunID, st.Seq, st.Stage, st.Content, st.Status)
	if err != nil {
		return fmt.Errorf("insert stage: %w", err)
	}
	return nil
}

const runColumns = `id, symbol, trade_date, asset_class, status, decision_id, action, log_path, error, created_at, updated_at`

func scanRun(row interface{ Scan(...any) error }) (models.RunRecord, error) {
	var (
		rec    models.RunRecord
		class  string
		action string
	)
	if err := row.Scan(&rec.ID, &rec.Symbol, &rec.TradeDate, &class, &rec.Status, &rec.DecisionID, &action,
		&rec.LogPath, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return rec, err
	}
	_ = rec.AssetClass.UnmarshalText([]byte(class))
	rec.Action = models.Action(action)
	return rec, nil
}

// ListRuns pages runs newest first. status filters when non-empty.
func (s *Store) ListRuns(ctx context.Context, status string, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+runColumns+`
FROM runs
WHERE (? = '' OR status = ?)
ORDER BY created_at DESC, rowid DESC
LIMIT ?
`, status, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs rows: %w", err)
	}
	return runs, nil
}

// GetRun returns nil, nil when the run does not exist.
func (s *Store) GetRun(ctx context.Context, runID string) (*models.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ? LIMIT 1`, runID)
	rec, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &rec, nil
}

func (s *Store) ListStages(ctx context.Context, runID string) ([]models.StageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, seq, stage, content, status, created_at
FROM stages
WHERE run_id = ?
ORDER BY seq ASC
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var out []models.StageRecord
	for rows.Next() {
		var rec models.StageRecord
		if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.Stage, &rec.Content, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkAbandoned flips runs left in running state by a crashed process to failed.
func (s *Store) MarkAbandoned(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE runs SET status = ?, error = 'abandoned', updated_at = CURRENT_TIMESTAMP
WHERE status IN (?, ?) AND updated_at < ?
`, consts.State_Failed, consts.State_Pending, consts.State_Running, time.Now().Add(-olderThan).UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, fmt.Errorf("mark abandoned runs: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("abandoned runs marked failed", zap.Int64("count", n))
	}
	return n, nil
}
