package reflection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/models"
	"go.uber.org/zap"
)

// DecisionLogRef describes a decision log on disk.
type DecisionLogRef struct {
	Path       string    `json:"path"`
	Market     string    `json:"market"`
	Date       string    `json:"date"`
	DecisionID string    `json:"decision_id"`
	Size       int64     `json:"size"`
	ModTime    time.Time `json:"mod_time"`
	Learned    bool      `json:"learned"`
}

// MemoryDeleter removes every memory written for a decision.
type MemoryDeleter interface {
	DeleteByDecision(ctx context.Context, decisionID string) (int64, error)
}

// DeleteResult reports what DeleteDecision removed.
type DeleteResult struct {
	DecisionID      string
	RecordsRemoved  int
	MemoriesRemoved int64
	Errors          []string
}

// Records manages decision logs and manual learning records under the eval results root.
type Records struct {
	root   string
	logger *zap.Logger
}

func NewRecords(root string, logger *zap.Logger) *Records {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Records{root: root, logger: logger.With(zap.String("component", "records"))}
}

func (r *Records) Root() string { return r.root }

// Save writes rec as manual_learning_<timestamp>.json and returns the path.
func (r *Records) Save(rec *models.LearningRecord, at time.Time) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode learning record: %w", err)
	}
	if err := os.MkdirAll(r.root, 0o755); err != nil {
		return "", fmt.Errorf("create eval results dir: %w", err)
	}
	base := consts.LearningRecordPrefix + at.Format(consts.LearningRecordLayout)
	for i := 0; ; i++ {
		name := base + ".json"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.json", base, i)
		}
		path := filepath.Join(r.root, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create learning record: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("write learning record: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		rec.File = path
		return path, nil
	}
}

// List returns every readable learning record, newest first. Unreadable files are skipped.
func (r *Records) List() ([]models.LearningRecord, error) {
	files, err := filepath.Glob(filepath.Join(r.root, consts.LearningRecordPrefix+"*.json"))
	if err != nil {
		return nil, err
	}
	out := make([]models.LearningRecord, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			r.logger.Warn("skip learning record", zap.String("file", file), zap.Error(err))
			continue
		}
		var rec models.LearningRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			r.logger.Warn("skip learning record", zap.Error(&models.DataFormatError{Path: file, Err: err}))
			continue
		}
		rec.File = file
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

// LearnedLogs is the set of decision log paths with a successful learning record.
func (r *Records) LearnedLogs() (map[string]bool, error) {
	recs, err := r.List()
	if err != nil {
		return nil, err
	}
	learned := make(map[string]bool)
	for _, rec := range recs {
		if rec.Success && rec.DecisionLogPath != "" {
			learned[filepath.Clean(rec.DecisionLogPath)] = true
		}
	}
	return learned, nil
}

// FilterUnlearned drops logs that already have a successful learning record.
func (r *Records) FilterUnlearned(logs []DecisionLogRef) ([]DecisionLogRef, error) {
	learned, err := r.LearnedLogs()
	if err != nil {
		return nil, err
	}
	out := make([]DecisionLogRef, 0, len(logs))
	for _, l := range logs {
		if !learned[filepath.Clean(l.Path)] {
			out = append(out, l)
		}
	}
	return out, nil
}

// ListDecisionLogs scans <root>/<market>/TradingAgentsStrategy_logs, newest date first.
// The learned flag is set from the learning records.
func (r *Records) ListDecisionLogs() ([]DecisionLogRef, error) {
	pattern := filepath.Join(r.root, "*", consts.DecisionLogDir, consts.DecisionLogPrefix+"*.json")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	learned, err := r.LearnedLogs()
	if err != nil {
		return nil, err
	}

	out := make([]DecisionLogRef, 0, len(files))
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		ref := DecisionLogRef{
			Path:    file,
			Market:  filepath.Base(filepath.Dir(filepath.Dir(file))),
			Date:    strings.TrimSuffix(strings.TrimPrefix(filepath.Base(file), consts.DecisionLogPrefix), ".json"),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Learned: learned[filepath.Clean(file)],
		}
		if s, err := models.LoadDecisionLog(file); err == nil {
			ref.DecisionID = s.DecisionID
		} else {
			r.logger.Warn("unreadable decision log", zap.String("file", file), zap.Error(err))
		}
		out = append(out, ref)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Market < out[j].Market
	})
	return out, nil
}

// DecisionLogs groups ListDecisionLogs by market.
func (r *Records) DecisionLogs() (map[string][]DecisionLogRef, error) {
	logs, err := r.ListDecisionLogs()
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]DecisionLogRef)
	for _, l := range logs {
		grouped[l.Market] = append(grouped[l.Market], l)
	}
	return grouped, nil
}

// Search matches query against market, decision id and date, case-insensitively.
func (r *Records) Search(query string) ([]DecisionLogRef, error) {
	logs, err := r.ListDecisionLogs()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	var out []DecisionLogRef
	for _, l := range logs {
		if strings.Contains(strings.ToLower(l.Market), q) ||
			strings.Contains(strings.ToLower(l.DecisionID), q) ||
			strings.Contains(l.Date, q) {
			out = append(out, l)
		}
	}
	return out, nil
}

// DeleteDecision removes a decision log, the learning records that reference it and every
// memory written from it.
func (r *Records) DeleteDecision(ctx context.Context, path string, mem MemoryDeleter) (*DeleteResult, error) {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("decision log: %w", err)
	}
	state, err := models.LoadDecisionLog(path)
	if err != nil && !models.IsDataFormatError(err) {
		return nil, err
	}
	res := &DeleteResult{}
	if state != nil {
		res.DecisionID = state.DecisionID
	}

	if res.DecisionID != "" && mem != nil {
		n, err := mem.DeleteByDecision(ctx, res.DecisionID)
		if err != nil {
			return res, fmt.Errorf("delete memories: %w", err)
		}
		res.MemoriesRemoved = n
	}

	recs, err := r.List()
	if err != nil {
		return res, err
	}
	for _, rec := range recs {
		if filepath.Clean(rec.DecisionLogPath) != path {
			continue
		}
		if err := os.Remove(rec.File); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", filepath.Base(rec.File), err))
			continue
		}
		res.RecordsRemoved++
	}

	if err := os.Remove(path); err != nil {
		return res, fmt.Errorf("delete decision log: %w", err)
	}
	r.logger.Info("decision deleted",
		zap.String("path", path),
		zap.String("decision_id", res.DecisionID),
		zap.Int("records", res.RecordsRemoved),
		zap.Int64("memories", res.MemoriesRemoved))
	return res, nil
}
