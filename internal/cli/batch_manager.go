package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dyike/tradecortex/internal/graph"
	"github.com/dyike/tradecortex/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchStatus represents the status of one asset in a batch
type BatchStatus int

const (
	BatchPending BatchStatus = iota
	BatchRunning
	BatchCompleted
	BatchFailed
)

func (s BatchStatus) String() string {
	switch s {
	case BatchPending:
		return "⏳ Pending"
	case BatchRunning:
		return "🔄 Running"
	case BatchCompleted:
		return "✅ Completed"
	case BatchFailed:
		return "❌ Failed"
	default:
		return "Unknown"
	}
}

// Runner executes one deliberation. *graph.Orchestrator satisfies it through orchestratorRunner.
type Runner interface {
	Deliberate(ctx context.Context, symbol, date string) (*models.DeliberationState, string, error)
}

type orchestratorRunner struct {
	orch *graph.Orchestrator
}

func (r orchestratorRunner) Deliberate(ctx context.Context, symbol, date string) (*models.DeliberationState, string, error) {
	run, err := r.orch.NewRun(symbol, date)
	if err != nil {
		return nil, "", err
	}
	state, err := r.orch.Run(ctx, run)
	if err != nil {
		return nil, "", err
	}
	return state, run.LogPath, nil
}

// BatchResult is the outcome for one asset.
type BatchResult struct {
	Symbol   string
	Status   BatchStatus
	Action   models.Action
	LogPath  string
	Error    string
	Duration time.Duration
}

// BatchManager runs one deliberation per asset with bounded concurrency.
// A failing asset never stops the others.
type BatchManager struct {
	runner      Runner
	concurrency int
	logger      *zap.Logger
	progress    func(symbol string, status BatchStatus)
}

func NewBatchManager(runner Runner, concurrency int, logger *zap.Logger) *BatchManager {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchManager{runner: runner, concurrency: concurrency, logger: logger}
}

// OnProgress registers a callback invoked on every status change. It may be called concurrently.
func (b *BatchManager) OnProgress(fn func(symbol string, status BatchStatus)) {
	b.progress = fn
}

func (b *BatchManager) report(symbol string, status BatchStatus) {
	if b.progress != nil {
		b.progress(symbol, status)
	}
}

// Run deliberates every symbol for date. Results keep the input order.
func (b *BatchManager) Run(ctx context.Context, symbols []string, date string) []BatchResult {
	results := make([]BatchResult, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, symbol := range symbols {
		results[i] = BatchResult{Symbol: symbol, Status: BatchPending}
		g.Go(func() error {
			b.report(symbol, BatchRunning)
			start := time.Now()
			state, logPath, err := b.runner.Deliberate(gctx, symbol, date)

			res := BatchResult{Symbol: symbol, Duration: time.Since(start)}
			if err != nil {
				res.Status = BatchFailed
				res.Error = err.Error()
				b.logger.Warn("batch asset failed", zap.String("symbol", symbol), zap.Error(err))
			} else {
				res.Status = BatchCompleted
				res.LogPath = logPath
				if state != nil && state.FinalDecision != nil {
					res.Action = state.FinalDecision.Action
				}
			}
			results[i] = res
			b.report(symbol, res.Status)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ParseSymbols merges a comma separated list with a file of one symbol per line.
// Blank lines and lines starting with # are ignored; duplicates keep their first position.
func ParseSymbols(tickers, file string) ([]string, error) {
	raw := strings.Split(tickers, ",")
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open symbol file: %w", err)
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			raw = append(raw, line)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read symbol file: %w", err)
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, s := range raw {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no symbols given")
	}
	return out, nil
}
