package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/models"
	"go.uber.org/zap"
)

type recordKind int

const (
	recordStage recordKind = iota + 1
	recordFinish
)

type recordEvent struct {
	kind  recordKind
	stage models.StageRecord
	run   models.RunRecord
}

// RunRecorder writes stage outputs and the final status of one run off the deliberation path.
// Writes happen on a single goroutine in arrival order.
type RunRecorder struct {
	store  *Store
	run    models.RunRecord
	logger *zap.Logger

	events chan recordEvent
	once   sync.Once
	wg     sync.WaitGroup

	mu  sync.Mutex
	seq int
}

func NewRunRecorder(ctx context.Context, store *Store, run models.RunRecord, logger *zap.Logger) (*RunRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if run.Status == "" {
		run.Status = consts.State_Running
	}
	if err := store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	r := &RunRecorder{
		store:  store,
		run:    run,
		logger: logger.With(zap.String("run_id", run.ID)),
		events: make(chan recordEvent, 64),
	}
	r.wg.Add(1)
	go r.loop()
	return r, nil
}

func (r *RunRecorder) loop() {
	defer r.wg.Done()
	ctx := context.Background()
	for ev := range r.events {
		switch ev.kind {
		case recordStage:
			if err := r.store.InsertStage(ctx, ev.stage); err != nil {
				r.logger.Warn("record stage", zap.String("stage", ev.stage.Stage), zap.Error(err))
			}
		case recordFinish:
			if err := r.store.FinishRun(ctx, ev.run); err != nil {
				r.logger.Warn("record run finish", zap.Error(err))
			}
		}
	}
}

// RecordStage queues the output of a finished stage.
func (r *RunRecorder) RecordStage(stage, content string) {
	if strings.TrimSpace(stage) == "" {
		return
	}
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.mu.Unlock()
	r.enqueue(recordEvent{kind: recordStage, stage: models.StageRecord{
		RunID:   r.run.ID,
		Seq:     seq,
		Stage:   stage,
		Content: content,
		Status:  consts.State_Completed,
	}})
}

// Finish queues the terminal status and waits for every queued write.
func (r *RunRecorder) Finish(final models.RunRecord) {
	final.ID = r.run.ID
	r.enqueue(recordEvent{kind: recordFinish, run: final})
	r.Close()
}

func (r *RunRecorder) enqueue(ev recordEvent) {
	defer func() {
		// send on closed channel after Close
		if recover() != nil {
			r.logger.Debug("recorder closed, event dropped")
		}
	}()
	r.events <- ev
}

func (r *RunRecorder) Close() {
	r.once.Do(func() {
		close(r.events)
		r.wg.Wait()
	})
}
