package graph

import (
	"context"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"
	"go.uber.org/zap"
)

type startKey struct{}

// LoggerCallback traces graph nodes through zap.
type LoggerCallback struct {
	Logger *zap.Logger
}

func NewLoggerCallback(logger *zap.Logger) *LoggerCallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggerCallback{Logger: logger}
}

// Handler returns the eino handler to pass via compose.WithCallbacks.
func (cb *LoggerCallback) Handler() callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(cb.OnStart).
		OnEndFn(cb.OnEnd).
		OnErrorFn(cb.OnError).
		Build()
}

func (cb *LoggerCallback) fields(ctx context.Context, info *callbacks.RunInfo) []zap.Field {
	fields := make([]zap.Field, 0, 4)
	if info != nil {
		fields = append(fields,
			zap.String("node", info.Name),
			zap.String("component", string(info.Component)),
		)
	}
	if started, ok := ctx.Value(startKey{}).(time.Time); ok {
		fields = append(fields, zap.Duration("took", time.Since(started)))
	}
	return fields
}

// lambda nodes are the stages; everything else (models, tools, the graph) is noise at info level.
func isStage(info *callbacks.RunInfo) bool {
	return info != nil && info.Component == compose.ComponentOfLambda
}

func (cb *LoggerCallback) OnStart(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackInput) context.Context {
	if isStage(info) {
		cb.Logger.Debug("node start", cb.fields(ctx, info)...)
	}
	return context.WithValue(ctx, startKey{}, time.Now())
}

func (cb *LoggerCallback) OnEnd(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackOutput) context.Context {
	if isStage(info) {
		cb.Logger.Info("node done", cb.fields(ctx, info)...)
	} else {
		cb.Logger.Debug("component done", cb.fields(ctx, info)...)
	}
	return ctx
}

func (cb *LoggerCallback) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	cb.Logger.Warn("node failed", append(cb.fields(ctx, info), zap.Error(err))...)
	return ctx
}
