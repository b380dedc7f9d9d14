package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/dyike/tradecortex/models"
)

// withTimeout derives a per-call context. A zero timeout leaves ctx untouched.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// serviceError classifies a failed call. Caller cancellation is permanent, everything else may be retried.
func serviceError(parent context.Context, op string, err error) error {
	var se *models.ServiceError
	if errors.As(err, &se) {
		return err
	}
	return &models.ServiceError{Op: op, Err: err, Temporary: parent.Err() == nil}
}

// ResilientChatModel applies the per-call timeout and retry policy to every completion.
type ResilientChatModel struct {
	inner   model.ToolCallingChatModel
	retryer *Retryer
	timeout time.Duration
	name    string
}

var _ model.ToolCallingChatModel = (*ResilientChatModel)(nil)

func NewResilientChatModel(inner model.ToolCallingChatModel, retryer *Retryer, timeout time.Duration, name string) *ResilientChatModel {
	return &ResilientChatModel{inner: inner, retryer: retryer, timeout: timeout, name: name}
}

func (m *ResilientChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	op := "completion " + m.name
	return DoWithResult(ctx, m.retryer, op, func(ctx context.Context) (*schema.Message, error) {
		callCtx, cancel := withTimeout(ctx, m.timeout)
		defer cancel()

		msg, err := m.inner.Generate(callCtx, input, opts...)
		if err != nil {
			return nil, serviceError(ctx, op, err)
		}
		if msg == nil || (msg.Content == "" && len(msg.ToolCalls) == 0) {
			return nil, &models.ServiceError{Op: op, Err: errors.New("empty completion"), Temporary: true}
		}
		return msg, nil
	})
}

// Stream only retries opening the stream.
func (m *ResilientChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	op := "stream " + m.name
	return DoWithResult(ctx, m.retryer, op, func(ctx context.Context) (*schema.StreamReader[*schema.Message], error) {
		sr, err := m.inner.Stream(ctx, input, opts...)
		if err != nil {
			return nil, serviceError(ctx, op, err)
		}
		return sr, nil
	})
}

func (m *ResilientChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	bound, err := m.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &ResilientChatModel{inner: bound, retryer: m.retryer, timeout: m.timeout, name: m.name}, nil
}

// ResilientEmbedder applies the per-call timeout and retry policy to every embedding call.
type ResilientEmbedder struct {
	inner   embedding.Embedder
	retryer *Retryer
	timeout time.Duration
}

var _ embedding.Embedder = (*ResilientEmbedder)(nil)

func NewResilientEmbedder(inner embedding.Embedder, retryer *Retryer, timeout time.Duration) *ResilientEmbedder {
	return &ResilientEmbedder{inner: inner, retryer: retryer, timeout: timeout}
}

func (e *ResilientEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	const op = "embedding"
	return DoWithResult(ctx, e.retryer, op, func(ctx context.Context) ([][]float64, error) {
		callCtx, cancel := withTimeout(ctx, e.timeout)
		defer cancel()

		vecs, err := e.inner.EmbedStrings(callCtx, texts, opts...)
		if err != nil {
			return nil, serviceError(ctx, op, err)
		}
		if len(vecs) != len(texts) {
			return nil, &models.ServiceError{Op: op, Err: errors.New("embedding count mismatch"), Temporary: true}
		}
		return vecs, nil
	})
}

// ResilientTool applies the per-call timeout and retry policy to a data-fetch tool.
// Failures surface as *models.ToolError.
type ResilientTool struct {
	inner   tool.InvokableTool
	name    string
	retryer *Retryer
	timeout time.Duration
}

var _ tool.InvokableTool = (*ResilientTool)(nil)

func NewResilientTool(ctx context.Context, inner tool.InvokableTool, retryer *Retryer, timeout time.Duration) (*ResilientTool, error) {
	info, err := inner.Info(ctx)
	if err != nil {
		return nil, err
	}
	return &ResilientTool{inner: inner, name: info.Name, retryer: retryer, timeout: timeout}, nil
}

func (t *ResilientTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return t.inner.Info(ctx)
}

func (t *ResilientTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	return DoWithResult(ctx, t.retryer, "tool "+t.name, func(ctx context.Context) (string, error) {
		callCtx, cancel := withTimeout(ctx, t.timeout)
		defer cancel()

		out, err := t.inner.InvokableRun(callCtx, argumentsInJSON, opts...)
		if err != nil {
			return "", &models.ToolError{Tool: t.name, Err: err}
		}
		return out, nil
	})
}
