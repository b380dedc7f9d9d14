package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/models"
	"go.uber.org/zap"
)

// ToolLoop drives a tool-calling completion until the model answers in plain text.
type ToolLoop struct {
	Model   model.ToolCallingChatModel
	Tools   []tool.InvokableTool
	Ceiling int
	Logger  *zap.Logger
}

// Run returns the final text. Tool failures are fed back as "data unavailable" results.
// Exceeding Ceiling model calls yields models.ErrToolLoopExceeded.
func (l *ToolLoop) Run(ctx context.Context, msgs []*schema.Message) (string, error) {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ceiling := l.Ceiling
	if ceiling <= 0 {
		ceiling = 6
	}

	m := l.Model
	byName := make(map[string]tool.InvokableTool, len(l.Tools))
	if len(l.Tools) > 0 {
		infos := make([]*schema.ToolInfo, 0, len(l.Tools))
		for _, t := range l.Tools {
			info, err := t.Info(ctx)
			if err != nil {
				return "", err
			}
			infos = append(infos, info)
			byName[info.Name] = t
		}
		bound, err := l.Model.WithTools(infos)
		if err != nil {
			return "", fmt.Errorf("bind tools: %w", err)
		}
		m = bound
	}

	history := append([]*schema.Message(nil), msgs...)
	for i := 0; i < ceiling; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		resp, err := m.Generate(ctx, history)
		if err != nil {
			return "", err
		}
		if len(resp.ToolCalls) == 0 {
			return strings.TrimSpace(resp.Content), nil
		}

		history = append(history, resp)
		for _, call := range resp.ToolCalls {
			out, err := l.invoke(ctx, byName, call)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				logger.Warn("tool failed", zap.String("tool", call.Function.Name), zap.Error(err))
				out = fmt.Sprintf("[%s] %s: %v. Report this data as unavailable; do not estimate it.",
					consts.DataUnavailableMarker, call.Function.Name, err)
			}
			history = append(history, schema.ToolMessage(out, call.ID))
		}
	}
	return "", fmt.Errorf("%w after %d calls", models.ErrToolLoopExceeded, ceiling)
}

func (l *ToolLoop) invoke(ctx context.Context, byName map[string]tool.InvokableTool, call schema.ToolCall) (string, error) {
	t, ok := byName[call.Function.Name]
	if !ok {
		return "", &models.ToolError{Tool: call.Function.Name, Err: errors.New("unknown tool")}
	}
	out, err := t.InvokableRun(ctx, call.Function.Arguments)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" || out == "null" {
		return "", &models.ToolError{Tool: call.Function.Name, Err: errors.New("no usable data")}
	}
	return out, nil
}
