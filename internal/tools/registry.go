package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/dyike/tradecortex/internal/llm"
	"github.com/dyike/tradecortex/models"
	"go.uber.org/zap"
)

// Registry hands each analyst the tools its asset class supports.
type Registry struct {
	tools map[string]tool.InvokableTool
}

// NewRegistry builds every tool over src and wraps it with the retry policy when retryer is non-nil.
func NewRegistry(ctx context.Context, src Sources, retryer *llm.Retryer, timeout time.Duration, logger *zap.Logger) (*Registry, error) {
	raw := []tool.InvokableTool{
		NewMarketDataTool(src.Market),
		NewIndicatorTool(src.Market),
		NewSocialTool(src.Social),
		NewNewsTool(src.News),
		NewFundamentalsTool(src.Fundamentals),
	}
	r := &Registry{tools: make(map[string]tool.InvokableTool, len(raw))}
	for _, t := range raw {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		wrapped := t
		if retryer != nil {
			rt, err := llm.NewResilientTool(ctx, t, retryer, timeout)
			if err != nil {
				return nil, err
			}
			wrapped = rt
		}
		r.tools[info.Name] = wrapped
	}
	logger.Debug("tool registry ready", zap.Int("tools", len(r.tools)))
	return r, nil
}

// ForReport returns the tools the class may use for one report kind.
func (r *Registry) ForReport(class models.AssetClass, kind models.ReportKind) ([]tool.InvokableTool, error) {
	names := models.Capabilities(class).Tools[kind]
	out := make([]tool.InvokableTool, 0, len(names))
	for _, n := range names {
		t, ok := r.tools[n]
		if !ok {
			return nil, fmt.Errorf("tool %s not registered", n)
		}
		out = append(out, t)
	}
	return out, nil
}

// Get looks up a single tool by name.
func (r *Registry) Get(name string) (tool.InvokableTool, bool) {
	t, ok := r.tools[name]
	return t, ok
}
