// Package agentstest builds stage environments backed by fake models.
package agentstest

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/dyike/tradecortex/config"
	"github.com/dyike/tradecortex/internal/agents"
	"github.com/dyike/tradecortex/models"
	"go.uber.org/zap"
)

// Tools maps report kinds to fixed tools regardless of asset class.
type Tools map[models.ReportKind][]tool.InvokableTool

func (t Tools) ForReport(class models.AssetClass, kind models.ReportKind) ([]tool.InvokableTool, error) {
	if !models.Capabilities(class).Supports(kind) {
		return nil, nil
	}
	return t[kind], nil
}

// Portfolio returns a fixed live context.
type Portfolio string

func (p Portfolio) LiveContext(ctx context.Context, symbol string) (string, error) {
	return string(p), nil
}

// NewEnv returns an Env with default config, no memories and no tools.
func NewEnv(quick, deep model.ToolCallingChatModel) *agents.Env {
	cfg := config.DefaultConfigWithRoot("")
	return &agents.Env{
		Config: cfg,
		Quick:  quick,
		Deep:   deep,
		Tools:  Tools{},
		Recall: agents.NewRecall(nil, cfg.MemoryMatches, zap.NewNop()),
		Logger: zap.NewNop(),
	}
}
