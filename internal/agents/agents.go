package agents

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/dyike/tradecortex/config"
	"github.com/dyike/tradecortex/models"
	"go.uber.org/zap"
)

// ToolProvider returns the tools an analyst may call for a report kind.
type ToolProvider interface {
	ForReport(class models.AssetClass, kind models.ReportKind) ([]tool.InvokableTool, error)
}

// LiveContext supplies positions, orders and trade history for the trader.
type LiveContext interface {
	LiveContext(ctx context.Context, symbol string) (string, error)
}

// Env is everything a stage needs. One Env is shared by every deliberation.
type Env struct {
	Config    *config.Config
	Quick     model.ToolCallingChatModel
	Deep      model.ToolCallingChatModel
	Tools     ToolProvider
	Recall    *Recall
	Portfolio LiveContext
	Logger    *zap.Logger
}

// Stage mutates the state it is handed. The graph passes a private snapshot.
type Stage interface {
	Name() string
	Run(ctx context.Context, s *models.DeliberationState) error
}

func (e *Env) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Env) LoggerFor(stage string) *zap.Logger {
	return e.logger().With(zap.String("stage", stage))
}
