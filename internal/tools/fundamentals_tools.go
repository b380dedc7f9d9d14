package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/dyike/tradecortex/models"
	"github.com/dyike/tradecortex/pkg/dataflows"
)

type FundamentalsInput struct {
	Symbol string `json:"symbol"`
}

func NewFundamentalsTool(src FundamentalsSource) tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: models.ToolFundamentals,
			Desc: "Get valuation and balance-sheet snapshot for a listed company: market cap, PE, EPS, book value, dividend yield, 52-week range",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": {Type: schema.String, Desc: "Stock ticker", Required: true},
			}),
		},
		func(ctx context.Context, input *FundamentalsInput) (*dataflows.Snapshot, error) {
			if src == nil {
				return nil, errSourceMissing(models.ToolFundamentals)
			}
			if input.Symbol == "" {
				return nil, fmt.Errorf("symbol parameter is required")
			}
			return src.Snapshot(ctx, input.Symbol)
		},
	)
}
