package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/dyike/tradecortex/models"
	"github.com/dyike/tradecortex/pkg/dataflows"
)

type NewsInput struct {
	Query        string `json:"query"`
	CurrDate     string `json:"curr_date"`
	LookBackDays int    `json:"look_back_days"`
}

type NewsOutput struct {
	Query    string                  `json:"query"`
	Articles []dataflows.NewsArticle `json:"articles"`
}

const maxNewsArticles = 20

func NewNewsTool(src NewsSource) tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: models.ToolNews,
			Desc: "Search Google News for articles about a company, coin or macro topic published in the look-back window",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query":          {Type: schema.String, Desc: "Search query, e.g. ticker or company name", Required: true},
				"curr_date":      {Type: schema.String, Desc: "Current date, yyyy-mm-dd", Required: true},
				"look_back_days": {Type: schema.Integer, Desc: "Days to look back (default 7)"},
			}),
		},
		func(ctx context.Context, input *NewsInput) (*NewsOutput, error) {
			if src == nil {
				return nil, errSourceMissing(models.ToolNews)
			}
			if strings.TrimSpace(input.Query) == "" {
				return nil, fmt.Errorf("query parameter is required")
			}
			end, err := parseDate(input.CurrDate, time.Now())
			if err != nil {
				return nil, err
			}
			days := input.LookBackDays
			if days <= 0 {
				days = 7
			}
			articles, err := src.Search(ctx, searchTerm(input.Query), end.AddDate(0, 0, -days), end, maxNewsArticles)
			if err != nil {
				return nil, err
			}
			return &NewsOutput{Query: input.Query, Articles: articles}, nil
		},
	)
}

// searchTerm turns BTC-USD-PERP into BTC, AAPL stays AAPL.
func searchTerm(q string) string {
	q = strings.TrimSpace(q)
	upper := strings.ToUpper(q)
	upper = strings.TrimSuffix(upper, "-PERP")
	for _, s := range []string{"-USDT", "-USD", "-EUR"} {
		if strings.HasSuffix(upper, s) {
			return strings.TrimSuffix(upper, s)
		}
	}
	if upper != strings.ToUpper(q) {
		return upper
	}
	return q
}
