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

type SocialInput struct {
	Query        string `json:"query"`
	CurrDate     string `json:"curr_date"`
	LookBackDays int    `json:"look_back_days"`
}

type SocialOutput struct {
	Query string                 `json:"query"`
	Posts []dataflows.SocialPost `json:"posts"`
}

const (
	maxSocialPosts = 25
	maxPostChars   = 600
)

func NewSocialTool(src SocialSource) tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: models.ToolSocialPosts,
			Desc: "Search Reddit posts mentioning a ticker or company within the look-back window",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query":          {Type: schema.String, Desc: "Ticker or company name", Required: true},
				"curr_date":      {Type: schema.String, Desc: "Current date, yyyy-mm-dd", Required: true},
				"look_back_days": {Type: schema.Integer, Desc: "Days to look back (default 7)"},
			}),
		},
		func(ctx context.Context, input *SocialInput) (*SocialOutput, error) {
			if src == nil {
				return nil, errSourceMissing(models.ToolSocialPosts)
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
			posts, err := src.Search(ctx, searchTerm(input.Query), end.AddDate(0, 0, -days), end, maxSocialPosts)
			if err != nil {
				return nil, err
			}
			for i := range posts {
				if r := []rune(posts[i].Content); len(r) > maxPostChars {
					posts[i].Content = string(r[:maxPostChars]) + "..."
				}
			}
			return &SocialOutput{Query: input.Query, Posts: posts}, nil
		},
	)
}
