package tools

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/models"
	"github.com/dyike/tradecortex/pkg/dataflows"
)

type MarketDataInput struct {
	Symbol    string `json:"symbol"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type MarketDataOutput struct {
	Symbol  string             `json:"symbol"`
	Candles []dataflows.Candle `json:"candles"`
}

type IndicatorInput struct {
	Symbol       string `json:"symbol"`
	Indicator    string `json:"indicator"`
	CurrDate     string `json:"curr_date"`
	LookBackDays int    `json:"look_back_days"`
}

type IndicatorPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type IndicatorOutput struct {
	Symbol      string           `json:"symbol"`
	Indicator   string           `json:"indicator"`
	Description string           `json:"description"`
	Values      []IndicatorPoint `json:"values"`
}

// indicator warm-up needs history well before the look-back window
const indicatorHistoryDays = 300

func NewMarketDataTool(src MarketSource) tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: models.ToolMarketData,
			Desc: "Get daily OHLCV candles for a symbol between two dates (yyyy-mm-dd)",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol":     {Type: schema.String, Desc: "Ticker symbol, e.g. AAPL or BTC-USD", Required: true},
				"start_date": {Type: schema.String, Desc: "Start date, yyyy-mm-dd", Required: true},
				"end_date":   {Type: schema.String, Desc: "End date, yyyy-mm-dd", Required: true},
			}),
		},
		func(ctx context.Context, input *MarketDataInput) (*MarketDataOutput, error) {
			if src == nil {
				return nil, errSourceMissing(models.ToolMarketData)
			}
			if input.Symbol == "" {
				return nil, fmt.Errorf("symbol parameter is required")
			}
			end, err := parseDate(input.EndDate, time.Now())
			if err != nil {
				return nil, err
			}
			start, err := parseDate(input.StartDate, end.AddDate(0, 0, -30))
			if err != nil {
				return nil, err
			}
			candles, err := src.DailyCandles(ctx, input.Symbol, start, end)
			if err != nil {
				return nil, err
			}
			return &MarketDataOutput{Symbol: input.Symbol, Candles: candles}, nil
		},
	)
}

func NewIndicatorTool(src MarketSource) tool.InvokableTool {
	var names []string
	for _, n := range dataflows.IndicatorNames {
		names = append(names, n+" ("+dataflows.IndicatorDescriptions[n]+")")
	}
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: models.ToolIndicators,
			Desc: "Get a technical indicator for a symbol over a look-back window ending at curr_date. Supported: " + strings.Join(names, "; "),
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol":         {Type: schema.String, Desc: "Ticker symbol", Required: true},
				"indicator":      {Type: schema.String, Desc: "Indicator name", Required: true, Enum: dataflows.IndicatorNames},
				"curr_date":      {Type: schema.String, Desc: "Current trading date, yyyy-mm-dd", Required: true},
				"look_back_days": {Type: schema.Integer, Desc: "Days of values to return (default 30)"},
			}),
		},
		func(ctx context.Context, input *IndicatorInput) (*IndicatorOutput, error) {
			if src == nil {
				return nil, errSourceMissing(models.ToolIndicators)
			}
			curr, err := parseDate(input.CurrDate, time.Now())
			if err != nil {
				return nil, err
			}
			lookBack := input.LookBackDays
			if lookBack <= 0 {
				lookBack = 30
			}
			candles, err := src.DailyCandles(ctx, input.Symbol, curr.AddDate(0, 0, -(lookBack+indicatorHistoryDays)), curr)
			if err != nil {
				return nil, err
			}
			series, err := dataflows.Compute(input.Indicator, candles)
			if err != nil {
				return nil, err
			}

			from := curr.AddDate(0, 0, -lookBack)
			out := &IndicatorOutput{
				Symbol:      input.Symbol,
				Indicator:   input.Indicator,
				Description: dataflows.IndicatorDescriptions[strings.ToLower(input.Indicator)],
			}
			for i, c := range candles {
				if c.Date.Before(from) || i >= len(series) || math.IsNaN(series[i]) {
					continue
				}
				out.Values = append(out.Values, IndicatorPoint{Date: c.Date.Format(consts.DateLayout), Value: series[i]})
			}
			return out, nil
		},
	)
}

func parseDate(s string, fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	t, err := time.Parse(consts.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want yyyy-mm-dd", s)
	}
	return t, nil
}

func errSourceMissing(name string) error {
	return fmt.Errorf("%s: no data source configured", name)
}
