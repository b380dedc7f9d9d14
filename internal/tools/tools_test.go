package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dyike/tradecortex/models"
	"github.com/dyike/tradecortex/pkg/dataflows"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubMarket struct {
	candles []dataflows.Candle
	err     error
	calls   int
}

func (s *stubMarket) DailyCandles(ctx context.Context, symbol string, start, end time.Time) ([]dataflows.Candle, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return clip(s.candles, start, end), nil
}

type stubNews struct{ query string }

func (s *stubNews) Search(ctx context.Context, query string, start, end time.Time, limit int) ([]dataflows.NewsArticle, error) {
	s.query = query
	return []dataflows.NewsArticle{{Title: "headline", PublishedAt: end}}, nil
}

func dailyCandles(n int, end time.Time) []dataflows.Candle {
	out := make([]dataflows.Candle, n)
	for i := 0; i < n; i++ {
		p := decimal.NewFromInt(int64(100 + i))
		out[i] = dataflows.Candle{Date: end.AddDate(0, 0, i-n+1), Open: p, High: p, Low: p, Close: p, Volume: 10}
	}
	return out
}

func TestMarketDataToolClipsRange(t *testing.T) {
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	src := &stubMarket{candles: dailyCandles(60, end)}

	out, err := NewMarketDataTool(src).InvokableRun(context.Background(),
		`{"symbol":"AAPL","start_date":"2025-06-21","end_date":"2025-06-30"}`)
	require.NoError(t, err)

	var parsed MarketDataOutput
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Len(t, parsed.Candles, 10)
	assert.Equal(t, "AAPL", parsed.Symbol)
}

func TestMarketDataToolRejectsBadDate(t *testing.T) {
	_, err := NewMarketDataTool(&stubMarket{}).InvokableRun(context.Background(),
		`{"symbol":"AAPL","start_date":"06/21/2025","end_date":"2025-06-30"}`)
	assert.Error(t, err)
}

func TestIndicatorToolReturnsWindow(t *testing.T) {
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	src := &stubMarket{candles: dailyCandles(120, end)}

	out, err := NewIndicatorTool(src).InvokableRun(context.Background(),
		`{"symbol":"AAPL","indicator":"close_50_sma","curr_date":"2025-06-30","look_back_days":5}`)
	require.NoError(t, err)

	var parsed IndicatorOutput
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed.Values, 6)
	// closes are 100..219, the last 50 average to 194.5
	assert.InDelta(t, 194.5, parsed.Values[len(parsed.Values)-1].Value, 1e-9)
	assert.NotEmpty(t, parsed.Description)
}

func TestNewsToolStripsCryptoSuffix(t *testing.T) {
	news := &stubNews{}
	_, err := NewNewsTool(news).InvokableRun(context.Background(), `{"query":"BTC-USD-PERP","curr_date":"2025-06-30"}`)
	require.NoError(t, err)
	assert.Equal(t, "BTC", news.query)
}

func TestMissingSourceErrors(t *testing.T) {
	_, err := NewFundamentalsTool(nil).InvokableRun(context.Background(), `{"symbol":"AAPL"}`)
	assert.Error(t, err)
}

func TestRegistryFollowsCapabilities(t *testing.T) {
	r, err := NewRegistry(context.Background(), Sources{}, nil, 0, zap.NewNop())
	require.NoError(t, err)

	stock, err := r.ForReport(models.AssetStock, models.ReportFundamentals)
	require.NoError(t, err)
	assert.Len(t, stock, 1)

	crypto, err := r.ForReport(models.AssetCrypto, models.ReportFundamentals)
	require.NoError(t, err)
	assert.Empty(t, crypto)

	market, err := r.ForReport(models.AssetIndex, models.ReportMarket)
	require.NoError(t, err)
	assert.Len(t, market, 2)
}

func TestFallbackMarketUsesSecondaryForCrypto(t *testing.T) {
	primary := &stubMarket{err: errors.New("down")}
	secondary := &stubMarket{candles: dailyCandles(3, time.Now())}
	f := &fallbackMarket{primary: primary, secondary: secondary, logger: zap.NewNop()}

	_, err := f.DailyCandles(context.Background(), "ETH-USD", time.Now().AddDate(0, 0, -5), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, primary.calls)

	_, err = f.DailyCandles(context.Background(), "AAPL", time.Now().AddDate(0, 0, -5), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 2, secondary.calls)
}
