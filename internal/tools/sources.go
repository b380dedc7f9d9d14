package tools

import (
	"context"
	"errors"
	"time"

	"github.com/dyike/tradecortex/config"
	"github.com/dyike/tradecortex/models"
	"github.com/dyike/tradecortex/pkg/dataflows"
	"go.uber.org/zap"
)

type MarketSource interface {
	DailyCandles(ctx context.Context, symbol string, start, end time.Time) ([]dataflows.Candle, error)
}

type NewsSource interface {
	Search(ctx context.Context, query string, start, end time.Time, limit int) ([]dataflows.NewsArticle, error)
}

type SocialSource interface {
	Search(ctx context.Context, query string, start, end time.Time, limit int) ([]dataflows.SocialPost, error)
}

type FundamentalsSource interface {
	Snapshot(ctx context.Context, symbol string) (*dataflows.Snapshot, error)
}

// Sources bundles the data feeds analyst tools read from. A nil feed makes its tool report unavailable data.
type Sources struct {
	Market       MarketSource
	News         NewsSource
	Social       SocialSource
	Fundamentals FundamentalsSource
}

// NewSources wires the live feeds. Stocks read candles from Longport when credentials exist, otherwise Yahoo.
func NewSources(cfg *config.Config, logger *zap.Logger) Sources {
	yahoo := dataflows.NewYahooFinanceClient()
	var market MarketSource = yahoo

	lp, err := dataflows.NewLongportClient(cfg)
	switch {
	case err == nil:
		market = &fallbackMarket{primary: &longportMarket{client: lp}, secondary: yahoo, logger: logger}
	case errors.Is(err, dataflows.ErrLongportNotConfigured):
	default:
		logger.Warn("longport unavailable, using yahoo only", zap.Error(err))
	}

	return Sources{
		Market:       market,
		News:         dataflows.NewGoogleNewsClient(),
		Social:       dataflows.NewRedditClient(cfg.RedditUserAgent),
		Fundamentals: yahoo,
	}
}

type longportMarket struct {
	client *dataflows.LongportClient
}

func (l *longportMarket) DailyCandles(ctx context.Context, symbol string, start, end time.Time) ([]dataflows.Candle, error) {
	// Longport only pages backwards from today.
	count := int(time.Since(start).Hours()/24) + 1
	if count > 1000 {
		count = 1000
	}
	all, err := l.client.DailyCandles(ctx, symbol, count)
	if err != nil {
		return nil, err
	}
	return clip(all, start, end), nil
}

// fallbackMarket tries primary then secondary. Crypto and index tickers go straight to secondary.
type fallbackMarket struct {
	primary   MarketSource
	secondary MarketSource
	logger    *zap.Logger
}

func (f *fallbackMarket) DailyCandles(ctx context.Context, symbol string, start, end time.Time) ([]dataflows.Candle, error) {
	if models.ClassifyAsset(symbol) == models.AssetStock {
		candles, err := f.primary.DailyCandles(ctx, symbol, start, end)
		if err == nil && len(candles) > 0 {
			return candles, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.Debug("primary market source failed", zap.String("symbol", symbol), zap.Error(err))
	}
	return f.secondary.DailyCandles(ctx, symbol, start, end)
}

func clip(candles []dataflows.Candle, start, end time.Time) []dataflows.Candle {
	last := end.AddDate(0, 0, 1)
	out := candles[:0:0]
	for _, c := range candles {
		if c.Date.Before(start) || !c.Date.Before(last) {
			continue
		}
		out = append(out, c)
	}
	return out
}
