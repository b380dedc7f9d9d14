package dataflows

import (
	"context"
	"errors"
	"time"

	"github.com/dyike/tradecortex/config"
	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/longportapp/openapi-go/trade"
	"github.com/shopspring/decimal"
)

// ErrLongportNotConfigured is returned when no Longport credentials are set.
var ErrLongportNotConfigured = errors.New("longport API credentials not configured")

type LongportClient struct {
	tradeCtx *trade.TradeContext
	quoteCtx *quote.QuoteContext
}

func NewLongportClient(cfg *config.Config) (*LongportClient, error) {
	if cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "" {
		return nil, ErrLongportNotConfigured
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken))
	if err != nil {
		return nil, err
	}

	tradeContext, err := trade.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}

	return &LongportClient{
		tradeCtx: tradeContext,
		quoteCtx: quoteContext,
	}, nil
}

// DailyCandles returns the last count daily bars for symbol.
func (lpc *LongportClient) DailyCandles(ctx context.Context, symbol string, count int) ([]Candle, error) {
	if lpc.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}
	sticks, err := lpc.quoteCtx.Candlesticks(ctx, symbol, quote.PeriodDay, int32(count), quote.AdjustTypeNo)
	if err != nil {
		return nil, err
	}
	candles := make([]Candle, 0, len(sticks))
	for _, stick := range sticks {
		open, _ := stick.Open.Float64()
		high, _ := stick.High.Float64()
		low, _ := stick.Low.Float64()
		closePrice, _ := stick.Close.Float64()
		candles = append(candles, Candle{
			Date:   time.Unix(stick.Timestamp, 0),
			Open:   decimal.NewFromFloat(open),
			High:   decimal.NewFromFloat(high),
			Low:    decimal.NewFromFloat(low),
			Close:  decimal.NewFromFloat(closePrice),
			Volume: stick.Volume,
		})
	}
	return candles, nil
}

// StockPositions returns the raw position channels for the account, optionally filtered by symbols.
func (lpc *LongportClient) StockPositions(ctx context.Context, symbols []string) ([]*trade.StockPositionChannel, error) {
	if lpc.tradeCtx == nil {
		return nil, errors.New("trade context is nil")
	}
	return lpc.tradeCtx.StockPositions(ctx, symbols)
}

func (lpc *LongportClient) GetStaticInfo(ctx context.Context, symbols []string) (staticInfos []*quote.StaticInfo, err error) {
	if lpc.quoteCtx != nil {
		return lpc.quoteCtx.StaticInfo(ctx, symbols)
	}
	return nil, errors.New("quote context is nil")
}
