package dataflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
)

// YahooFinanceClient wraps finance-go. The library has no context support, so ctx is only checked between calls.
type YahooFinanceClient struct{}

func NewYahooFinanceClient() *YahooFinanceClient {
	return &YahooFinanceClient{}
}

// DailyCandles returns daily bars in [start, end].
func (y *YahooFinanceClient) DailyCandles(ctx context.Context, symbol string, start, end time.Time) ([]Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params := &chart.Params{
		Symbol:   yahooSymbol(symbol),
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	iter := chart.Get(params)
	var candles []Candle
	for iter.Next() {
		bar := iter.Bar()
		candles = append(candles, Candle{
			Date:   time.Unix(int64(bar.Timestamp), 0),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: int64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	return candles, nil
}

// Snapshot is the fundamentals-relevant subset of a Yahoo equity quote.
type Snapshot struct {
	Symbol             string  `json:"symbol"`
	Name               string  `json:"name"`
	Exchange           string  `json:"exchange"`
	Currency           string  `json:"currency"`
	RegularMarketPrice float64 `json:"regular_market_price"`
	MarketCap          int64   `json:"market_cap"`
	TrailingPE         float64 `json:"trailing_pe"`
	ForwardPE          float64 `json:"forward_pe"`
	EpsTrailingTwelve  float64 `json:"eps_ttm"`
	EpsForward         float64 `json:"eps_forward"`
	BookValue          float64 `json:"book_value"`
	PriceToBook        float64 `json:"price_to_book"`
	DividendYield      float64 `json:"dividend_yield"`
	FiftyTwoWeekHigh   float64 `json:"fifty_two_week_high"`
	FiftyTwoWeekLow    float64 `json:"fifty_two_week_low"`
	SharesOutstanding  int     `json:"shares_outstanding"`
}

func (y *YahooFinanceClient) Snapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := equity.Get(yahooSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("yahoo equity %s: %w", symbol, err)
	}
	if q == nil {
		return nil, fmt.Errorf("yahoo equity %s: not found", symbol)
	}
	return &Snapshot{
		Symbol:             q.Symbol,
		Name:               q.ShortName,
		Exchange:           q.FullExchangeName,
		Currency:           q.CurrencyID,
		RegularMarketPrice: q.RegularMarketPrice,
		MarketCap:          q.MarketCap,
		TrailingPE:         q.TrailingPE,
		ForwardPE:          q.ForwardPE,
		EpsTrailingTwelve:  q.EpsTrailingTwelveMonths,
		EpsForward:         q.EpsForward,
		BookValue:          q.BookValue,
		PriceToBook:        q.PriceToBook,
		DividendYield:      q.TrailingAnnualDividendYield,
		FiftyTwoWeekHigh:   q.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:    q.FiftyTwoWeekLow,
		SharesOutstanding:  q.SharesOutstanding,
	}, nil
}

// yahooSymbol maps perp tickers like BTC-USD-PERP onto the spot symbol Yahoo knows.
func yahooSymbol(symbol string) string {
	return strings.TrimSuffix(strings.ToUpper(symbol), "-PERP")
}
