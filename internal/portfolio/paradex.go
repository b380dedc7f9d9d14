package portfolio

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dyike/tradecortex/models"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ParadexClient reads fills, positions and open orders from the Paradex REST API.
type ParadexClient struct {
	client *resty.Client
	logger *zap.Logger
}

type paradexPage[T any] struct {
	Next    string `json:"next"`
	Results []T    `json:"results"`
}

type paradexFill struct {
	ID          string `json:"id"`
	Market      string `json:"market"`
	Side        string `json:"side"`
	Size        string `json:"size"`
	Price       string `json:"price"`
	RealizedPnL string `json:"realized_pnl"`
	CreatedAt   int64  `json:"created_at"`
}

type paradexPosition struct {
	Market            string `json:"market"`
	Side              string `json:"side"`
	Size              string `json:"size"`
	AverageEntryPrice string `json:"average_entry_price"`
	UnrealizedPnL     string `json:"unrealized_pnl"`
	Status            string `json:"status"`
}

type paradexOrder struct {
	ID     string `json:"id"`
	Market string `json:"market"`
	Side   string `json:"side"`
	Type   string `json:"type"`
	Size   string `json:"size"`
	Price  string `json:"price"`
	Status string `json:"status"`
}

func NewParadexClient(baseURL, jwt string, timeout time.Duration, logger *zap.Logger) (*ParadexClient, error) {
	if jwt == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(jwt).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &ParadexClient{client: c, logger: logger.With(zap.String("component", "paradex"))}, nil
}

// RecentFills pages through /fills until limit fills created after since are collected.
func (p *ParadexClient) RecentFills(ctx context.Context, limit int, since time.Time) ([]models.Fill, error) {
	var (
		fills  []models.Fill
		cursor string
	)
	for {
		params := map[string]string{
			"start_at":  strconv.FormatInt(since.UnixMilli(), 10),
			"page_size": strconv.Itoa(min(limit, 100)),
		}
		if cursor != "" {
			params["cursor"] = cursor
		}
		var page paradexPage[paradexFill]
		if err := p.get(ctx, "/fills", params, &page); err != nil {
			return nil, err
		}
		for _, raw := range page.Results {
			f, err := raw.toFill()
			if err != nil {
				p.logger.Warn("skipping malformed fill", zap.String("fill_id", raw.ID), zap.Error(err))
				continue
			}
			fills = append(fills, f)
			if len(fills) >= limit {
				return fills, nil
			}
		}
		if page.Next == "" || len(page.Results) == 0 {
			return fills, nil
		}
		cursor = page.Next
	}
}

func (p *ParadexClient) LiveContext(ctx context.Context, symbol string) (string, error) {
	market := paradexMarket(symbol)

	var positions paradexPage[paradexPosition]
	if err := p.get(ctx, "/positions", nil, &positions); err != nil {
		return "", err
	}
	var orders paradexPage[paradexOrder]
	if err := p.get(ctx, "/orders", map[string]string{"market": market}, &orders); err != nil {
		return "", err
	}
	recent, err := p.RecentFills(ctx, 10, time.Now().AddDate(0, 0, -7))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Paradex account context for %s:\n", market)
	b.WriteString("Positions:\n")
	n := 0
	for _, pos := range positions.Results {
		if pos.Market != market || strings.EqualFold(pos.Status, "CLOSED") {
			continue
		}
		fmt.Fprintf(&b, "- %s %s size=%s entry=%s upnl=%s\n", pos.Market, pos.Side, pos.Size, pos.AverageEntryPrice, pos.UnrealizedPnL)
		n++
	}
	if n == 0 {
		b.WriteString("- none\n")
	}
	b.WriteString("Open orders:\n")
	if len(orders.Results) == 0 {
		b.WriteString("- none\n")
	}
	for _, o := range orders.Results {
		fmt.Fprintf(&b, "- %s %s %s size=%s price=%s status=%s\n", o.Market, o.Side, o.Type, o.Size, o.Price, o.Status)
	}
	b.WriteString("Recent fills (7d):\n")
	n = 0
	for _, f := range recent {
		if f.Market != market {
			continue
		}
		fmt.Fprintf(&b, "- %s %s %s @ %s pnl=%s\n", f.CreatedAt.Format(time.RFC3339), f.Side, f.Size, f.Price, f.RealizedPnL)
		n++
	}
	if n == 0 {
		b.WriteString("- none\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (p *ParadexClient) get(ctx context.Context, path string, params map[string]string, out any) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		Get(path)
	if err != nil {
		return &models.ServiceError{Op: "paradex " + path, Err: err, Temporary: ctx.Err() == nil}
	}
	if resp.IsError() {
		return &models.ServiceError{
			Op:        "paradex " + path,
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()),
			Temporary: resp.StatusCode() >= 500 || resp.StatusCode() == 429,
		}
	}
	return nil
}

func (f paradexFill) toFill() (models.Fill, error) {
	size, err := decimal.NewFromString(orZero(f.Size))
	if err != nil {
		return models.Fill{}, fmt.Errorf("size: %w", err)
	}
	price, err := decimal.NewFromString(orZero(f.Price))
	if err != nil {
		return models.Fill{}, fmt.Errorf("price: %w", err)
	}
	pnl, err := decimal.NewFromString(orZero(f.RealizedPnL))
	if err != nil {
		return models.Fill{}, fmt.Errorf("realized_pnl: %w", err)
	}
	return models.Fill{
		ID:          f.ID,
		Market:      f.Market,
		Side:        f.Side,
		Size:        size,
		Price:       price,
		RealizedPnL: pnl,
		CreatedAt:   time.UnixMilli(f.CreatedAt),
	}, nil
}

func orZero(s string) string {
	if strings.TrimSpace(s) == "" {
		return "0"
	}
	return s
}

// paradexMarket maps BTC-USD or BTC to BTC-USD-PERP.
func paradexMarket(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasSuffix(s, "-PERP") {
		return s
	}
	if !strings.Contains(s, "-") {
		s += "-USD"
	}
	return s + "-PERP"
}
