package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dyike/tradecortex/config"
	"github.com/dyike/tradecortex/pkg/dataflows"
	"github.com/longportapp/openapi-go/trade"
)

type stockPositions interface {
	StockPositions(ctx context.Context, symbols []string) ([]*trade.StockPositionChannel, error)
}

// LongportPositions exposes brokerage stock positions as trader context.
type LongportPositions struct {
	client stockPositions
}

func NewLongportPositions(cfg *config.Config) (*LongportPositions, error) {
	c, err := dataflows.NewLongportClient(cfg)
	if err != nil {
		if err == dataflows.ErrLongportNotConfigured {
			return nil, ErrNotConfigured
		}
		return nil, err
	}
	return &LongportPositions{client: c}, nil
}

func (l *LongportPositions) LiveContext(ctx context.Context, symbol string) (string, error) {
	channels, err := l.client.StockPositions(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("longport positions: %w", err)
	}
	body, err := json.MarshalIndent(channels, "", "  ")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Longport stock positions (analysing %s):\n", symbol)
	b.Write(body)
	return b.String(), nil
}
