package portfolio

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dyike/tradecortex/config"
	"github.com/dyike/tradecortex/models"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned by a collaborator with no credentials.
var ErrNotConfigured = errors.New("portfolio collaborator not configured")

// FillSource supplies closed trades for automatic reflection.
type FillSource interface {
	RecentFills(ctx context.Context, limit int, since time.Time) ([]models.Fill, error)
}

// ContextSource renders live position, order and trade-history context for the trader.
type ContextSource interface {
	LiveContext(ctx context.Context, symbol string) (string, error)
}

// Portfolio is both.
type Portfolio interface {
	FillSource
	ContextSource
}

// Composite fans LiveContext out to every source and takes fills from the first.
type Composite struct {
	Fills    FillSource
	Contexts []ContextSource
	logger   *zap.Logger
}

func NewComposite(fills FillSource, logger *zap.Logger, contexts ...ContextSource) *Composite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composite{Fills: fills, Contexts: contexts, logger: logger.With(zap.String("component", "portfolio"))}
}

func (c *Composite) RecentFills(ctx context.Context, limit int, since time.Time) ([]models.Fill, error) {
	if c.Fills == nil {
		return nil, ErrNotConfigured
	}
	return c.Fills.RecentFills(ctx, limit, since)
}

// LiveContext never fails the caller: unavailable sources are reported inline.
func (c *Composite) LiveContext(ctx context.Context, symbol string) (string, error) {
	var parts []string
	for _, src := range c.Contexts {
		text, err := src.LiveContext(ctx, symbol)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if !errors.Is(err, ErrNotConfigured) {
				c.logger.Warn("live context unavailable", zap.String("symbol", symbol), zap.Error(err))
			}
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "No live portfolio context available.", nil
	}
	return strings.Join(parts, "\n\n"), nil
}

// New wires the configured collaborators: Paradex for fills and perp context, Longport for stock positions.
func New(cfg *config.Config, logger *zap.Logger) *Composite {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		fills    FillSource
		contexts []ContextSource
	)
	if px, err := NewParadexClient(cfg.ParadexBaseURL, cfg.ParadexJWT, cfg.CallTimeout, logger); err == nil {
		fills = px
		contexts = append(contexts, px)
	}
	if lp, err := NewLongportPositions(cfg); err == nil {
		contexts = append(contexts, lp)
	} else if !errors.Is(err, ErrNotConfigured) {
		logger.Warn("longport positions unavailable", zap.Error(err))
	}
	return NewComposite(fills, logger, contexts...)
}
