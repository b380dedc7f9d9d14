package portfolio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dyike/tradecortex/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParadexRecentFillsPages(t *testing.T) {
	created := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("cursor") {
		case "":
			fmt.Fprintf(w, `{"next":"p2","results":[{"id":"f1","market":"BTC-USD-PERP","side":"SELL","size":"0.5","price":"60000","realized_pnl":"125.5","created_at":%d}]}`, created)
		default:
			fmt.Fprintf(w, `{"next":"","results":[{"id":"f2","market":"ETH-USD-PERP","side":"BUY","size":"1","price":"3000","realized_pnl":"","created_at":%d},{"id":"bad","size":"x"}]}`, created)
		}
	}))
	defer srv.Close()

	c, err := NewParadexClient(srv.URL, "tok", time.Second, zap.NewNop())
	require.NoError(t, err)

	fills, err := c.RecentFills(context.Background(), 100, time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, "f1", fills[0].ID)
	assert.Equal(t, 125.5, fills[0].PnL())
	assert.True(t, fills[1].RealizedPnL.IsZero())
	assert.Equal(t, created, fills[0].CreatedAt.UnixMilli())
}

func TestParadexServerErrorIsTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewParadexClient(srv.URL, "tok", time.Second, nil)
	require.NoError(t, err)
	_, err = c.RecentFills(context.Background(), 10, time.Now())

	var se *models.ServiceError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Retryable())
}

func TestParadexNeedsJWT(t *testing.T) {
	_, err := NewParadexClient("http://x", "", 0, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParadexMarket(t *testing.T) {
	assert.Equal(t, "BTC-USD-PERP", paradexMarket("btc"))
	assert.Equal(t, "BTC-USD-PERP", paradexMarket("BTC-USD"))
	assert.Equal(t, "ETH-USD-PERP", paradexMarket("ETH-USD-PERP"))
}

type staticContext struct {
	text string
	err  error
}

func (s staticContext) LiveContext(ctx context.Context, symbol string) (string, error) {
	return s.text, s.err
}

func TestCompositeLiveContextSkipsFailures(t *testing.T) {
	c := NewComposite(nil, nil,
		staticContext{err: ErrNotConfigured},
		staticContext{text: "positions: none"},
		staticContext{err: errors.New("boom")},
	)
	text, err := c.LiveContext(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "positions: none", text)

	_, err = c.RecentFills(context.Background(), 1, time.Now())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCompositeLiveContextEmpty(t *testing.T) {
	text, err := NewComposite(nil, nil).LiveContext(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Contains(t, text, "No live portfolio context")
}
