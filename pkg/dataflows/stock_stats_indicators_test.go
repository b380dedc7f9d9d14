package dataflows

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candlesFromCloses(closes ...float64) []Candle {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Candle, len(closes))
	for i, c := range closes {
		d := decimal.NewFromFloat(c)
		out[i] = Candle{
			Date:   start.AddDate(0, 0, i),
			Open:   d,
			High:   d.Add(decimal.NewFromInt(1)),
			Low:    d.Sub(decimal.NewFromInt(1)),
			Close:  d,
			Volume: 1000,
		}
	}
	return out
}

func TestSMAWarmup(t *testing.T) {
	s := sma([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(s[0]))
	assert.True(t, math.IsNaN(s[1]))
	assert.InDelta(t, 2.0, s[2], 1e-9)
	assert.InDelta(t, 4.0, s[4], 1e-9)
}

func TestEMASeededBySMA(t *testing.T) {
	s := ema([]float64{2, 4, 6, 8}, 3)
	assert.InDelta(t, 4.0, s[2], 1e-9)
	// k = 0.5
	assert.InDelta(t, 6.0, s[3], 1e-9)
}

func TestRSIMonotonicRiseIs100(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	v, ok := rsi(closes, 14).Last()
	require.True(t, ok)
	assert.Equal(t, 100.0, v)
}

func TestComputeSortsAndRejectsUnknown(t *testing.T) {
	candles := candlesFromCloses(10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20)
	candles[0], candles[10] = candles[10], candles[0]

	s, err := Compute("close_10_ema", candles)
	require.NoError(t, err)
	v, ok := s.Last()
	require.True(t, ok)
	assert.Greater(t, v, 15.0)

	_, err = Compute("ichimoku", candles)
	assert.Error(t, err)
}

func TestBollingerFlatSeries(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 50
	}
	mid, ub, lb := bollinger(closes, 20, 2)
	assert.InDelta(t, 50.0, mid[24], 1e-9)
	assert.InDelta(t, 50.0, ub[24], 1e-9)
	assert.InDelta(t, 50.0, lb[24], 1e-9)
}

func TestSeriesLastEmpty(t *testing.T) {
	_, ok := nanSeries(3).Last()
	assert.False(t, ok)
}
