package dataflows

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// IndicatorNames lists every indicator Compute understands.
var IndicatorNames = []string{
	"close_10_ema", "close_50_sma", "close_200_sma", "vwma",
	"rsi", "macd", "macds", "macdh", "mfi",
	"boll", "boll_ub", "boll_lb", "atr",
}

// IndicatorDescriptions is handed to the market analyst so it can pick indicators.
var IndicatorDescriptions = map[string]string{
	"close_10_ema":  "10 EMA: responsive short-term average for quick momentum shifts",
	"close_50_sma":  "50 SMA: medium-term trend indicator, dynamic support/resistance",
	"close_200_sma": "200 SMA: long-term trend benchmark, golden/death cross setups",
	"vwma":          "VWMA: 20-period moving average weighted by volume",
	"rsi":           "RSI 14: overbought above 70, oversold below 30",
	"macd":          "MACD: EMA12 minus EMA26, momentum via crossovers and divergence",
	"macds":         "MACD signal: 9-period EMA of MACD",
	"macdh":         "MACD histogram: gap between MACD and its signal",
	"mfi":           "MFI 14: volume-weighted RSI, above 80 overbought, below 20 oversold",
	"boll":          "Bollinger middle: 20 SMA",
	"boll_ub":       "Bollinger upper band: middle + 2 standard deviations",
	"boll_lb":       "Bollinger lower band: middle - 2 standard deviations",
	"atr":           "ATR 14: average true range, volatility for stop sizing",
}

// Series is an indicator aligned to the candle slice; NaN until warm-up completes.
type Series []float64

// Last returns the most recent defined value.
func (s Series) Last() (float64, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if !math.IsNaN(s[i]) {
			return s[i], true
		}
	}
	return 0, false
}

type ohlcv struct {
	high, low, close, volume []float64
}

func columns(candles []Candle) ohlcv {
	c := ohlcv{
		high:   make([]float64, len(candles)),
		low:    make([]float64, len(candles)),
		close:  make([]float64, len(candles)),
		volume: make([]float64, len(candles)),
	}
	for i, k := range candles {
		c.high[i] = k.High.InexactFloat64()
		c.low[i] = k.Low.InexactFloat64()
		c.close[i] = k.Close.InexactFloat64()
		c.volume[i] = float64(k.Volume)
	}
	return c
}

// Compute returns the named indicator over candles, which are sorted by date first.
func Compute(name string, candles []Candle) (Series, error) {
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })
	c := columns(candles)

	switch strings.ToLower(name) {
	case "close_10_ema":
		return ema(c.close, 10), nil
	case "close_50_sma":
		return sma(c.close, 50), nil
	case "close_200_sma":
		return sma(c.close, 200), nil
	case "vwma":
		return vwma(c.close, c.volume, 20), nil
	case "rsi":
		return rsi(c.close, 14), nil
	case "macd":
		m, _, _ := macd(c.close)
		return m, nil
	case "macds":
		_, s, _ := macd(c.close)
		return s, nil
	case "macdh":
		_, _, h := macd(c.close)
		return h, nil
	case "mfi":
		return mfi(c, 14), nil
	case "boll":
		mid, _, _ := bollinger(c.close, 20, 2)
		return mid, nil
	case "boll_ub":
		_, ub, _ := bollinger(c.close, 20, 2)
		return ub, nil
	case "boll_lb":
		_, _, lb := bollinger(c.close, 20, 2)
		return lb, nil
	case "atr":
		return atr(c, 14), nil
	}
	return nil, fmt.Errorf("unsupported indicator %q", name)
}

func nanSeries(n int) Series {
	s := make(Series, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func sma(values []float64, period int) Series {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// ema seeds with the SMA of the first period values.
func ema(values []float64, period int) Series {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	k := 2.0 / float64(period+1)
	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	prev := seed / float64(period)
	out[period-1] = prev
	for i := period; i < len(values); i++ {
		prev = (values[i]-prev)*k + prev
		out[i] = prev
	}
	return out
}

func rsi(closes []float64, period int) Series {
	out := nanSeries(len(closes))
	if len(closes) <= period {
		return out
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain, avgLoss := gain/float64(period), loss/float64(period)
	out[period] = rsiValue(avgGain, avgLoss)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

func macd(closes []float64) (line, signal, hist Series) {
	fast, slow := ema(closes, 12), ema(closes, 26)
	line = nanSeries(len(closes))
	var defined []float64
	first := -1
	for i := range closes {
		if math.IsNaN(fast[i]) || math.IsNaN(slow[i]) {
			continue
		}
		line[i] = fast[i] - slow[i]
		if first < 0 {
			first = i
		}
		defined = append(defined, line[i])
	}
	signal = nanSeries(len(closes))
	hist = nanSeries(len(closes))
	if first < 0 {
		return line, signal, hist
	}
	sig := ema(defined, 9)
	for j, v := range sig {
		if math.IsNaN(v) {
			continue
		}
		signal[first+j] = v
		hist[first+j] = line[first+j] - v
	}
	return line, signal, hist
}

func bollinger(closes []float64, period int, mult float64) (mid, upper, lower Series) {
	mid = sma(closes, period)
	upper, lower = nanSeries(len(closes)), nanSeries(len(closes))
	for i := period - 1; i < len(closes); i++ {
		if i < 0 {
			continue
		}
		variance := 0.0
		for _, v := range closes[i-period+1 : i+1] {
			variance += (v - mid[i]) * (v - mid[i])
		}
		sd := math.Sqrt(variance / float64(period))
		upper[i] = mid[i] + mult*sd
		lower[i] = mid[i] - mult*sd
	}
	return mid, upper, lower
}

// atr uses Wilder smoothing of the true range.
func atr(c ohlcv, period int) Series {
	n := len(c.close)
	out := nanSeries(n)
	if n <= period {
		return out
	}
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		tr[i] = math.Max(c.high[i]-c.low[i], math.Max(math.Abs(c.high[i]-c.close[i-1]), math.Abs(c.low[i]-c.close[i-1])))
	}
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	prev := sum / float64(period)
	out[period] = prev
	for i := period + 1; i < n; i++ {
		prev = (prev*float64(period-1) + tr[i]) / float64(period)
		out[i] = prev
	}
	return out
}

func vwma(closes, volumes []float64, period int) Series {
	out := nanSeries(len(closes))
	for i := period - 1; i < len(closes); i++ {
		if i < 0 {
			continue
		}
		var pv, v float64
		for j := i - period + 1; j <= i; j++ {
			pv += closes[j] * volumes[j]
			v += volumes[j]
		}
		if v > 0 {
			out[i] = pv / v
		}
	}
	return out
}

func mfi(c ohlcv, period int) Series {
	n := len(c.close)
	out := nanSeries(n)
	tp := make([]float64, n)
	for i := range tp {
		tp[i] = (c.high[i] + c.low[i] + c.close[i]) / 3
	}
	for i := period; i < n; i++ {
		var pos, neg float64
		for j := i - period + 1; j <= i; j++ {
			flow := tp[j] * c.volume[j]
			if tp[j] > tp[j-1] {
				pos += flow
			} else if tp[j] < tp[j-1] {
				neg += flow
			}
		}
		if neg == 0 {
			out[i] = 100
			continue
		}
		out[i] = 100 - 100/(1+pos/neg)
	}
	return out
}
