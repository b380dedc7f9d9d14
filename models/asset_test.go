package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyAsset(t *testing.T) {
	cases := map[string]AssetClass{
		"BTC-USD":      AssetCrypto,
		"eth-usdt":     AssetCrypto,
		"BTC-EUR":      AssetCrypto,
		"BTC-USD-PERP": AssetCrypto,
		"SPY":          AssetIndex,
		"qqq":          AssetIndex,
		"AAPL":         AssetStock,
		"0700.HK":      AssetStock,
	}
	for symbol, want := range cases {
		assert.Equal(t, want, ClassifyAsset(symbol), symbol)
	}
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, []ReportKind{ReportMarket, ReportSentiment, ReportNews, ReportFundamentals}, Capabilities(AssetStock).Reports)
	assert.Equal(t, []ReportKind{ReportMarket, ReportSentiment, ReportNews}, Capabilities(AssetCrypto).Reports)
	assert.Equal(t, []ReportKind{ReportMarket, ReportNews}, Capabilities(AssetIndex).Reports)

	crypto := Capabilities(AssetCrypto)
	assert.False(t, crypto.Supports(ReportFundamentals))
	assert.Empty(t, crypto.Tools[ReportFundamentals])
	assert.Contains(t, crypto.Tools[ReportMarket], ToolMarketData)
}

func TestAssetClassJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Class AssetClass `json:"class"`
	}{AssetCrypto})
	require.NoError(t, err)
	assert.JSONEq(t, `{"class":"crypto"}`, string(data))

	var out struct {
		Class AssetClass `json:"class"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"class":"index"}`), &out))
	assert.Equal(t, AssetIndex, out.Class)

	assert.Error(t, json.Unmarshal([]byte(`{"class":"bond"}`), &out))
}

func TestNewDeliberationStateSelectsAnalysts(t *testing.T) {
	s := NewDeliberationState("BTC-USD", "2025-03-01")
	assert.Equal(t, AssetCrypto, s.AssetClass)
	assert.NotContains(t, s.SelectedAnalysts, ReportFundamentals)
	require.NotNil(t, s.InvestmentDebateState)
	require.NotNil(t, s.RiskDebateState)
}

func TestSituationJoinsReports(t *testing.T) {
	s := NewDeliberationState("AAPL", "2025-03-01")
	s.SetReport(ReportMarket, "m")
	s.SetReport(ReportSentiment, "s")
	s.SetReport(ReportNews, "n")
	s.SetReport(ReportFundamentals, "f")
	assert.Equal(t, "m\n\ns\n\nn\n\nf", s.Situation())
}
