package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *DeliberationState {
	s := NewDeliberationState("BTC-USD", "2025-03-01")
	s.DecisionID = "d-123"
	s.Timestamp = "2025-03-01T10:00:00Z"
	s.MarketReport = "market"
	s.SentimentReport = "sentiment"
	s.NewsReport = "news"
	s.InvestmentDebateState = &InvestDebateState{
		BullHistory:     "Bull Analyst: up",
		BearHistory:     "Bear Analyst: down",
		History:         "Bull Analyst: up\nBear Analyst: down",
		CurrentResponse: "Bear Analyst: down",
		JudgeDecision:   "go long",
		Count:           2,
	}
	s.InvestmentPlan = "go long"
	s.TraderInvestmentPlan = "FINAL TRADING PROPOSAL: LONG"
	s.RiskDebateState = &RiskDebateState{
		RiskyHistory:  "Risky Analyst: more",
		History:       "Risky Analyst: more",
		LatestSpeaker: "Judge",
		JudgeDecision: "FINAL TRADE DECISION: LONG",
		Count:         3,
	}
	s.FinalTradeDecision = "FINAL TRADE DECISION: LONG"
	s.FinalDecision = &FinalDecision{Action: ActionLong, Confidence: 0.7, Reasoning: "trend"}
	return s
}

func TestDecisionLogRoundTripFlat(t *testing.T) {
	s := sampleState()
	data, err := EncodeDecisionLog(s)
	require.NoError(t, err)

	got, err := DecodeDecisionLog(data)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestDecisionLogRoundTripLegacy(t *testing.T) {
	s := sampleState()
	s.DecisionID = ""
	data, err := json.Marshal(map[string]any{s.TradeDate: s})
	require.NoError(t, err)

	got, err := DecodeDecisionLog(data)
	require.NoError(t, err)
	assert.Equal(t, LegacyDecisionID(s.CompanyOfInterest, s.TradeDate), got.DecisionID)
	s.DecisionID = got.DecisionID
	assert.Equal(t, s, got)
}

func TestDecodeLegacyFillsTradeDateAndDecision(t *testing.T) {
	raw := `{"2024-12-30": {"company_of_interest": "ETH-USD", "market_report": "m",
		"final_trade_decision": "reasoning... FINAL TRADE DECISION: SELL"}}`
	got, err := DecodeDecisionLog([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "2024-12-30", got.TradeDate)
	assert.Equal(t, "legacy_ETH-USD_2024-12-30", got.DecisionID)
	assert.Equal(t, AssetCrypto, got.AssetClass)
	require.NotNil(t, got.FinalDecision)
	assert.Equal(t, ActionShort, got.FinalDecision.Action)
	assert.NotNil(t, got.InvestmentDebateState)
}

func TestLoadLegacyDerivesIDFromPath(t *testing.T) {
	root := t.TempDir()
	path := DecisionLogPath(root, "SOL-USD-PERP", "2025-02-01")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"2025-02-01": {"market_report": "m"}}`), 0o644))

	got, err := LoadDecisionLog(path)
	require.NoError(t, err)
	assert.Equal(t, "legacy_SOL-USD_2025-02-01", got.DecisionID)
	assert.Equal(t, "2025-02-01", got.TradeDate)
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{`not json`, `{}`, `{"2024-01-01": "text"}`} {
		_, err := DecodeDecisionLog([]byte(raw))
		assert.True(t, IsDataFormatError(err), raw)
	}
}

func TestWriteAndLoadDecisionLog(t *testing.T) {
	root := t.TempDir()
	s := sampleState()
	path, err := WriteDecisionLog(root, s)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "BTC-USD", "TradingAgentsStrategy_logs", "full_states_log_2025-03-01.json"), path)

	got, err := LoadDecisionLog(path)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	bad := filepath.Join(root, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadDecisionLog(bad)
	var dfe *DataFormatError
	require.ErrorAs(t, err, &dfe)
	assert.Equal(t, bad, dfe.Path)
}

func TestSanitizeMarket(t *testing.T) {
	assert.Equal(t, "BTC-USD", SanitizeMarket("BTC-USD-PERP"))
	assert.Equal(t, "AAPL", SanitizeMarket("AAPL"))
	assert.Equal(t, filepath.Join("r", "ETH-USD", "TradingAgentsStrategy_logs", "full_states_log_2025-01-02.json"),
		DecisionLogPath("r", "ETH-USD-PERP", "2025-01-02"))
}
