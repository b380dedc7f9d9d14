package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dyike/tradecortex/consts"
)

// SanitizeMarket maps an exchange market (BTC-USD-PERP) to its decision-log directory (BTC-USD).
func SanitizeMarket(market string) string {
	return strings.ReplaceAll(strings.TrimSpace(market), consts.PerpSuffix, "")
}

// DecisionLogPath returns <root>/<market>/TradingAgentsStrategy_logs/full_states_log_<date>.json.
func DecisionLogPath(root, market, date string) string {
	return filepath.Join(root, SanitizeMarket(market), consts.DecisionLogDir, consts.DecisionLogPrefix+date+".json")
}

// LegacyDecisionID is the stable id given to logs written before decision ids
// existed. Memories reflected from such a log carry it, so deleting the log
// cascades to them.
func LegacyDecisionID(market, date string) string {
	return "legacy_" + SanitizeMarket(market) + "_" + strings.TrimSpace(date)
}

// EncodeDecisionLog renders the flat decision log format.
func EncodeDecisionLog(s *DeliberationState) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil state")
	}
	return json.MarshalIndent(s, "", "  ")
}

// DecodeDecisionLog accepts the flat format (has decision_id) or the legacy format keyed by date.
func DecodeDecisionLog(data []byte) (*DeliberationState, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, &DataFormatError{Err: err}
	}
	if len(top) == 0 {
		return nil, &DataFormatError{Err: errors.New("empty decision log")}
	}

	_, hasID := top["decision_id"]
	_, hasCompany := top["company_of_interest"]
	if hasID || hasCompany {
		s, err := decodeFlat(data)
		if err != nil {
			return nil, err
		}
		s.assignLegacyID()
		return s, nil
	}

	keys := make([]string, 0, len(top))
	for k := range top {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		raw := bytes.TrimSpace(top[k])
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}
		s, err := decodeFlat(raw)
		if err != nil {
			return nil, err
		}
		if s.TradeDate == "" {
			s.TradeDate = k
		}
		s.assignLegacyID()
		return s, nil
	}
	return nil, &DataFormatError{Err: errors.New("no state object found in decision log")}
}

func decodeFlat(data []byte) (*DeliberationState, error) {
	var s DeliberationState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, &DataFormatError{Err: err}
	}
	s.ensureDebateStates()
	if s.AssetClass == AssetUnknown && s.CompanyOfInterest != "" {
		s.AssetClass = ClassifyAsset(s.CompanyOfInterest)
	}
	if s.FinalDecision == nil && s.FinalTradeDecision != "" {
		if action, ok := ExtractProposal(s.FinalTradeDecision); ok {
			s.FinalDecision = &FinalDecision{Action: action, Reasoning: s.FinalTradeDecision}
		}
	}
	return &s, nil
}

func (s *DeliberationState) assignLegacyID() {
	if s.DecisionID == "" && s.CompanyOfInterest != "" && s.TradeDate != "" {
		s.DecisionID = LegacyDecisionID(s.CompanyOfInterest, s.TradeDate)
	}
}

// LoadDecisionLog reads and decodes a decision log file.
func LoadDecisionLog(path string) (*DeliberationState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DataFormatError{Path: path, Err: err}
	}
	s, err := DecodeDecisionLog(data)
	if err != nil {
		var dfe *DataFormatError
		if errors.As(err, &dfe) {
			dfe.Path = path
		}
		return nil, err
	}
	if s.DecisionID == "" {
		if market, date, ok := splitDecisionLogPath(path); ok {
			s.DecisionID = LegacyDecisionID(market, date)
		}
	}
	return s, nil
}

// splitDecisionLogPath recovers market and date from a path built by DecisionLogPath.
func splitDecisionLogPath(path string) (market, date string, ok bool) {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, consts.DecisionLogPrefix) || !strings.HasSuffix(name, ".json") {
		return "", "", false
	}
	date = strings.TrimSuffix(strings.TrimPrefix(name, consts.DecisionLogPrefix), ".json")
	dir := filepath.Dir(path)
	if filepath.Base(dir) != consts.DecisionLogDir {
		return "", "", false
	}
	market = filepath.Base(filepath.Dir(dir))
	return market, date, market != "" && date != ""
}

// WriteDecisionLog persists s under root and returns the file path.
func WriteDecisionLog(root string, s *DeliberationState) (string, error) {
	data, err := EncodeDecisionLog(s)
	if err != nil {
		return "", err
	}
	path := DecisionLogPath(root, s.CompanyOfInterest, s.TradeDate)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create decision log dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "log-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp decision log: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write decision log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close decision log: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename decision log: %w", err)
	}
	return path, nil
}
