package models

import (
	"fmt"
	"strings"
)

// AssetClass selects which analysts and tools apply to a deliberation.
type AssetClass int

const (
	AssetUnknown AssetClass = iota
	AssetStock
	AssetCrypto
	AssetIndex
)

func (a AssetClass) String() string {
	switch a {
	case AssetStock:
		return "stock"
	case AssetCrypto:
		return "crypto"
	case AssetIndex:
		return "index"
	default:
		return "unknown"
	}
}

func (a AssetClass) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AssetClass) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "stock":
		*a = AssetStock
	case "crypto":
		*a = AssetCrypto
	case "index":
		*a = AssetIndex
	case "", "unknown":
		*a = AssetUnknown
	default:
		return fmt.Errorf("unknown asset class %q", string(text))
	}
	return nil
}

// ReportKind names one of the four analyst reports.
type ReportKind string

const (
	ReportMarket       ReportKind = "market"
	ReportSentiment    ReportKind = "sentiment"
	ReportNews         ReportKind = "news"
	ReportFundamentals ReportKind = "fundamentals"
)

// AllReports is the canonical report order used when building situations.
var AllReports = []ReportKind{ReportMarket, ReportSentiment, ReportNews, ReportFundamentals}

// Tool names exposed to analysts.
const (
	ToolMarketData   = "get_market_data"
	ToolIndicators   = "get_indicators"
	ToolSocialPosts  = "get_social_posts"
	ToolNews         = "get_news"
	ToolFundamentals = "get_fundamentals"
)

// Capability is what an asset class can be analysed with.
type Capability struct {
	Reports []ReportKind
	Tools   map[ReportKind][]string
}

// Supports reports whether kind applies to the capability.
func (c Capability) Supports(kind ReportKind) bool {
	for _, r := range c.Reports {
		if r == kind {
			return true
		}
	}
	return false
}

var capabilities = map[AssetClass]Capability{
	AssetStock: {
		Reports: []ReportKind{ReportMarket, ReportSentiment, ReportNews, ReportFundamentals},
		Tools: map[ReportKind][]string{
			ReportMarket:       {ToolMarketData, ToolIndicators},
			ReportSentiment:    {ToolSocialPosts},
			ReportNews:         {ToolNews},
			ReportFundamentals: {ToolFundamentals},
		},
	},
	AssetCrypto: {
		Reports: []ReportKind{ReportMarket, ReportSentiment, ReportNews},
		Tools: map[ReportKind][]string{
			ReportMarket:    {ToolMarketData, ToolIndicators},
			ReportSentiment: {ToolSocialPosts},
			ReportNews:      {ToolNews},
		},
	},
	AssetIndex: {
		Reports: []ReportKind{ReportMarket, ReportNews},
		Tools: map[ReportKind][]string{
			ReportMarket: {ToolMarketData, ToolIndicators},
			ReportNews:   {ToolNews},
		},
	},
}

// Capabilities returns the capability table entry for a class. Unknown classes get the stock entry.
func Capabilities(class AssetClass) Capability {
	if c, ok := capabilities[class]; ok {
		return c
	}
	return capabilities[AssetStock]
}

var cryptoSuffixes = []string{"-USD", "-EUR", "-USDT"}

var indexSymbols = map[string]bool{
	"SPY": true, "QQQ": true, "IWM": true, "VTI": true,
	"GLD": true, "TLT": true, "VIX": true, "DXY": true,
}

// ClassifyAsset resolves the asset class of a ticker.
func ClassifyAsset(symbol string) AssetClass {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.TrimSuffix(s, "-PERP")
	for _, suffix := range cryptoSuffixes {
		if strings.HasSuffix(s, suffix) {
			return AssetCrypto
		}
	}
	if indexSymbols[s] {
		return AssetIndex
	}
	return AssetStock
}
