package graph

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/models"
	"github.com/dyike/tradecortex/pkg/utils"
	"go.uber.org/zap"
)

var stageFiles = map[string]string{
	consts.MarketAnalyst:       "market_report.md",
	consts.SocialMediaAnalyst:  "sentiment_report.md",
	consts.NewsAnalyst:         "news_report.md",
	consts.FundamentalsAnalyst: "fundamentals_report.md",
	consts.ResearchManager:     "investment_plan.md",
	consts.Trader:              "trader_investment_plan.md",
	consts.RiskJudge:           "final_trade_decision.md",
}

// reportWriter mirrors stage outputs to <results>/<symbol>/<date>/reports. Write failures are logged only.
type reportWriter struct {
	dir    string
	logger *zap.Logger
}

func newReportWriter(resultsDir, symbol, date string, logger *zap.Logger) *reportWriter {
	if resultsDir == "" {
		return &reportWriter{logger: logger}
	}
	return &reportWriter{dir: filepath.Join(resultsDir, symbol, date, "reports"), logger: logger}
}

func (w *reportWriter) write(name, content string) {
	if w.dir == "" || strings.TrimSpace(content) == "" {
		return
	}
	path, err := utils.WriteMarkdown(w.dir, name, content)
	if err != nil {
		w.logger.Warn("write report", zap.String("file", name), zap.Error(err))
		return
	}
	w.logger.Debug("report written", zap.String("path", path))
}

// Stage writes the file of a single-shot stage. Debate turns are written by Final.
func (w *reportWriter) Stage(stage, content string) {
	if name, ok := stageFiles[stage]; ok {
		w.write(name, content)
	}
}

func (w *reportWriter) Final(s *models.DeliberationState) {
	w.write("investment_debate.md", s.InvestmentDebateState.History)
	w.write("risk_debate.md", s.RiskDebateState.History)
	w.write("complete_report.md", RenderReport(s))
}

// RenderReport is the full markdown report of a finished deliberation.
func RenderReport(s *models.DeliberationState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s\n\n", s.CompanyOfInterest, s.TradeDate)
	if d := s.FinalDecision; d != nil {
		fmt.Fprintf(&b, "**Decision:** %s (confidence %.2f)\n\n", d.Action, d.Confidence)
	}

	section := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", title, strings.TrimSpace(body))
	}
	section("Market Analysis", s.MarketReport)
	section("Social Sentiment", s.SentimentReport)
	section("News Analysis", s.NewsReport)
	section("Fundamentals Analysis", s.FundamentalsReport)
	section("Investment Debate", s.InvestmentDebateState.History)
	section("Research Manager Decision", s.InvestmentPlan)
	section("Trading Plan", s.TraderInvestmentPlan)
	section("Risk Debate", s.RiskDebateState.History)
	section("Final Trade Decision", s.FinalTradeDecision)
	return b.String()
}
