package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/dyike/tradecortex/internal/reflection"
	"github.com/dyike/tradecortex/models"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2).
			Width(80)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))
)

var actionStyles = map[models.Action]lipgloss.Style{
	models.ActionLong:    completedStyle,
	models.ActionShort:   errorStyle,
	models.ActionNeutral: pendingStyle,
}

func renderAction(a models.Action) string {
	if st, ok := actionStyles[a]; ok {
		return st.Render(string(a))
	}
	return string(a)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func field(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-14s", label)) + value + "\n"
}

// renderDecision shows the outcome of one deliberation.
func renderDecision(w io.Writer, s *models.DeliberationState, logPath string) {
	var b strings.Builder
	b.WriteString(field("Symbol", s.CompanyOfInterest))
	b.WriteString(field("Date", s.TradeDate))
	b.WriteString(field("Asset class", s.AssetClass.String()))
	b.WriteString(field("Decision ID", s.DecisionID))
	if d := s.FinalDecision; d != nil {
		b.WriteString(field("Action", renderAction(d.Action)))
		b.WriteString(field("Confidence", fmt.Sprintf("%.2f", d.Confidence)))
		b.WriteString(field("Reasoning", truncate(d.Reasoning, 200)))
	}
	if logPath != "" {
		b.WriteString(field("Decision log", logPath))
	}
	fmt.Fprintln(w, titleStyle.Render("Final Trade Decision"))
	fmt.Fprintln(w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func renderBatchSummary(w io.Writer, results []BatchResult) {
	var ok, failed int
	var b strings.Builder
	for _, r := range results {
		switch r.Status {
		case BatchCompleted:
			ok++
			fmt.Fprintf(&b, "%s %-12s %s  %s\n", completedStyle.Render("✓"), r.Symbol, renderAction(r.Action), labelStyle.Render(r.Duration.String()))
		default:
			failed++
			fmt.Fprintf(&b, "%s %-12s %s\n", errorStyle.Render("✗"), r.Symbol, truncate(r.Error, 60))
		}
	}
	fmt.Fprintf(&b, "\n%d completed, %d failed", ok, failed)
	fmt.Fprintln(w, titleStyle.Render("Batch Analysis Summary"))
	fmt.Fprintln(w, panelStyle.Render(b.String()))
}

func renderDecisionLogs(w io.Writer, grouped map[string][]reflection.DecisionLogRef, perMarket int) {
	if len(grouped) == 0 {
		fmt.Fprintln(w, "No decision logs found.")
		return
	}
	markets := make([]string, 0, len(grouped))
	for m := range grouped {
		markets = append(markets, m)
	}
	sort.Strings(markets)

	for _, m := range markets {
		logs := grouped[m]
		var b strings.Builder
		for i, l := range logs {
			if perMarket > 0 && i == perMarket {
				fmt.Fprintf(&b, "... and %d more logs\n", len(logs)-perMarket)
				break
			}
			mark := " "
			if l.Learned {
				mark = completedStyle.Render("✓")
			}
			fmt.Fprintf(&b, "%s %s  %-36s %4dKB\n", mark, l.Date, truncate(l.DecisionID, 36), l.Size/1024)
		}
		fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%d logs)", m, len(logs))))
		fmt.Fprintln(w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
	}
}

func renderLogList(w io.Writer, logs []reflection.DecisionLogRef) {
	if len(logs) == 0 {
		fmt.Fprintln(w, "No matching logs found.")
		return
	}
	for i, l := range logs {
		fmt.Fprintf(w, "%2d. %-15s %s  %s\n    %s\n", i+1, l.Market, l.Date, l.DecisionID, labelStyle.Render(l.Path))
	}
}

func renderManualResult(w io.Writer, res *reflection.ManualResult) {
	var b strings.Builder
	b.WriteString(field("Decision ID", res.DecisionID))
	b.WriteString(field("PnL", fmt.Sprintf("%+.4f", res.InputPnL)))
	b.WriteString(field("Timestamp", res.Timestamp))
	b.WriteString(field("Roles learned", fmt.Sprintf("%d", len(res.Reflections))))
	if res.File != "" {
		b.WriteString(field("Saved to", res.File))
	}
	roles := make([]string, 0, len(res.Reflections))
	for r := range res.Reflections {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	for _, r := range roles {
		b.WriteString("\n" + completedStyle.Render(r) + "\n" + truncate(res.Reflections[r], 300) + "\n")
	}
	fmt.Fprintln(w, titleStyle.Render("Manual Learning"))
	fmt.Fprintln(w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func renderAutoSummary(w io.Writer, sum *reflection.AutoSummary) {
	var b strings.Builder
	b.WriteString(field("Fetched", fmt.Sprint(sum.Fetched)))
	b.WriteString(field("New", fmt.Sprint(sum.New)))
	b.WriteString(field("Reflected", completedStyle.Render(fmt.Sprint(sum.Reflected))))
	b.WriteString(field("Zero PnL", fmt.Sprint(sum.SkippedZeroPnL)))
	b.WriteString(field("No match", fmt.Sprint(sum.SkippedNoMatch)))
	failed := fmt.Sprint(sum.Failed)
	if sum.Failed > 0 {
		failed = errorStyle.Render(failed)
	}
	b.WriteString(field("Failed", failed))
	fmt.Fprintln(w, titleStyle.Render("Learning Engine"))
	fmt.Fprintln(w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func renderRecords(w io.Writer, recs []models.LearningRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No learning records found.")
		return
	}
	for _, r := range recs {
		status := completedStyle.Render("ok")
		if !r.Success {
			status = errorStyle.Render("failed")
		}
		fmt.Fprintf(w, "%s  %-6s %-36s pnl %+.4f  roles %d\n    %s\n",
			r.Timestamp, status, r.DecisionID, r.InputPnL, len(r.Reflections), labelStyle.Render(r.DecisionLogPath))
	}
}

func renderRuns(w io.Writer, runs []models.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-10s %-12s %s  %-9s %s\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Symbol, r.TradeDate, r.ID, r.Status, renderAction(r.Action))
		if r.Error != "" {
			fmt.Fprintf(w, "    %s\n", errorStyle.Render(truncate(r.Error, 100)))
		}
	}
}
