package cli

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/internal/reflection"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-]+$`)

func validateSymbol(val interface{}) error {
	str := strings.TrimSpace(strings.ToUpper(fmt.Sprint(val)))
	if len(str) == 0 {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(str) > 20 {
		return fmt.Errorf("symbol too long (max 20 characters)")
	}
	if !symbolPattern.MatchString(str) {
		return fmt.Errorf("invalid symbol format (use letters, numbers, dots, and hyphens only)")
	}
	return nil
}

func validateDate(val interface{}) error {
	str := strings.TrimSpace(fmt.Sprint(val))
	if str == "" {
		return nil
	}
	parsed, err := time.Parse(consts.DateLayout, str)
	if err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	if parsed.After(time.Now().AddDate(0, 0, 1)) {
		return fmt.Errorf("analysis date cannot be more than 1 day in the future")
	}
	return nil
}

func validatePnL(val interface{}) error {
	if _, err := strconv.ParseFloat(strings.TrimSpace(fmt.Sprint(val)), 64); err != nil {
		return fmt.Errorf("pnl must be a number, e.g. 125.5 or -42")
	}
	return nil
}

// PromptForSymbol asks for the asset to analyze.
func PromptForSymbol() (string, error) {
	var symbol string
	prompt := &survey.Input{
		Message: "Enter the symbol to analyze (e.g., AAPL, 700.HK, BTC-USD-PERP):",
		Help:    "Stocks use their exchange ticker; perpetual contracts end in -PERP",
	}
	if err := survey.AskOne(prompt, &symbol, survey.WithValidator(validateSymbol)); err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ToUpper(symbol)), nil
}

// PromptForAnalysisDate asks for the trade date, defaulting to today.
func PromptForAnalysisDate() (string, error) {
	var date string
	prompt := &survey.Input{
		Message: "Enter the analysis date (YYYY-MM-DD):",
		Default: time.Now().Format(consts.DateLayout),
	}
	if err := survey.AskOne(prompt, &date, survey.WithValidator(validateDate)); err != nil {
		return "", err
	}
	if date = strings.TrimSpace(date); date == "" {
		date = time.Now().Format(consts.DateLayout)
	}
	return date, nil
}

func logOption(l reflection.DecisionLogRef) string {
	return fmt.Sprintf("%-15s %s  %s", l.Market, l.Date, l.DecisionID)
}

// PromptForDecisionLog lets the user pick one of logs.
func PromptForDecisionLog(logs []reflection.DecisionLogRef) (reflection.DecisionLogRef, error) {
	options := make([]string, len(logs))
	for i, l := range logs {
		options[i] = logOption(l)
	}
	var idx int
	prompt := &survey.Select{
		Message:  "Select a decision to learn from:",
		Options:  options,
		PageSize: 15,
	}
	if err := survey.AskOne(prompt, &idx); err != nil {
		return reflection.DecisionLogRef{}, err
	}
	return logs[idx], nil
}

// PromptForOutcome asks for the realized pnl and optional notes.
func PromptForOutcome() (float64, string, error) {
	var pnlStr, notes string
	if err := survey.AskOne(&survey.Input{
		Message: "Realized PnL (negative for a loss):",
	}, &pnlStr, survey.WithValidator(survey.Required), survey.WithValidator(validatePnL)); err != nil {
		return 0, "", err
	}
	if err := survey.AskOne(&survey.Multiline{
		Message: "Notes (optional):",
	}, &notes); err != nil {
		return 0, "", err
	}
	pnl, _ := strconv.ParseFloat(strings.TrimSpace(pnlStr), 64)
	return pnl, strings.TrimSpace(notes), nil
}

// Confirm asks a yes/no question.
func Confirm(message string, def bool) (bool, error) {
	ok := def
	err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &ok)
	return ok, err
}
