package reflection

import (
	"errors"
	"os"
	"time"

	"github.com/dyike/tradecortex/consts"
	"github.com/dyike/tradecortex/models"
)

// Matcher locates the decision log a fill was traded on.
type Matcher struct {
	root       string
	windowDays int
	loc        *time.Location
}

// NewMatcher looks back windowDays calendar days, the fill's own day included.
// Fill timestamps are converted to loc before taking the date; nil means time.Local.
func NewMatcher(root string, windowDays int, loc *time.Location) *Matcher {
	if windowDays <= 0 {
		windowDays = 2
	}
	if loc == nil {
		loc = time.Local
	}
	return &Matcher{root: root, windowDays: windowDays, loc: loc}
}

// Dates are the candidate decision dates for a fill, most recent first.
func (m *Matcher) Dates(at time.Time) []string {
	day := at.In(m.loc)
	dates := make([]string, 0, m.windowDays)
	for i := 0; i < m.windowDays; i++ {
		dates = append(dates, day.AddDate(0, 0, -i).Format(consts.DateLayout))
	}
	return dates
}

// Find returns the path of the matching decision log or a *models.MatchError.
func (m *Matcher) Find(fill models.Fill) (string, error) {
	dates := m.Dates(fill.CreatedAt)
	for _, date := range dates {
		path := models.DecisionLogPath(m.root, fill.Market, date)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", &models.MatchError{FillID: fill.ID, Market: models.SanitizeMarket(fill.Market), Dates: dates}
}
