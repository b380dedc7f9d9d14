package memory

import (
	"strings"

	"github.com/dyike/tradecortex/consts"
)

// FormatMatches renders retrieved recommendations for a prompt.
func FormatMatches(matches []Match) string {
	if len(matches) == 0 {
		return consts.NoPastMemories
	}
	var b strings.Builder
	for _, m := range matches {
		b.WriteString(m.Recommendation)
		b.WriteString("\n\n")
	}
	return b.String()
}
