package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMarkdownCreatesDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "AAPL", "2025-01-02", "reports")
	path, err := WriteMarkdown(dir, "market_report.md", "# Market")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "market_report.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Market", string(data))
}
