package utils

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed prompts
var promptFiles embed.FS

// userMarker splits a prompt file into its system and user turns.
const userMarker = "\n---user---\n"

// LoadPrompt returns the raw markdown of prompts/<name>.md.
func LoadPrompt(name string) (string, error) {
	content, err := promptFiles.ReadFile(path.Join("prompts", name+".md"))
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", name, err)
	}
	return string(content), nil
}

// LoadPromptTurns returns the system and user parts of a prompt. user is empty for single-turn prompts.
func LoadPromptTurns(name string) (system, user string, err error) {
	tpl, err := LoadPrompt(name)
	if err != nil {
		return "", "", err
	}
	system, user, _ = strings.Cut(tpl, userMarker)
	return strings.TrimSpace(system), strings.TrimSpace(user), nil
}

// PromptNames lists every embedded prompt, e.g. "managers/risk_manager".
func PromptNames() []string {
	var names []string
	_ = fs.WalkDir(promptFiles, "prompts", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(p) != ".md" {
			return err
		}
		names = append(names, strings.TrimSuffix(strings.TrimPrefix(p, "prompts/"), ".md"))
		return nil
	})
	sort.Strings(names)
	return names
}
