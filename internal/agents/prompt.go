package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/dyike/tradecortex/internal/utils"
)

// Render formats an embedded prompt. Dynamic text must arrive through vars, never through the
// template itself, so that braces in model output cannot break formatting.
// A prompt file may split system and user turns with a line containing only "---user---".
func Render(ctx context.Context, name string, vars map[string]any) ([]*schema.Message, error) {
	system, user, err := utils.LoadPromptTurns(name)
	if err != nil {
		return nil, err
	}
	msgs := []schema.MessagesTemplate{schema.SystemMessage(system)}
	if user != "" {
		msgs = append(msgs, schema.UserMessage(user))
	}
	out, err := prompt.FromMessages(schema.FString, msgs...).Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("format prompt %s: %w", name, err)
	}
	return out, nil
}

// Complete renders name and returns the reply text.
func Complete(ctx context.Context, m model.BaseChatModel, name string, vars map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	in, err := Render(ctx, name, vars)
	if err != nil {
		return "", err
	}
	out, err := m.Generate(ctx, in)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Content), nil
}

// Label prefixes a debate turn with the speaker, e.g. "Bull Analyst: ...".
func Label(speaker, text string) string {
	return speaker + ": " + strings.TrimSpace(text)
}

// Append adds a line to a transcript.
func Append(transcript, line string) string {
	if transcript == "" {
		return line
	}
	return transcript + "\n" + line
}
