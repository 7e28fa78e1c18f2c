package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrServiceUnavailable is returned when no completion could be produced.
var ErrServiceUnavailable = errors.New("completion service unavailable")

// Completer turns a prompt into generated text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single message of a conversation.
type Turn struct {
	Role    string `json:"role"`
	Author  string `json:"author,omitempty"`
	Content string `json:"content"`
}

// LastTurns returns at most n trailing turns.
func LastTurns(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

// FormatHistory renders turns as "author: content" lines.
func FormatHistory(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		who := t.Author
		if who == "" {
			who = t.Role
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", who, strings.TrimSpace(t.Content))
	}
	return b.String()
}

// LastUserMessage returns the content of the most recent user turn.
func LastUserMessage(turns []Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			return turns[i].Content
		}
	}
	return ""
}
