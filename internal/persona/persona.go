// Package persona implements the assistants that answer chat messages: an
// analyst that reviews resumes against jobs and a writer that edits and
// exports them.
package persona

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/resume-butler/internal/ai"
	"github.com/spigell/resume-butler/internal/profile"
	"github.com/spigell/resume-butler/internal/prompts"
)

const defaultTimeout = 90 * time.Second

// Request is what a persona sees for one turn.
type Request struct {
	Message string
	Profile map[string]any
	History []ai.Turn
}

// Output is a persona's answer. Content and Ext describe a file artifact
// when set. Updates are profile fields the caller should store.
type Output struct {
	Text      string
	Content   []byte
	Ext       string
	AwaitUser bool
	Updates   map[profile.Field]string
}

// IsArtifact reports whether the output carries a file.
func (o Output) IsArtifact() bool {
	return len(o.Content) > 0 && o.Ext != ""
}

// Config is shared by the personas.
type Config struct {
	Timeout time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

func profileString(p map[string]any, f profile.Field) string {
	if p == nil {
		return ""
	}
	s, _ := p[string(f)].(string)
	return strings.TrimSpace(s)
}

func renderArgs(req Request) map[string]any {
	args := make(map[string]any, len(req.Profile)+2)
	for k, v := range req.Profile {
		args[k] = v
	}
	args["history"] = ai.FormatHistory(req.History)
	args["message"] = req.Message
	return args
}

func complete(ctx context.Context, completer ai.Completer, renderer prompts.Renderer, templateID string, args map[string]any, timeout time.Duration) (string, error) {
	prompt, ok := renderer.Render(templateID, args)
	if !ok {
		return "", fmt.Errorf("%s prompt is not available", templateID)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := completer.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty answer", ai.ErrServiceUnavailable)
	}
	return out, nil
}
