// Package intent classifies user messages into conversation intents and
// picks the persona that should speak next.
package intent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/resume-butler/internal/ai"
	"github.com/spigell/resume-butler/internal/prompts"
	"github.com/spigell/resume-butler/internal/utils"

	"go.uber.org/zap"
)

// Intent is a top-level conversation intent.
type Intent string

const (
	Create  Intent = "create"
	Rewrite Intent = "rewrite"
	Chat    Intent = "chat"
	Export  Intent = "export"
)

// Persona labels returned by ClassifyAgent.
const (
	AgentAnalyst = "analyst"
	AgentWriter  = "writer"
	Terminate    = "terminate"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultHistoryWindow = 4
	minConfidence        = 0.5
	maxLogLength         = 120
)

var (
	topLevel = map[Intent]bool{Create: true, Rewrite: true, Chat: true, Export: true}
	agents   = map[string]bool{AgentAnalyst: true, AgentWriter: true, Terminate: true}

	writerKeywords  = []string{"revise", "rewrite", "reword", "improve"}
	analystKeywords = []string{"review", "analyze", "analyse", "match", "assess"}
)

// Context is what the classifier knows besides the message itself.
type Context struct {
	HasResume bool
	History   []ai.Turn
}

// PersonaInfo describes a persona to the routing prompt.
type PersonaInfo struct {
	Name        string
	Description string
}

// Config tunes a Classifier. Zero values select defaults.
type Config struct {
	Timeout       time.Duration
	HistoryWindow int
	Personas      []PersonaInfo
}

// Classifier asks the completion service for intents. It never returns an
// error: any failure yields a deterministic fallback.
type Classifier struct {
	completer ai.Completer
	prompts   prompts.Renderer
	cfg       Config
	logger    *zap.Logger
}

func NewClassifier(completer ai.Completer, renderer prompts.Renderer, cfg Config, logger *zap.Logger) *Classifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = defaultHistoryWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Classifier{
		completer: completer,
		prompts:   renderer,
		cfg:       cfg,
		logger:    logger,
	}
}

// Fallback is the intent used when classification fails.
func Fallback(hasResume bool) Intent {
	if hasResume {
		return Chat
	}
	return Create
}

// Classify returns one of create, rewrite, chat or export.
func (c *Classifier) Classify(ctx context.Context, message string, cc Context) Intent {
	fallback := Fallback(cc.HasResume)

	args := map[string]any{
		"message":    message,
		"has_resume": cc.HasResume,
		"history":    ai.FormatHistory(ai.LastTurns(cc.History, c.cfg.HistoryWindow)),
	}

	raw, err := c.ask(ctx, prompts.IntentTopLevel, args)
	if err != nil {
		c.logger.Warn("intent classification failed, using fallback",
			zap.String("fallback", string(fallback)),
			zap.Error(err),
		)
		return fallback
	}

	label, confidence, ok := parseLabel(raw)
	if !ok || !topLevel[Intent(label)] {
		c.logger.Warn("intent classifier returned unknown label, using fallback",
			zap.String("label", utils.TruncateForLog(raw, maxLogLength)),
			zap.String("fallback", string(fallback)),
		)
		return fallback
	}

	if confidence < minConfidence {
		c.logger.Warn("intent confidence too low, using fallback",
			zap.String("label", label),
			zap.Float64("confidence", confidence),
			zap.String("fallback", string(fallback)),
		)
		return fallback
	}

	c.logger.Debug("intent classified", zap.String("intent", label), zap.Float64("confidence", confidence))
	return Intent(label)
}

// ClassifyAgent picks the next persona label for history. ok is false only
// when the service answered with a label outside the known set; the label is
// then returned as given so the caller can report it. Service failures and
// empty answers use the keyword fallback.
func (c *Classifier) ClassifyAgent(ctx context.Context, history []ai.Turn) (string, bool) {
	window := ai.LastTurns(history, c.cfg.HistoryWindow)

	personas := make([]map[string]string, 0, len(c.cfg.Personas))
	for _, p := range c.cfg.Personas {
		personas = append(personas, map[string]string{"name": p.Name, "description": p.Description})
	}

	raw, err := c.ask(ctx, prompts.IntentRoute, map[string]any{
		"history":  ai.FormatHistory(window),
		"personas": personas,
	})
	if err != nil {
		label := KeywordFallback(ai.LastUserMessage(history))
		c.logger.Warn("agent classification failed, using keyword fallback",
			zap.String("fallback", label),
			zap.Error(err),
		)
		return label, true
	}

	label, _, ok := parseLabel(raw)
	if !ok {
		label := KeywordFallback(ai.LastUserMessage(history))
		c.logger.Warn("agent classifier returned unparseable answer, using keyword fallback",
			zap.String("answer", utils.TruncateForLog(raw, maxLogLength)),
			zap.String("fallback", label),
		)
		return label, true
	}

	if !agents[label] {
		return label, false
	}

	return label, true
}

// KeywordFallback maps a message to a persona label without the service.
func KeywordFallback(message string) string {
	lower := strings.ToLower(message)
	for _, kw := range writerKeywords {
		if strings.Contains(lower, kw) {
			return AgentWriter
		}
	}
	for _, kw := range analystKeywords {
		if strings.Contains(lower, kw) {
			return AgentAnalyst
		}
	}
	return AgentAnalyst
}

func (c *Classifier) ask(ctx context.Context, templateID string, args map[string]any) (string, error) {
	if c.completer == nil {
		return "", ai.ErrServiceUnavailable
	}

	prompt, ok := c.prompts.Render(templateID, args)
	if !ok {
		return "", fmt.Errorf("render %s prompt", templateID)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	return c.completer.Complete(ctx, prompt)
}

// parseLabel normalises "label" or "label confidence" answers. A missing
// confidence counts as certain.
func parseLabel(raw string) (string, float64, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.Trim(normalized, "\"'`.")

	fields := strings.Fields(normalized)
	switch len(fields) {
	case 1:
		return strings.Trim(fields[0], "\"'`.,:"), 1, true
	case 2:
		confidence, err := strconv.ParseFloat(strings.Trim(fields[1], "()"), 64)
		if err != nil {
			return "", 0, false
		}
		return strings.Trim(fields[0], "\"'`.,:"), confidence, true
	default:
		return "", 0, false
	}
}
