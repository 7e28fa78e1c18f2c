// Package match scores a resume against a job description.
package match

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/spigell/resume-butler/internal/ai"
	"github.com/spigell/resume-butler/internal/prompts"
	"github.com/spigell/resume-butler/internal/utils"

	"go.uber.org/zap"
)

const defaultMaxLogLength = 200

// Assessment is the parsed fit report.
type Assessment struct {
	Fit       bool
	Score     float64
	Reason    string
	Strengths []string
	Gaps      []string
	Summary   string
	Raw       string
}

type Matcher struct {
	generator ai.Completer
	prompts   prompts.Renderer
	minScore  float64
	logger    *zap.Logger
	maxLogLen int
}

func NewMatcher(generator ai.Completer, renderer prompts.Renderer, minScore float64, maxLogLength int, logger *zap.Logger) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Matcher{
		generator: generator,
		prompts:   renderer,
		minScore:  minScore,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Evaluate asks the completion service how well resume fits jd.
func (m *Matcher) Evaluate(ctx context.Context, resume, jd string) (*Assessment, error) {
	resume = strings.TrimSpace(resume)
	jd = strings.TrimSpace(jd)
	if resume == "" {
		return nil, errors.New("resume is required")
	}
	if jd == "" {
		return nil, errors.New("job description is required")
	}

	prompt, ok := m.prompts.Render(prompts.Match, map[string]any{
		"resume": resume,
		"jd":     jd,
	})
	if !ok {
		return nil, errors.New("match prompt is not available")
	}

	m.logger.Debug("match request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, m.maxLogLen)),
	)

	raw, err := m.generator.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate match report: %w", err)
	}

	m.logger.Debug("match response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
	)

	assessment, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	if m.minScore > 0 && assessment.Score < m.minScore {
		m.logger.Debug("set fit to false by score threshold",
			zap.Float64("score", assessment.Score),
			zap.Float64("threshold", m.minScore),
		)
		assessment.Fit = false
	}

	assessment.Raw = raw
	return assessment, nil
}

func parseResponse(raw string) (*Assessment, error) {
	data, err := utils.DecodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("parse match response: %w", err)
	}

	score := utils.CoerceFloat(data["score"])
	if math.IsNaN(score) {
		score = 0
	}
	// Some models answer on a 0-100 scale.
	if score > 1 && score <= 100 {
		score /= 100
	}

	return &Assessment{
		Fit:       utils.CoerceBool(data["fit"]),
		Score:     score,
		Reason:    utils.CoerceString(data["reason"]),
		Strengths: utils.CoerceStrings(data["strengths"]),
		Gaps:      utils.CoerceStrings(data["gaps"]),
		Summary:   utils.CoerceString(data["summary"]),
	}, nil
}

// Report renders the assessment as markdown.
func (a *Assessment) Report() string {
	var b strings.Builder

	verdict := "Not a strong fit"
	if a.Fit {
		verdict = "Good fit"
	}
	fmt.Fprintf(&b, "## Match report\n\n**%s** (score %.0f%%)", verdict, a.Score*100)
	if a.Reason != "" {
		fmt.Fprintf(&b, "\n\n%s", a.Reason)
	}

	writeList(&b, "Strengths", a.Strengths)
	writeList(&b, "Gaps", a.Gaps)

	if a.Summary != "" {
		fmt.Fprintf(&b, "\n\n### Advice\n\n%s", a.Summary)
	}

	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n### %s\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "\n- %s", item)
	}
}
