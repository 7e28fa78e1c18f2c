package persona

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/resume-butler/internal/ai"
	"github.com/spigell/resume-butler/internal/match"
	"github.com/spigell/resume-butler/internal/profile"
	"github.com/spigell/resume-butler/internal/prompts"

	"go.uber.org/zap"
)

var matchKeywords = []string{"match", "fit", "score", "suitable", "compare"}

// Matcher produces a fit assessment.
type Matcher interface {
	Evaluate(ctx context.Context, resume, jd string) (*match.Assessment, error)
}

// Analyst reviews resumes and, when both a resume and a job description are
// known, builds the match report.
type Analyst struct {
	completer ai.Completer
	prompts   prompts.Renderer
	matcher   Matcher
	cfg       Config
	logger    *zap.Logger
}

func NewAnalyst(completer ai.Completer, renderer prompts.Renderer, matcher Matcher, cfg Config, logger *zap.Logger) *Analyst {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyst{completer: completer, prompts: renderer, matcher: matcher, cfg: cfg, logger: logger}
}

func (a *Analyst) Name() string {
	return "analyst"
}

func (a *Analyst) Description() string {
	return "recruiter who reviews the resume, scores it against the job description and explains gaps"
}

func (a *Analyst) Respond(ctx context.Context, req Request) (Output, error) {
	resume := profileString(req.Profile, profile.FieldGeneratedResume)
	if resume == "" {
		resume = profileString(req.Profile, profile.FieldResume)
	}
	jd := profileString(req.Profile, profile.FieldJobDescription)

	if a.matcher != nil && resume != "" && jd != "" &&
		profileString(req.Profile, profile.FieldMatchReport) == "" && wantsMatch(req.Message) {
		assessment, err := a.matcher.Evaluate(ctx, resume, jd)
		if err != nil {
			return Output{}, fmt.Errorf("build match report: %w", err)
		}

		report := assessment.Report()
		a.logger.Info("match report built", zap.Float64("score", assessment.Score), zap.Bool("fit", assessment.Fit))

		return Output{
			Text:    report,
			Updates: map[profile.Field]string{profile.FieldMatchReport: report},
		}, nil
	}

	text, err := complete(ctx, a.completer, a.prompts, prompts.Analyst, renderArgs(req), a.cfg.timeout())
	if err != nil {
		return Output{}, fmt.Errorf("analyst reply: %w", err)
	}

	return Output{Text: text, AwaitUser: true}, nil
}

func wantsMatch(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range matchKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
