package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/resume-butler/internal/ai"
	"github.com/spigell/resume-butler/internal/compose"
	"github.com/spigell/resume-butler/internal/document"
	"github.com/spigell/resume-butler/internal/export"
	"github.com/spigell/resume-butler/internal/extract"
	"github.com/spigell/resume-butler/internal/match"
	"github.com/spigell/resume-butler/internal/profile"
	"github.com/spigell/resume-butler/internal/router"

	"go.uber.org/zap"
)

var (
	ErrMissingResume         = errors.New("no resume in the profile")
	ErrMissingJobDescription = errors.New("no job description in the profile")
)

// Router handles one message against a profile.
type Router interface {
	Handle(ctx context.Context, store *profile.Store, history []ai.Turn, message string) router.Reply
}

// Matcher scores a resume against a job description.
type Matcher interface {
	Evaluate(ctx context.Context, resume, jd string) (*match.Assessment, error)
}

// Status summarises how far a profile is.
type Status struct {
	Percent           float64  `json:"percent"`
	Missing           []string `json:"missing"`
	Mode              string   `json:"mode"`
	Ready             bool     `json:"ready"`
	HasResume         bool     `json:"has_resume"`
	HasJobDescription bool     `json:"has_job_description"`
	HasGenerated      bool     `json:"has_generated_resume"`
}

// Assistant is the entry point hosts use for a session.
type Assistant struct {
	router   Router
	composer *compose.Composer
	parser   document.Parser
	matcher  Matcher
	exporter export.Exporter
	logger   *zap.Logger
}

func NewAssistant(r Router, composer *compose.Composer, parser document.Parser, matcher Matcher, exporter export.Exporter, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	if composer == nil {
		composer = compose.New(logger)
	}
	return &Assistant{
		router:   r,
		composer: composer,
		parser:   parser,
		matcher:  matcher,
		exporter: exporter,
		logger:   logger,
	}
}

// ProcessMessage runs one user message through the conversation.
func (a *Assistant) ProcessMessage(ctx context.Context, sess *Session, text string) (compose.Response, error) {
	if err := ctx.Err(); err != nil {
		return compose.Response{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	reply := a.router.Handle(ctx, sess.Store, sess.History(), text)
	resp := a.composer.Compose(reply.Decision, reply.Output)

	content := resp.Text
	if resp.Artifact != nil {
		content = strings.TrimSpace(content + "\n[file " + resp.Artifact.Filename + "]")
	}
	sess.record(ctx,
		ai.Turn{Role: ai.RoleUser, Content: text},
		ai.Turn{Role: ai.RoleAssistant, Author: reply.Decision.Target, Content: content},
	)

	sess.logger.Info("message processed",
		zap.String("kind", string(reply.Kind)),
		zap.String("mode", string(sess.Store.Mode())),
		zap.Int("changed_fields", len(reply.Changed)),
		zap.Bool("artifact", resp.Artifact != nil),
	)

	return resp, nil
}

// CompletionStatus reports profile progress.
func (a *Assistant) CompletionStatus(sess *Session) Status {
	snapshot := sess.Store.Snapshot()

	missing := make([]string, 0)
	for _, f := range sess.Store.MissingEssential() {
		missing = append(missing, f.Label())
	}

	return Status{
		Percent:           sess.Store.CompletionRatio() * 100,
		Missing:           missing,
		Mode:              string(sess.Store.Mode()),
		Ready:             len(missing) == 0,
		HasResume:         snapshot.Resume != "",
		HasJobDescription: snapshot.JobDescription != "",
		HasGenerated:      snapshot.GeneratedResume != "",
	}
}

// Upload parses a resume file into the profile. Contact details found in the
// resume fill fields that are still empty.
func (a *Assistant) Upload(ctx context.Context, sess *Session, filename string, data []byte) (Status, error) {
	text, err := a.parser.Parse(ctx, filename, data)
	if err != nil {
		return Status{}, fmt.Errorf("parse %s: %w", filename, err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.Store.Set(profile.FieldResume, text); err != nil {
		return Status{}, fmt.Errorf("store resume: %w", err)
	}

	for f, v := range extract.Extract(text) {
		if current, _ := sess.Store.Get(f); current != "" {
			continue
		}
		if err := sess.Store.Set(f, v); err != nil {
			sess.logger.Warn("failed to store field from resume", zap.String("field", string(f)), zap.Error(err))
		}
	}

	sess.logger.Info("resume uploaded", zap.String("filename", filename), zap.Int("length", len(text)))
	return a.CompletionStatus(sess), nil
}

// SetJobDescription stores the job the user is applying for.
func (a *Assistant) SetJobDescription(sess *Session, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrMissingJobDescription
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.Store.Set(profile.FieldJobDescription, text); err != nil {
		return fmt.Errorf("store job description: %w", err)
	}
	sess.logger.Info("job description set", zap.Int("length", len(text)))
	return nil
}

// Match builds a match report for the profile's resume and job description
// and stores it in the profile. A generated resume is preferred over an
// uploaded one.
func (a *Assistant) Match(ctx context.Context, sess *Session) (compose.Response, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	snapshot := sess.Store.Snapshot()
	resume := snapshot.GeneratedResume
	if resume == "" {
		resume = snapshot.Resume
	}
	if resume == "" {
		return compose.Response{}, ErrMissingResume
	}
	if snapshot.JobDescription == "" {
		return compose.Response{}, ErrMissingJobDescription
	}

	assessment, err := a.matcher.Evaluate(ctx, resume, snapshot.JobDescription)
	if err != nil {
		return compose.Response{}, fmt.Errorf("match resume: %w", err)
	}

	report := assessment.Report()
	if err := sess.Store.Set(profile.FieldMatchReport, report); err != nil {
		return compose.Response{}, fmt.Errorf("store match report: %w", err)
	}

	sess.logger.Info("match report built", zap.Bool("fit", assessment.Fit), zap.Float64("score", assessment.Score))
	return compose.Response{Text: report}, nil
}

// Export renders the generated resume, or the match report when no resume
// was generated, in the requested format.
func (a *Assistant) Export(_ context.Context, sess *Session, format string) (*compose.Artifact, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	snapshot := sess.Store.Snapshot()
	content := snapshot.GeneratedResume
	if content == "" {
		content = snapshot.MatchReport
	}

	data, err := a.exporter.Export(content, f)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", f, err)
	}

	artifact := a.composer.Artifact(data, f.Ext())
	sess.logger.Info("resume exported", zap.String("filename", artifact.Filename), zap.Int("bytes", len(data)))
	return artifact, nil
}
