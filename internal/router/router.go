// Package router is the per-message conversation state machine. It enriches
// the profile, decides what happens next based on the profile mode and hands
// general questions to the persona orchestrator.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/resume-butler/internal/ai"
	"github.com/spigell/resume-butler/internal/compose"
	"github.com/spigell/resume-butler/internal/dispatch"
	"github.com/spigell/resume-butler/internal/export"
	"github.com/spigell/resume-butler/internal/extract"
	"github.com/spigell/resume-butler/internal/intent"
	"github.com/spigell/resume-butler/internal/profile"
	"github.com/spigell/resume-butler/internal/prompts"
	"github.com/spigell/resume-butler/internal/utils"

	"go.uber.org/zap"
)

const (
	defaultGenerateTimeout = 90 * time.Second
	defaultQuestionTimeout = 15 * time.Second
	maxLogLength           = 120
)

// ErrGeneration is returned internally when a resume could not be generated.
var ErrGeneration = errors.New("resume generation failed")

var generateTriggers = []string{"yes", "generate", "create", "ready", "go ahead"}

var formatTokens = map[string]struct{}{
	"txt": {}, "md": {}, "markdown": {}, "docx": {}, "html": {},
}

// Kind says what a reply is.
type Kind string

const (
	KindQuestion  Kind = "question"
	KindConfirm   Kind = "confirm"
	KindGenerated Kind = "generated"
	KindExport    Kind = "export"
	KindRevise    Kind = "revise"
	KindChat      Kind = "chat"
	KindFailure   Kind = "failure"
)

// Classifier picks a top-level intent.
type Classifier interface {
	Classify(ctx context.Context, message string, cc intent.Context) intent.Intent
}

// Chatter answers free-form questions about the profile.
type Chatter interface {
	Chat(ctx context.Context, task dispatch.Task) (dispatch.Result, error)
}

// Config tunes a Router. Zero values select defaults.
type Config struct {
	GenerateTimeout time.Duration
	QuestionTimeout time.Duration
}

// Turn is one incoming message as the router saw it.
type Turn struct {
	Text   string
	Intent intent.Intent
	Round  int
}

// Reply is the outcome of one message.
type Reply struct {
	Kind     Kind
	Turn     Turn
	Decision dispatch.Decision
	Output   compose.Output
	// Changed lists profile fields written while handling the message.
	Changed []profile.Field
}

// Router drives the conversation for one profile at a time. It holds no
// per-session state and is safe for concurrent use with distinct stores.
type Router struct {
	classifier Classifier
	chatter    Chatter
	completer  ai.Completer
	prompts    prompts.Renderer
	exporter   export.Exporter
	cfg        Config
	logger     *zap.Logger
}

func New(classifier Classifier, chatter Chatter, completer ai.Completer, renderer prompts.Renderer, exporter export.Exporter, cfg Config, logger *zap.Logger) *Router {
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = defaultGenerateTimeout
	}
	if cfg.QuestionTimeout <= 0 {
		cfg.QuestionTimeout = defaultQuestionTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Router{
		classifier: classifier,
		chatter:    chatter,
		completer:  completer,
		prompts:    renderer,
		exporter:   exporter,
		cfg:        cfg,
		logger:     logger,
	}
}

// Handle processes message against store. history holds the turns before
// this message. Handle never fails: problems become failure replies.
func (r *Router) Handle(ctx context.Context, store *profile.Store, history []ai.Turn, message string) Reply {
	changed, err := extract.Enrich(store, message)
	if err != nil {
		r.logger.Error("profile enrichment failed", zap.Error(err))
	}
	if len(changed) > 0 {
		r.logger.Debug("profile enriched", zap.Strings("fields", fieldNames(changed)))
	}

	var reply Reply
	switch store.Mode() {
	case profile.ModeCreate, profile.ModeRewrite:
		reply = r.collect(ctx, store, message, false)
	case profile.ModePreview:
		reply = r.preview(ctx, store, history, message)
	default:
		reply = r.route(ctx, store, history, message)
	}

	reply.Turn.Text = message
	reply.Changed = append(changed, reply.Changed...)

	r.logger.Debug("message routed",
		zap.String("kind", string(reply.Kind)),
		zap.String("mode", string(store.Mode())),
		zap.String("intent", string(reply.Turn.Intent)),
	)

	return reply
}

// collect asks for the next missing field, offers generation or generates.
// A flow that is just being entered never generates.
func (r *Router) collect(ctx context.Context, store *profile.Store, message string, entering bool) Reply {
	if !store.IsReady() {
		question := r.nextQuestion(ctx, store, message)
		store.SetLastQuestion(question)
		return Reply{Kind: KindQuestion, Output: compose.Output{Text: question}}
	}

	if !entering && containsAny(message, generateTriggers) {
		return r.generate(ctx, store)
	}

	// The user was asked which section to revise; this message names it.
	if store.Revising() && store.LastQuestion() == reviseInvite {
		if reply, ok := r.reviseSection(store, message); ok {
			return reply
		}
	}

	// The confirmation prompt is not a field question; its answer must not
	// be stored anywhere.
	store.SetLastQuestion("")
	return Reply{
		Kind:   KindConfirm,
		Output: compose.Output{Text: readyText(compose.Percent(store.CompletionRatio()))},
	}
}

func (r *Router) nextQuestion(ctx context.Context, store *profile.Store, message string) string {
	missing := store.MissingEssential()
	target := missing[0]
	fallback := FallbackQuestion(target)

	if r.completer == nil {
		return fallback
	}

	snapshot := store.Snapshot()
	collected := make([]map[string]string, 0, len(profile.TrackedFields))
	for _, f := range profile.TrackedFields {
		if v, _ := store.Get(f); v != "" {
			collected = append(collected, map[string]string{"label": f.Label(), "value": v})
		}
	}
	labels := make([]string, 0, len(missing))
	for _, f := range missing {
		labels = append(labels, f.Label())
	}

	prompt, ok := r.prompts.Render(prompts.FieldCollection, map[string]any{
		"mode":          string(snapshot.Mode),
		"target_role":   snapshot.TargetRole,
		"collected":     collected,
		"missing":       labels,
		"last_question": snapshot.LastQuestion,
		"message":       message,
	})
	if !ok {
		r.logger.Warn("field collection prompt unavailable, using fallback question", zap.String("field", string(target)))
		return fallback
	}

	qctx, cancel := context.WithTimeout(ctx, r.cfg.QuestionTimeout)
	defer cancel()

	question, err := r.completer.Complete(qctx, prompt)
	if err != nil {
		r.logger.Warn("question generation failed, using fallback question",
			zap.String("field", string(target)),
			zap.Error(err),
		)
		return fallback
	}

	question = strings.TrimSpace(question)
	// The answer is routed by the keywords of the question, so a generated
	// question that points at another field would misfile it.
	if f, ok := extract.QuestionField(question); !ok || f != target {
		r.logger.Warn("generated question does not ask for the missing field, using fallback question",
			zap.String("field", string(target)),
			zap.String("question", utils.TruncateForLog(question, maxLogLength)),
		)
		return fallback
	}

	return question
}

func (r *Router) generate(ctx context.Context, store *profile.Store) Reply {
	resume, err := r.generateResume(ctx, store)
	if err != nil {
		r.logger.Error("resume generation failed", zap.Error(err))
		return Reply{Kind: KindFailure, Output: compose.Output{Failed: true, Text: generationFailed}}
	}

	if err := store.Set(profile.FieldGeneratedResume, resume); err != nil {
		r.logger.Error("failed to store generated resume", zap.Error(err))
		return Reply{Kind: KindFailure, Output: compose.Output{Failed: true, Text: generationFailed}}
	}
	store.EndRevision()
	store.SetMode(profile.ModePreview)
	store.SetLastQuestion("")

	return Reply{
		Kind:    KindGenerated,
		Changed: []profile.Field{profile.FieldGeneratedResume},
		Output: compose.Output{
			Banner: compose.BannerGenerated,
			Text:   resume,
			Footer: generatedFooter,
		},
	}
}

func (r *Router) generateResume(ctx context.Context, store *profile.Store) (string, error) {
	if r.completer == nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, ai.ErrServiceUnavailable)
	}

	args, err := store.Args()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	prompt, ok := r.prompts.Render(prompts.ResumeGeneration, args)
	if !ok {
		return "", fmt.Errorf("%w: prompt %s is not available", ErrGeneration, prompts.ResumeGeneration)
	}

	gctx, cancel := context.WithTimeout(ctx, r.cfg.GenerateTimeout)
	defer cancel()

	resume, err := r.completer.Complete(gctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	resume = strings.TrimSpace(resume)
	if resume == "" {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}
	return resume, nil
}

func (r *Router) preview(ctx context.Context, store *profile.Store, history []ai.Turn, message string) Reply {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "export"):
		return r.exportReply(store, message)
	case strings.Contains(lower, "revise") || strings.Contains(lower, "change"):
		store.SetMode(profile.ModeCreate)
		store.BeginRevision()
		if reply, ok := r.reviseSection(store, message); ok {
			return reply
		}
		store.SetLastQuestion(reviseInvite)
		return Reply{Kind: KindRevise, Output: compose.Output{Text: reviseInvite}}
	default:
		return r.chat(ctx, store, history, message)
	}
}

// reviseSection asks for the section named in message. The question is kept
// as the last question so the next message replaces that section.
func (r *Router) reviseSection(store *profile.Store, message string) (Reply, bool) {
	f, ok := extract.QuestionField(message)
	if !ok {
		return Reply{}, false
	}

	question := FallbackQuestion(f)
	store.SetLastQuestion(question)
	return Reply{Kind: KindRevise, Output: compose.Output{Text: reviseSectionText(f, question)}}, true
}

// route classifies messages while no flow is active.
func (r *Router) route(ctx context.Context, store *profile.Store, history []ai.Turn, message string) Reply {
	snapshot := store.Snapshot()
	hasResume := snapshot.Resume != ""

	in := r.classifier.Classify(ctx, message, intent.Context{HasResume: hasResume, History: history})

	var reply Reply
	switch in {
	case intent.Create:
		store.SetMode(profile.ModeCreate)
		reply = r.enter(ctx, store, message, compose.BannerCreate, createLead)
	case intent.Rewrite:
		if hasResume {
			store.SetMode(profile.ModeRewrite)
			reply = r.enter(ctx, store, message, compose.BannerRewrite, rewriteLead)
		} else {
			store.SetMode(profile.ModeCreate)
			reply = r.enter(ctx, store, message, compose.BannerCreate, noResumeToRewrite)
		}
	case intent.Export:
		reply = r.exportReply(store, message)
	default:
		store.SetMode(profile.ModeChat)
		reply = r.chat(ctx, store, history, message)
	}

	reply.Turn.Intent = in
	return reply
}

func (r *Router) enter(ctx context.Context, store *profile.Store, message string, banner compose.Banner, lead string) Reply {
	reply := r.collect(ctx, store, message, true)
	progress := store.CompletionRatio()

	reply.Output.Banner = banner
	reply.Output.Lead = lead
	if reply.Kind == KindQuestion {
		reply.Output.Progress = &progress
	}
	return reply
}

// exportReply lists the formats, or exports directly when message names one.
func (r *Router) exportReply(store *profile.Store, message string) Reply {
	snapshot := store.Snapshot()
	content := snapshot.GeneratedResume
	if content == "" {
		content = snapshot.MatchReport
	}
	if content == "" {
		return Reply{Kind: KindExport, Output: compose.Output{Text: nothingToExport}}
	}

	format, ok := requestedFormat(message)
	if !ok || r.exporter == nil {
		return Reply{Kind: KindExport, Output: compose.Output{Banner: compose.BannerExport, Text: exportOptionsText()}}
	}

	data, err := r.exporter.Export(content, format)
	if err != nil {
		r.logger.Error("export failed", zap.String("format", string(format)), zap.Error(err))
		return Reply{Kind: KindFailure, Output: compose.Output{Failed: true, Text: fmt.Sprintf("Failed to export your resume as %s. Please try again.", format)}}
	}

	return Reply{
		Kind: KindExport,
		Output: compose.Output{
			Text:    fmt.Sprintf("Here is your resume as %s.", format),
			Content: data,
			Ext:     format.Ext(),
		},
	}
}

func (r *Router) chat(ctx context.Context, store *profile.Store, history []ai.Turn, message string) Reply {
	if r.chatter == nil {
		return Reply{Kind: KindFailure, Output: compose.Output{Failed: true}}
	}

	args, err := store.Args()
	if err != nil {
		r.logger.Error("failed to prepare profile for chat", zap.Error(err))
		return Reply{Kind: KindFailure, Output: compose.Output{Failed: true}}
	}

	res, err := r.chatter.Chat(ctx, dispatch.Task{Message: message, Profile: args, History: history})
	if err != nil {
		reply := Reply{Kind: KindFailure, Decision: res.Decision, Turn: Turn{Round: res.Rounds}}
		if errors.Is(err, dispatch.ErrNoValidTarget) {
			reply.Output = compose.Output{Failed: true, Text: routingFailureText(res.Decision.Reason)}
			return reply
		}
		r.logger.Error("chat failed", zap.Error(err))
		reply.Output = compose.Output{Failed: true}
		return reply
	}

	var changed []profile.Field
	for f, v := range res.Output.Updates {
		if err := store.Set(f, v); err != nil {
			r.logger.Error("failed to store persona update", zap.String("field", string(f)), zap.Error(err))
			continue
		}
		changed = append(changed, f)
	}

	return Reply{
		Kind:     KindChat,
		Turn:     Turn{Round: res.Rounds},
		Decision: res.Decision,
		Changed:  changed,
		Output: compose.Output{
			Text:    res.Output.Text,
			Content: res.Output.Content,
			Ext:     res.Output.Ext,
		},
	}
}

// requestedFormat looks for a format token in message. Plain words like
// "text" or "word" do not count: "export the text" asks for the options.
func requestedFormat(message string) (export.Format, bool) {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r == '.')
	})
	for _, w := range words {
		w = strings.Trim(w, ".")
		if _, ok := formatTokens[w]; !ok {
			continue
		}
		if f, err := export.ParseFormat(w); err == nil {
			return f, true
		}
	}
	return "", false
}

func containsAny(message string, words []string) bool {
	lower := strings.ToLower(message)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func fieldNames(fields []profile.Field) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, string(f))
	}
	return names
}
