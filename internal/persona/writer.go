package persona

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/resume-butler/internal/ai"
	"github.com/spigell/resume-butler/internal/export"
	"github.com/spigell/resume-butler/internal/profile"
	"github.com/spigell/resume-butler/internal/prompts"
	"github.com/spigell/resume-butler/internal/utils"

	"go.uber.org/zap"
)

const (
	actionReply  = "reply"
	actionRevise = "revise"
	actionExport = "export"
)

// Writer edits resumes and produces export files.
type Writer struct {
	completer ai.Completer
	prompts   prompts.Renderer
	exporter  export.Exporter
	cfg       Config
	logger    *zap.Logger
}

func NewWriter(completer ai.Completer, renderer prompts.Renderer, exporter export.Exporter, cfg Config, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{completer: completer, prompts: renderer, exporter: exporter, cfg: cfg, logger: logger}
}

func (w *Writer) Name() string {
	return "writer"
}

func (w *Writer) Description() string {
	return "resume writer who rewrites sections, tailors wording to a job and exports files"
}

type writerAnswer struct {
	action  string
	text    string
	content string
	format  string
}

func (w *Writer) Respond(ctx context.Context, req Request) (Output, error) {
	raw, err := complete(ctx, w.completer, w.prompts, prompts.Writer, renderArgs(req), w.cfg.timeout())
	if err != nil {
		return Output{}, fmt.Errorf("writer reply: %w", err)
	}

	answer := parseWriterAnswer(raw)
	w.logger.Debug("writer answered", zap.String("action", answer.action))

	switch answer.action {
	case actionRevise:
		if answer.content == "" {
			return Output{Text: answer.text, AwaitUser: true}, nil
		}
		text := answer.text
		if text == "" {
			text = "Here is the revised resume:"
		}
		return Output{
			Text:      text + "\n\n" + answer.content,
			AwaitUser: true,
			Updates:   map[profile.Field]string{profile.FieldGeneratedResume: answer.content},
		}, nil
	case actionExport:
		return w.export(req, answer)
	default:
		return Output{Text: answer.text, AwaitUser: true}, nil
	}
}

func (w *Writer) export(req Request, answer writerAnswer) (Output, error) {
	format, err := export.ParseFormat(answer.format)
	if err != nil {
		format = export.FormatDOCX
	}

	content := answer.content
	if content == "" {
		content = profileString(req.Profile, profile.FieldGeneratedResume)
	}
	if content == "" {
		content = profileString(req.Profile, profile.FieldResume)
	}

	data, err := w.exporter.Export(content, format)
	if errors.Is(err, export.ErrEmptyContent) {
		return Output{
			Text:      "I don't have a resume to export yet. Would you like me to create one first?",
			AwaitUser: true,
		}, nil
	}
	if err != nil {
		return Output{}, fmt.Errorf("export %s: %w", format, err)
	}

	return Output{
		Text:      answer.text,
		Content:   data,
		Ext:       format.Ext(),
		AwaitUser: true,
	}, nil
}

// parseWriterAnswer reads the JSON answer. Anything that is not JSON is
// treated as a plain reply.
func parseWriterAnswer(raw string) writerAnswer {
	data, err := utils.DecodeObject(raw)
	if err != nil {
		return writerAnswer{action: actionReply, text: strings.TrimSpace(raw)}
	}

	answer := writerAnswer{
		action:  strings.ToLower(utils.CoerceString(data["action"])),
		text:    utils.CoerceString(data["text"]),
		content: utils.CoerceString(data["content"]),
		format:  utils.CoerceString(data["format"]),
	}
	if answer.action == "" {
		answer.action = actionReply
	}
	if answer.action == actionReply && answer.text == "" {
		answer.text = answer.content
	}
	return answer
}
