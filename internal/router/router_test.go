package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spigell/resume-butler/internal/ai"
	"github.com/spigell/resume-butler/internal/dispatch"
	"github.com/spigell/resume-butler/internal/export"
	"github.com/spigell/resume-butler/internal/extract"
	"github.com/spigell/resume-butler/internal/intent"
	"github.com/spigell/resume-butler/internal/persona"
	"github.com/spigell/resume-butler/internal/profile"
	"github.com/spigell/resume-butler/internal/prompts"

	"go.uber.org/zap"
)

type stubClassifier struct {
	intent intent.Intent
	calls  int
	seen   intent.Context
}

func (s *stubClassifier) Classify(_ context.Context, _ string, cc intent.Context) intent.Intent {
	s.calls++
	s.seen = cc
	return s.intent
}

type stubChatter struct {
	result dispatch.Result
	err    error
	tasks  []dispatch.Task
}

func (s *stubChatter) Chat(_ context.Context, task dispatch.Task) (dispatch.Result, error) {
	s.tasks = append(s.tasks, task)
	return s.result, s.err
}

// fakeCompleter answers question prompts with question and generation
// prompts with resume. Empty answers become errors.
type fakeCompleter struct {
	question string
	resume   string
	prompts  []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	var answer string
	switch {
	case strings.HasPrefix(prompt, "Write a professional resume"):
		answer = f.resume
	case strings.HasPrefix(prompt, "You are helping a user"):
		answer = f.question
	}
	if answer == "" {
		return "", ai.ErrServiceUnavailable
	}
	return answer, nil
}

type fixture struct {
	router     *Router
	store      *profile.Store
	classifier *stubClassifier
	chatter    *stubChatter
	completer  *fakeCompleter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	lib, err := prompts.Load("", zap.NewNop())
	if err != nil {
		t.Fatalf("load prompts: %v", err)
	}

	f := &fixture{
		store:      profile.NewStore(),
		classifier: &stubClassifier{intent: intent.Chat},
		chatter:    &stubChatter{},
		completer:  &fakeCompleter{},
	}
	f.router = New(f.classifier, f.chatter, f.completer, lib, export.NewRenderer(), Config{}, zap.NewNop())
	return f
}

func (f *fixture) fillEssentials(t *testing.T) {
	t.Helper()
	values := map[profile.Field]string{
		profile.FieldName:       "Jane Smith",
		profile.FieldEmail:      "jane@x.com",
		profile.FieldPhone:      "+1 555 123 4567",
		profile.FieldSummary:    "Backend engineer",
		profile.FieldExperience: "Acme, 2019-2024",
		profile.FieldEducation:  "BSc Computer Science",
		profile.FieldSkills:     "Go, SQL",
	}
	for field, v := range values {
		if err := f.store.Set(field, v); err != nil {
			t.Fatalf("set %s: %v", field, err)
		}
	}
}

func get(t *testing.T, s *profile.Store, f profile.Field) string {
	t.Helper()
	v, err := s.Get(f)
	if err != nil {
		t.Fatalf("get %s: %v", f, err)
	}
	return v
}

func TestCollectExtractsAndAsksNextQuestion(t *testing.T) {
	f := newFixture(t)
	f.store.SetMode(profile.ModeCreate)

	reply := f.router.Handle(context.Background(), f.store, nil, "My name is Jane Smith and my email is jane@x.com")

	if got := get(t, f.store, profile.FieldName); got != "Jane Smith" {
		t.Fatalf("expected name Jane Smith, got %q", got)
	}
	if got := get(t, f.store, profile.FieldEmail); got != "jane@x.com" {
		t.Fatalf("expected email jane@x.com, got %q", got)
	}
	if reply.Kind != KindQuestion {
		t.Fatalf("expected a question, got %s", reply.Kind)
	}
	if !strings.Contains(strings.ToLower(reply.Output.Text), "phone") {
		t.Fatalf("expected a phone question, got %q", reply.Output.Text)
	}
	if f.store.LastQuestion() != reply.Output.Text {
		t.Fatalf("expected last question to be stored, got %q", f.store.LastQuestion())
	}
	if len(reply.Changed) != 2 {
		t.Fatalf("expected two changed fields, got %v", reply.Changed)
	}
	if f.classifier.calls != 0 {
		t.Fatal("classifier must not run during collection")
	}
}

func TestCollectStoresAnswerToLastQuestion(t *testing.T) {
	f := newFixture(t)
	f.store.SetMode(profile.ModeCreate)
	f.store.SetLastQuestion(FallbackQuestion(profile.FieldSummary))

	f.router.Handle(context.Background(), f.store, nil, "Backend engineer with ten years in payments")

	if got := get(t, f.store, profile.FieldSummary); got != "Backend engineer with ten years in payments" {
		t.Fatalf("expected summary from context, got %q", got)
	}
}

func TestFallbackQuestionsAreDeterministic(t *testing.T) {
	for _, field := range profile.TrackedFields {
		t.Run(string(field), func(t *testing.T) {
			q := FallbackQuestion(field)
			if q != FallbackQuestion(field) {
				t.Fatal("fallback question changed between calls")
			}
			routed, ok := extract.QuestionField(q)
			if !ok || routed != field {
				t.Fatalf("question %q routes answers to %q", q, routed)
			}
		})
	}
}

func TestGeneratedQuestionValidation(t *testing.T) {
	tests := []struct {
		name      string
		generated string
		expect    string
	}{
		{
			name:      "asks for the missing field",
			generated: "Could you share your phone number, please?",
			expect:    "Could you share your phone number, please?",
		},
		{
			name:      "mentions an earlier field first",
			generated: "Thanks! Besides your name, what phone number should I use?",
			expect:    FallbackQuestion(profile.FieldPhone),
		},
		{
			name:      "service failure",
			generated: "",
			expect:    FallbackQuestion(profile.FieldPhone),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.completer.question = tt.generated
			f.store.SetMode(profile.ModeCreate)
			_ = f.store.Set(profile.FieldName, "Jane Smith")
			_ = f.store.Set(profile.FieldEmail, "jane@x.com")

			reply := f.router.Handle(context.Background(), f.store, nil, "")
			if reply.Output.Text != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, reply.Output.Text)
			}
		})
	}
}

func TestReadyAsksForConfirmation(t *testing.T) {
	f := newFixture(t)
	f.fillEssentials(t)
	f.store.SetMode(profile.ModeCreate)

	reply := f.router.Handle(context.Background(), f.store, nil, "ok")

	if reply.Kind != KindConfirm {
		t.Fatalf("expected confirm, got %s", reply.Kind)
	}
	if !strings.Contains(reply.Output.Text, "Your profile is 64% complete.") {
		t.Fatalf("unexpected text %q", reply.Output.Text)
	}
	if f.store.Mode() != profile.ModeCreate {
		t.Fatalf("mode must not change, got %s", f.store.Mode())
	}
	if f.store.LastQuestion() != "" {
		t.Fatalf("expected cleared last question, got %q", f.store.LastQuestion())
	}
}

func TestGenerate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		f.completer.resume = "# Jane Smith\n\n## Summary\nBackend engineer"
		f.fillEssentials(t)
		f.store.SetMode(profile.ModeCreate)
		f.store.BeginRevision()

		reply := f.router.Handle(context.Background(), f.store, nil, "yes, generate it")

		if reply.Kind != KindGenerated {
			t.Fatalf("expected generated, got %s", reply.Kind)
		}
		if f.store.Mode() != profile.ModePreview {
			t.Fatalf("expected preview, got %s", f.store.Mode())
		}
		if f.store.Revising() {
			t.Fatal("generation must end revision")
		}
		if got := get(t, f.store, profile.FieldGeneratedResume); got != f.completer.resume {
			t.Fatalf("unexpected generated resume %q", got)
		}
		if reply.Output.Text != f.completer.resume || reply.Output.Footer == "" {
			t.Fatalf("unexpected output %+v", reply.Output)
		}
		if !strings.Contains(f.completer.prompts[0], "Jane Smith") {
			t.Fatal("expected profile in generation prompt")
		}
	})

	t.Run("failure", func(t *testing.T) {
		f := newFixture(t)
		f.fillEssentials(t)
		f.store.SetMode(profile.ModeCreate)

		reply := f.router.Handle(context.Background(), f.store, nil, "Go ahead")

		if reply.Kind != KindFailure || reply.Output.Text != generationFailed || !reply.Output.Failed {
			t.Fatalf("unexpected reply %+v", reply)
		}
		if f.store.Mode() != profile.ModeCreate {
			t.Fatalf("mode must not advance, got %s", f.store.Mode())
		}
	})
}

func TestGenerateResumeWrapsErrors(t *testing.T) {
	f := newFixture(t)
	f.fillEssentials(t)

	_, err := f.router.generateResume(context.Background(), f.store)
	if !errors.Is(err, ErrGeneration) || !errors.Is(err, ai.ErrServiceUnavailable) {
		t.Fatalf("expected wrapped generation error, got %v", err)
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name    string
		message string
		kind    Kind
		mode    profile.Mode
		chats   int
	}{
		{name: "export options", message: "I want to export this", kind: KindExport, mode: profile.ModePreview},
		{name: "revise", message: "Can I change my summary?", kind: KindRevise, mode: profile.ModeCreate},
		{name: "export beats trigger words", message: "yes, export it", kind: KindExport, mode: profile.ModePreview},
		{name: "export words are not formats", message: "how do I export the text of this?", kind: KindExport, mode: profile.ModePreview},
		{name: "chat", message: "Is this good for a senior role?", kind: KindChat, mode: profile.ModePreview, chats: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.chatter.result = dispatch.Result{Output: persona.Output{Text: "Looks solid."}, Rounds: 1}
			_ = f.store.Set(profile.FieldGeneratedResume, "# Jane Smith")
			f.store.SetMode(profile.ModePreview)

			reply := f.router.Handle(context.Background(), f.store, nil, tt.message)

			if reply.Kind != tt.kind {
				t.Fatalf("expected %s, got %s", tt.kind, reply.Kind)
			}
			if f.store.Mode() != tt.mode {
				t.Fatalf("expected mode %s, got %s", tt.mode, f.store.Mode())
			}
			if len(f.chatter.tasks) != tt.chats {
				t.Fatalf("expected %d chat calls, got %d", tt.chats, len(f.chatter.tasks))
			}
			if f.classifier.calls != 0 {
				t.Fatal("classifier must not run in preview")
			}
		})
	}
}

func TestPreviewRevisionAllowsOverwrite(t *testing.T) {
	f := newFixture(t)
	_ = f.store.Set(profile.FieldGeneratedResume, "# Jane Smith")
	f.store.SetMode(profile.ModePreview)

	reply := f.router.Handle(context.Background(), f.store, nil, "please revise it")
	if reply.Output.Text != reviseInvite {
		t.Fatalf("unexpected text %q", reply.Output.Text)
	}
	if !f.store.Revising() {
		t.Fatal("expected revision to begin")
	}
}

func TestRevisionReplacesSection(t *testing.T) {
	ctx := context.Background()

	t.Run("section named", func(t *testing.T) {
		f := newFixture(t)
		f.fillEssentials(t)
		f.completer.resume = "# Jane Smith"
		f.store.SetMode(profile.ModeCreate)

		if reply := f.router.Handle(ctx, f.store, nil, "yes"); reply.Kind != KindGenerated {
			t.Fatalf("expected generation, got %s", reply.Kind)
		}

		reply := f.router.Handle(ctx, f.store, nil, "I want to revise my experience")
		if reply.Kind != KindRevise || f.store.Mode() != profile.ModeCreate {
			t.Fatalf("expected revision, got %s in %s", reply.Kind, f.store.Mode())
		}
		if f.store.LastQuestion() != FallbackQuestion(profile.FieldExperience) {
			t.Fatalf("expected experience question, got %q", f.store.LastQuestion())
		}

		reply = f.router.Handle(ctx, f.store, nil, "Beta Corp, lead engineer 2024-2025")
		if reply.Kind != KindConfirm {
			t.Fatalf("expected confirmation, got %s", reply.Kind)
		}
		if got := get(t, f.store, profile.FieldExperience); got != "Beta Corp, lead engineer 2024-2025" {
			t.Fatalf("expected experience to be replaced, got %q", got)
		}
	})

	t.Run("section asked", func(t *testing.T) {
		f := newFixture(t)
		f.fillEssentials(t)
		_ = f.store.Set(profile.FieldGeneratedResume, "# Jane Smith")
		f.store.SetMode(profile.ModePreview)

		reply := f.router.Handle(ctx, f.store, nil, "please revise it")
		if reply.Output.Text != reviseInvite || f.store.LastQuestion() != reviseInvite {
			t.Fatalf("expected section question, got %q", reply.Output.Text)
		}

		reply = f.router.Handle(ctx, f.store, nil, "the education part")
		if reply.Kind != KindRevise || f.store.LastQuestion() != FallbackQuestion(profile.FieldEducation) {
			t.Fatalf("expected education question, got %s %q", reply.Kind, f.store.LastQuestion())
		}

		f.router.Handle(ctx, f.store, nil, "MSc Distributed Systems")
		if got := get(t, f.store, profile.FieldEducation); got != "MSc Distributed Systems" {
			t.Fatalf("expected education to be replaced, got %q", got)
		}
	})
}

func TestExportWithFormat(t *testing.T) {
	f := newFixture(t)
	_ = f.store.Set(profile.FieldGeneratedResume, "# Jane Smith\n\n## Skills\n- Go")
	f.store.SetMode(profile.ModePreview)

	reply := f.router.Handle(context.Background(), f.store, nil, "export as Markdown please")

	if reply.Output.Ext != "md" || !strings.Contains(string(reply.Output.Content), "# Jane Smith") {
		t.Fatalf("expected markdown artifact, got %+v", reply.Output)
	}
}

func TestRouteFromIdle(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		f := newFixture(t)
		f.classifier.intent = intent.Create

		reply := f.router.Handle(context.Background(), f.store, nil, "help me write a resume")

		if f.store.Mode() != profile.ModeCreate || reply.Turn.Intent != intent.Create {
			t.Fatalf("unexpected state %s %+v", f.store.Mode(), reply.Turn)
		}
		if reply.Output.Progress == nil || reply.Output.Text != FallbackQuestion(profile.FieldName) {
			t.Fatalf("expected progress and the name question, got %+v", reply.Output)
		}
	})

	t.Run("create when already ready does not generate", func(t *testing.T) {
		f := newFixture(t)
		f.completer.resume = "# Jane"
		f.fillEssentials(t)
		f.classifier.intent = intent.Create

		reply := f.router.Handle(context.Background(), f.store, nil, "create my resume")

		if reply.Kind != KindConfirm || f.store.Mode() != profile.ModeCreate {
			t.Fatalf("expected confirmation, got %s in %s", reply.Kind, f.store.Mode())
		}
	})

	t.Run("rewrite with resume", func(t *testing.T) {
		f := newFixture(t)
		f.classifier.intent = intent.Rewrite
		_ = f.store.Set(profile.FieldResume, "old resume")

		reply := f.router.Handle(context.Background(), f.store, nil, "rewrite my resume")

		if f.store.Mode() != profile.ModeRewrite || !f.classifier.seen.HasResume {
			t.Fatalf("expected rewrite mode, got %s", f.store.Mode())
		}
		if reply.Output.Lead != rewriteLead {
			t.Fatalf("unexpected lead %q", reply.Output.Lead)
		}
	})

	t.Run("rewrite without resume", func(t *testing.T) {
		f := newFixture(t)
		f.classifier.intent = intent.Rewrite

		reply := f.router.Handle(context.Background(), f.store, nil, "rewrite my resume")

		if f.store.Mode() != profile.ModeCreate || reply.Output.Lead != noResumeToRewrite {
			t.Fatalf("expected create fallback, got %s %q", f.store.Mode(), reply.Output.Lead)
		}
	})

	t.Run("export without content", func(t *testing.T) {
		f := newFixture(t)
		f.classifier.intent = intent.Export

		reply := f.router.Handle(context.Background(), f.store, nil, "export")

		if reply.Output.Text != nothingToExport || f.store.Mode() != profile.ModeIdle {
			t.Fatalf("unexpected reply %+v in %s", reply.Output, f.store.Mode())
		}
	})

	t.Run("export match report", func(t *testing.T) {
		f := newFixture(t)
		f.classifier.intent = intent.Export
		_ = f.store.Set(profile.FieldMatchReport, "## Match report")

		reply := f.router.Handle(context.Background(), f.store, nil, "export")

		if !strings.Contains(reply.Output.Text, "docx") {
			t.Fatalf("expected export options, got %q", reply.Output.Text)
		}
	})

	t.Run("empty message", func(t *testing.T) {
		f := newFixture(t)
		f.classifier.intent = intent.Fallback(false)

		reply := f.router.Handle(context.Background(), f.store, nil, "   ")

		if f.classifier.calls != 1 || reply.Kind != KindQuestion {
			t.Fatalf("unexpected reply %+v", reply)
		}
	})
}

func TestChat(t *testing.T) {
	t.Run("applies persona updates", func(t *testing.T) {
		f := newFixture(t)
		f.chatter.result = dispatch.Result{
			Output: persona.Output{
				Text:    "## Match report",
				Updates: map[profile.Field]string{profile.FieldMatchReport: "## Match report"},
			},
			Decision: dispatch.Decision{Target: "analyst"},
			Rounds:   1,
		}
		history := []ai.Turn{{Role: ai.RoleUser, Content: "hi"}}

		reply := f.router.Handle(context.Background(), f.store, history, "how well do I match?")

		if f.store.Mode() != profile.ModeChat || reply.Kind != KindChat {
			t.Fatalf("unexpected state %s %s", f.store.Mode(), reply.Kind)
		}
		if got := get(t, f.store, profile.FieldMatchReport); got != "## Match report" {
			t.Fatalf("expected stored match report, got %q", got)
		}
		if reply.Decision.Target != "analyst" || reply.Turn.Round != 1 {
			t.Fatalf("unexpected decision %+v", reply)
		}
		task := f.chatter.tasks[0]
		if task.Profile["mode"] != "chat" || len(task.History) != 1 {
			t.Fatalf("unexpected task %+v", task)
		}
	})

	t.Run("chat mode classifies again", func(t *testing.T) {
		f := newFixture(t)
		f.store.SetMode(profile.ModeChat)
		f.classifier.intent = intent.Create

		f.router.Handle(context.Background(), f.store, nil, "let's build a resume")

		if f.classifier.calls != 1 || f.store.Mode() != profile.ModeCreate {
			t.Fatalf("expected reclassification, mode %s", f.store.Mode())
		}
	})

	t.Run("no valid target", func(t *testing.T) {
		f := newFixture(t)
		f.chatter.result = dispatch.Result{Decision: dispatch.Decision{Reason: `unknown persona "recruiter"`}}
		f.chatter.err = fmt.Errorf("%w: %q", dispatch.ErrNoValidTarget, "recruiter")

		reply := f.router.Handle(context.Background(), f.store, nil, "hello")

		if !reply.Output.Failed || !strings.Contains(reply.Output.Text, "recruiter") {
			t.Fatalf("expected diagnostic failure, got %+v", reply.Output)
		}
	})

	t.Run("persona failure", func(t *testing.T) {
		f := newFixture(t)
		f.chatter.err = ai.ErrServiceUnavailable

		reply := f.router.Handle(context.Background(), f.store, nil, "hello")

		if !reply.Output.Failed || reply.Output.Text != "" || reply.Kind != KindFailure {
			t.Fatalf("expected generic failure, got %+v", reply)
		}
	})
}

func TestRequestedFormat(t *testing.T) {
	tests := []struct {
		message string
		format  export.Format
		ok      bool
	}{
		{message: "export as docx", format: export.FormatDOCX, ok: true},
		{message: "Export it to HTML.", format: export.FormatHTML, ok: true},
		{message: "export please", ok: false},
		{message: "how do I export the text of this?", ok: false},
		{message: "export to word", ok: false},
		{message: "export as txt", format: export.FormatText, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			f, ok := requestedFormat(tt.message)
			if ok != tt.ok || f != tt.format {
				t.Fatalf("expected (%q, %v), got (%q, %v)", tt.format, tt.ok, f, ok)
			}
		})
	}
}
