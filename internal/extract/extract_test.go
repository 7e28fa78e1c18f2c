package extract

import (
	"testing"

	"github.com/spigell/resume-butler/internal/profile"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect Fields
	}{
		{
			name:   "email inside sentence",
			input:  "reach me at a.b@x.com please",
			expect: Fields{profile.FieldEmail: "a.b@x.com"},
		},
		{
			name:  "name and email",
			input: "My name is Jane Smith and my email is jane@x.com",
			expect: Fields{
				profile.FieldName:  "Jane Smith",
				profile.FieldEmail: "jane@x.com",
			},
		},
		{
			name:   "phone with country code",
			input:  "call +1 (555) 123-4567 after six",
			expect: Fields{profile.FieldPhone: "+1 (555) 123-4567"},
		},
		{
			name:   "dashed phone",
			input:  "my number is 555-123-4567",
			expect: Fields{profile.FieldPhone: "555-123-4567"},
		},
		{
			name:   "short number rejected",
			input:  "call 555-1234",
			expect: Fields{},
		},
		{
			name:   "I'm form with trailing clause",
			input:  "Hi, I'm John Doe with ten years in Go",
			expect: Fields{profile.FieldName: "John Doe"},
		},
		{
			name:   "trailing clause with digits",
			input:  "I'm Jane Smith with 5 years of Go experience",
			expect: Fields{profile.FieldName: "Jane Smith"},
		},
		{
			name:   "lowercase explicit form",
			input:  "my name is ada lovelace",
			expect: Fields{profile.FieldName: "ada lovelace"},
		},
		{
			name:   "ordinary sentence is not a name",
			input:  "I am ready to continue",
			expect: Fields{},
		},
		{
			name:   "nothing to find",
			input:  "hello there",
			expect: Fields{},
		},
		{
			name:   "empty",
			input:  "",
			expect: Fields{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Extract(tt.input)
			if got == nil {
				t.Fatal("expected non-nil fields")
			}
			if len(got) != len(tt.expect) {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
			for f, v := range tt.expect {
				if got[f] != v {
					t.Fatalf("field %s: expected %q, got %q", f, v, got[f])
				}
			}
		})
	}
}

func TestApplyContext(t *testing.T) {
	tests := []struct {
		name      string
		question  string
		message   string
		extracted Fields
		field     profile.Field
		expect    string
		assigned  bool
	}{
		{
			name:     "location answer",
			question: "Where is your location?",
			message:  "Berlin, Germany",
			field:    profile.FieldLocation,
			expect:   "Berlin, Germany",
			assigned: true,
		},
		{
			name:     "email answer without at sign ignored",
			question: "What's your email address?",
			message:  "I don't have one",
			field:    profile.FieldEmail,
			assigned: false,
		},
		{
			name:     "phone answer is cleaned",
			question: "What's your phone number?",
			message:  "it's 555 123 4567",
			field:    profile.FieldPhone,
			expect:   "5551234567",
			assigned: true,
		},
		{
			name:     "short phone answer ignored",
			question: "What's your phone number?",
			message:  "12345",
			field:    profile.FieldPhone,
			assigned: false,
		},
		{
			name:      "extracted field takes precedence",
			question:  "What's your name?",
			message:   "My name is Jane Smith",
			extracted: Fields{profile.FieldName: "Jane Smith"},
			field:     profile.FieldName,
			assigned:  false,
		},
		{
			name:     "objective keyword maps to summary",
			question: "What is your career objective?",
			message:  "Lead platform teams",
			field:    profile.FieldSummary,
			expect:   "Lead platform teams",
			assigned: true,
		},
		{
			name:     "name wins over later keywords",
			question: "What's the name of your last job?",
			message:  "Acme",
			field:    profile.FieldName,
			expect:   "Acme",
			assigned: true,
		},
		{
			name:     "whitespace message",
			question: "Tell me about your skills",
			message:  "   ",
			field:    profile.FieldSkills,
			assigned: false,
		},
		{
			name:     "no keyword",
			question: "Anything else?",
			message:  "nope",
			assigned: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := profile.NewStore()
			extracted := tt.extracted
			if extracted == nil {
				extracted = Fields{}
			}

			changed, err := ApplyContext(store, tt.message, tt.question, extracted)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !tt.assigned {
				if len(changed) != 0 {
					t.Fatalf("expected nothing assigned, got %v", changed)
				}
				if tt.field != "" {
					if got, _ := store.Get(tt.field); got != "" {
						t.Fatalf("expected %s unset, got %q", tt.field, got)
					}
				}
				return
			}

			if len(changed) != 1 || changed[0] != tt.field {
				t.Fatalf("expected %s assigned, got %v", tt.field, changed)
			}
			if got, _ := store.Get(tt.field); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestEnrichAppendsExperienceAnswers(t *testing.T) {
	store := profile.NewStore()
	if err := store.Set(profile.FieldExperience, "A"); err != nil {
		t.Fatalf("seed experience: %v", err)
	}
	store.SetLastQuestion("Tell me about your work experience")

	changed, err := Enrich(store, "B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changed) != 1 || changed[0] != profile.FieldExperience {
		t.Fatalf("expected experience changed, got %v", changed)
	}

	got, _ := store.Get(profile.FieldExperience)
	if got != "A\n\nB" {
		t.Fatalf("expected %q, got %q", "A\n\nB", got)
	}
}

func TestEnrichExtractsAndAssigns(t *testing.T) {
	store := profile.NewStore()
	store.SetLastQuestion("Which skills do you have?")

	changed, err := Enrich(store, "Go, SQL. Mail me at dev@example.org")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changed) != 2 {
		t.Fatalf("expected two changed fields, got %v", changed)
	}

	if email, _ := store.Get(profile.FieldEmail); email != "dev@example.org" {
		t.Fatalf("unexpected email %q", email)
	}
	if skills, _ := store.Get(profile.FieldSkills); skills == "" {
		t.Fatal("expected skills assigned from context")
	}
}

func TestQuestionField(t *testing.T) {
	tests := []struct {
		question string
		field    profile.Field
		ok       bool
	}{
		{question: "What's your phone number?", field: profile.FieldPhone, ok: true},
		{question: "Thanks! What name and phone should I use?", field: profile.FieldName, ok: true},
		{question: "Tell me about your last job", field: profile.FieldExperience, ok: true},
		{question: "Which degree do you hold?", field: profile.FieldEducation, ok: true},
		{question: "Anything else?", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			f, ok := QuestionField(tt.question)
			if ok != tt.ok || f != tt.field {
				t.Fatalf("expected (%q, %v), got (%q, %v)", tt.field, tt.ok, f, ok)
			}
		})
	}
}
