package profile

import (
	"errors"
	"testing"
)

func TestStoreSetAndGet(t *testing.T) {
	s := NewStore()

	if err := s.Set(FieldEmail, "  jane@x.com "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Get(FieldEmail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "jane@x.com" {
		t.Fatalf("expected trimmed email, got %q", got)
	}

	if err := s.Set(FieldEmail, "jane@x.com"); err != nil {
		t.Fatalf("idempotent set failed: %v", err)
	}
	if again, _ := s.Get(FieldEmail); again != got {
		t.Fatalf("expected idempotent value %q, got %q", got, again)
	}

	if err := s.Set(FieldEmail, "   "); err != nil {
		t.Fatalf("unexpected error on empty set: %v", err)
	}
	if kept, _ := s.Get(FieldEmail); kept != "jane@x.com" {
		t.Fatalf("empty set must not clear field, got %q", kept)
	}
}

func TestStoreInvalidField(t *testing.T) {
	s := NewStore()

	_, err := s.Get(Field("salary"))
	var invalid *InvalidFieldError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidFieldError, got %v", err)
	}
	if invalid.Name != "salary" {
		t.Fatalf("unexpected field name %q", invalid.Name)
	}

	if err := s.Set(Field("salary"), "1"); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidFieldError from Set, got %v", err)
	}
	if err := s.Apply(Field(""), "1"); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidFieldError from Apply, got %v", err)
	}
}

func TestParseField(t *testing.T) {
	f, err := ParseField(" LinkedIn ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != FieldLinkedIn {
		t.Fatalf("expected linkedin, got %q", f)
	}

	if _, err := ParseField("hobbies"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestStoreApplyMergeRules(t *testing.T) {
	tests := []struct {
		name   string
		field  Field
		values []string
		expect string
	}{
		{name: "experience appends with blank line", field: FieldExperience, values: []string{"A", "B"}, expect: "A\n\nB"},
		{name: "skills append with comma", field: FieldSkills, values: []string{"Go", "SQL"}, expect: "Go, SQL"},
		{name: "certifications append with newline", field: FieldCertifications, values: []string{"CKA", "AWS SA"}, expect: "CKA\nAWS SA"},
		{name: "summary overwrites", field: FieldSummary, values: []string{"old", "new"}, expect: "new"},
		{name: "phone overwrites", field: FieldPhone, values: []string{"555-123-4567", "555-000-1111"}, expect: "555-000-1111"},
		{name: "empty append ignored", field: FieldProjects, values: []string{"P1", " "}, expect: "P1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			for _, v := range tt.values {
				if err := s.Apply(tt.field, v); err != nil {
					t.Fatalf("apply %q: %v", v, err)
				}
			}
			got, _ := s.Get(tt.field)
			if got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestStoreAppendOnlyOutsideRevision(t *testing.T) {
	s := NewStore()
	if err := s.Apply(FieldExperience, "A"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.Set(FieldExperience, "B"); !errors.Is(err, ErrAppendOnly) {
		t.Fatalf("expected ErrAppendOnly, got %v", err)
	}

	s.BeginRevision()
	if err := s.Apply(FieldExperience, "B"); err != nil {
		t.Fatalf("unexpected error during revision: %v", err)
	}
	if got, _ := s.Get(FieldExperience); got != "B" {
		t.Fatalf("expected revision to replace experience, got %q", got)
	}

	s.EndRevision()
	if err := s.Apply(FieldExperience, "C"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := s.Get(FieldExperience); got != "B\n\nC" {
		t.Fatalf("expected append after revision, got %q", got)
	}
}

func TestStoreCompletionRatioMonotonic(t *testing.T) {
	s := NewStore()
	if ratio := s.CompletionRatio(); ratio != 0 {
		t.Fatalf("expected empty ratio 0, got %v", ratio)
	}

	steps := []struct {
		field Field
		value string
	}{
		{FieldName, "Jane Smith"},
		{FieldEmail, "jane@x.com"},
		{FieldEmail, "jane@y.com"},
		{FieldSkills, "Go"},
		{FieldSkills, "SQL"},
		{FieldResume, "raw resume text"},
		{FieldLinkedIn, "linkedin.com/in/jane"},
	}

	prev := s.CompletionRatio()
	for _, step := range steps {
		if err := s.Apply(step.field, step.value); err != nil {
			t.Fatalf("apply %s: %v", step.field, err)
		}
		ratio := s.CompletionRatio()
		if ratio < prev {
			t.Fatalf("ratio decreased after %s: %v -> %v", step.field, prev, ratio)
		}
		if ratio < 0 || ratio > 1 {
			t.Fatalf("ratio out of range: %v", ratio)
		}
		prev = ratio
	}

	want := 4.0 / 11.0
	if prev != want {
		t.Fatalf("expected ratio %v, got %v", want, prev)
	}
}

func TestStoreIsReady(t *testing.T) {
	s := NewStore()
	values := map[Field]string{
		FieldName:       "Jane Smith",
		FieldEmail:      "jane@x.com",
		FieldPhone:      "555-123-4567",
		FieldSummary:    "Backend engineer",
		FieldExperience: "Acme 2019-2024",
		FieldEducation:  "BSc CS",
	}
	for f, v := range values {
		if err := s.Set(f, v); err != nil {
			t.Fatalf("set %s: %v", f, err)
		}
	}

	if s.IsReady() {
		t.Fatal("expected not ready without skills")
	}
	missing := s.MissingEssential()
	if len(missing) != 1 || missing[0] != FieldSkills {
		t.Fatalf("expected only skills missing, got %v", missing)
	}

	if err := s.Set(FieldSkills, "Go"); err != nil {
		t.Fatalf("set skills: %v", err)
	}
	if !s.IsReady() {
		t.Fatal("expected ready with all essential fields")
	}
}

func TestStoreMissingEssentialOrder(t *testing.T) {
	s := NewStore()
	_ = s.Set(FieldEmail, "jane@x.com")

	missing := s.MissingEssential()
	want := []Field{FieldName, FieldPhone, FieldSummary, FieldExperience, FieldEducation, FieldSkills}
	if len(missing) != len(want) {
		t.Fatalf("expected %v, got %v", want, missing)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, missing)
		}
	}
}

func TestStoreArgsAndReset(t *testing.T) {
	s := NewStore()
	_ = s.Set(FieldName, "Jane Smith")
	_ = s.Set(FieldJobDescription, "Go developer")
	s.SetMode(ModeCreate)

	args, err := s.Args()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args["name"] != "Jane Smith" {
		t.Fatalf("unexpected name arg: %v", args["name"])
	}
	if args["jd"] != "Go developer" {
		t.Fatalf("unexpected jd arg: %v", args["jd"])
	}
	if args["mode"] != "create" {
		t.Fatalf("unexpected mode arg: %v", args["mode"])
	}

	s.BeginRevision()
	s.Reset()
	if s.Mode() != ModeIdle {
		t.Fatalf("expected idle after reset, got %q", s.Mode())
	}
	if s.Revising() {
		t.Fatal("expected revision to end on reset")
	}
	if s.CompletionRatio() != 0 {
		t.Fatal("expected empty profile after reset")
	}
}

func TestStoreLastQuestionCanBeCleared(t *testing.T) {
	s := NewStore()
	s.SetLastQuestion("What's your phone number?")
	if s.LastQuestion() == "" {
		t.Fatal("expected last question to be stored")
	}
	s.SetLastQuestion("")
	if s.LastQuestion() != "" {
		t.Fatalf("expected last question cleared, got %q", s.LastQuestion())
	}
}
