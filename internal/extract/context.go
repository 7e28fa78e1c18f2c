package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spigell/resume-butler/internal/profile"
)

type contextRule struct {
	keywords []string
	field    profile.Field
	accept   func(message string) (string, bool)
}

var phoneNoise = regexp.MustCompile(`[^\d+()\-]`)

// contextRules is ordered by priority; only the first rule whose keyword
// appears in the last question is considered.
var contextRules = []contextRule{
	{keywords: []string{"name"}, field: profile.FieldName, accept: acceptAny},
	{keywords: []string{"email"}, field: profile.FieldEmail, accept: acceptEmail},
	{keywords: []string{"phone"}, field: profile.FieldPhone, accept: acceptPhone},
	{keywords: []string{"location"}, field: profile.FieldLocation, accept: acceptAny},
	{keywords: []string{"linkedin"}, field: profile.FieldLinkedIn, accept: acceptAny},
	{keywords: []string{"summary", "objective"}, field: profile.FieldSummary, accept: acceptAny},
	{keywords: []string{"experience", "job"}, field: profile.FieldExperience, accept: acceptAny},
	{keywords: []string{"education", "degree"}, field: profile.FieldEducation, accept: acceptAny},
	{keywords: []string{"skills"}, field: profile.FieldSkills, accept: acceptAny},
	{keywords: []string{"certification"}, field: profile.FieldCertifications, accept: acceptAny},
	{keywords: []string{"project"}, field: profile.FieldProjects, accept: acceptAny},
}

// Setter is the part of the profile store context assignment writes to.
type Setter interface {
	Apply(f profile.Field, value string) error
}

// ApplyContext treats message as the answer to lastQuestion. The field is
// chosen by the first keyword found in the question. Fields already found by
// Extract in the same message are left alone. It returns the fields written.
func ApplyContext(store Setter, message, lastQuestion string, extracted Fields) ([]profile.Field, error) {
	message = strings.TrimSpace(message)
	if message == "" || strings.TrimSpace(lastQuestion) == "" {
		return nil, nil
	}

	rule, ok := questionRule(lastQuestion)
	if !ok {
		return nil, nil
	}

	if _, ok := extracted[rule.field]; ok {
		return nil, nil
	}

	value, ok := rule.accept(message)
	if !ok {
		return nil, nil
	}

	if err := store.Apply(rule.field, value); err != nil {
		return nil, fmt.Errorf("apply %s from context: %w", rule.field, err)
	}
	return []profile.Field{rule.field}, nil
}

// QuestionField reports which field an answer to question would be stored in.
func QuestionField(question string) (profile.Field, bool) {
	rule, ok := questionRule(question)
	if !ok {
		return "", false
	}
	return rule.field, true
}

func questionRule(question string) (contextRule, bool) {
	question = strings.ToLower(question)
	for _, rule := range contextRules {
		if rule.matches(question) {
			return rule, true
		}
	}
	return contextRule{}, false
}

func (r contextRule) matches(question string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(question, kw) {
			return true
		}
	}
	return false
}

func acceptAny(message string) (string, bool) {
	return message, true
}

func acceptEmail(message string) (string, bool) {
	return message, strings.Contains(message, "@")
}

func acceptPhone(message string) (string, bool) {
	cleaned := phoneNoise.ReplaceAllString(message, "")
	return cleaned, countDigits(cleaned) >= minPhoneDigits
}
