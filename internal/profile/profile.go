package profile

import (
	"fmt"
	"strings"
)

// Mode is the conversation state of a profile.
type Mode string

const (
	ModeIdle    Mode = "idle"
	ModeCreate  Mode = "create"
	ModeRewrite Mode = "rewrite"
	ModePreview Mode = "preview"
	ModeChat    Mode = "chat"
)

// Field names a single slot of the profile.
type Field string

const (
	FieldName           Field = "name"
	FieldEmail          Field = "email"
	FieldPhone          Field = "phone"
	FieldLocation       Field = "location"
	FieldLinkedIn       Field = "linkedin"
	FieldSummary        Field = "summary"
	FieldExperience     Field = "experience"
	FieldEducation      Field = "education"
	FieldSkills         Field = "skills"
	FieldCertifications Field = "certifications"
	FieldProjects       Field = "projects"

	FieldResume          Field = "resume"
	FieldJobDescription  Field = "jd"
	FieldMatchReport     Field = "match_report"
	FieldGeneratedResume Field = "generated_resume"
	FieldTargetRole      Field = "target_role"
	FieldLastQuestion    Field = "last_question"
)

// Kind tells how a field merges new values.
type Kind int

const (
	KindOverwrite Kind = iota
	KindAppend
)

// Profile is the structured record collected during a conversation.
// Empty strings mean the field has not been provided.
type Profile struct {
	Name           string `mapstructure:"name" json:"name,omitempty"`
	Email          string `mapstructure:"email" json:"email,omitempty"`
	Phone          string `mapstructure:"phone" json:"phone,omitempty"`
	Location       string `mapstructure:"location" json:"location,omitempty"`
	LinkedIn       string `mapstructure:"linkedin" json:"linkedin,omitempty"`
	Summary        string `mapstructure:"summary" json:"summary,omitempty"`
	Experience     string `mapstructure:"experience" json:"experience,omitempty"`
	Education      string `mapstructure:"education" json:"education,omitempty"`
	Skills         string `mapstructure:"skills" json:"skills,omitempty"`
	Certifications string `mapstructure:"certifications" json:"certifications,omitempty"`
	Projects       string `mapstructure:"projects" json:"projects,omitempty"`

	Resume          string `mapstructure:"resume" json:"resume,omitempty"`
	JobDescription  string `mapstructure:"jd" json:"jd,omitempty"`
	MatchReport     string `mapstructure:"match_report" json:"match_report,omitempty"`
	GeneratedResume string `mapstructure:"generated_resume" json:"generated_resume,omitempty"`
	TargetRole      string `mapstructure:"target_role" json:"target_role,omitempty"`

	Mode         Mode   `mapstructure:"mode" json:"mode"`
	LastQuestion string `mapstructure:"last_question" json:"last_question,omitempty"`
}

type fieldSpec struct {
	kind Kind
	sep  string
	ref  func(p *Profile) *string
}

var fieldTable = map[Field]fieldSpec{
	FieldName:           {kind: KindOverwrite, ref: func(p *Profile) *string { return &p.Name }},
	FieldEmail:          {kind: KindOverwrite, ref: func(p *Profile) *string { return &p.Email }},
	FieldPhone:          {kind: KindOverwrite, ref: func(p *Profile) *string { return &p.Phone }},
	FieldLocation:       {kind: KindOverwrite, ref: func(p *Profile) *string { return &p.Location }},
	FieldLinkedIn:       {kind: KindOverwrite, ref: func(p *Profile) *string { return &p.LinkedIn }},
	FieldSummary:        {kind: KindOverwrite, ref: func(p *Profile) *string { return &p.Summary }},
	FieldExperience:     {kind: KindAppend, sep: "\n\n", ref: func(p *Profile) *string { return &p.Experience }},
	FieldEducation:      {kind: KindAppend, sep: "\n\n", ref: func(p *Profile) *string { return &p.Education }},
	FieldSkills:         {kind: KindAppend, sep: ", ", ref: func(p *Profile) *string { return &p.Skills }},
	FieldCertifications: {kind: KindAppend, sep: "\n", ref: func(p *Profile) *string { return &p.Certifications }},
	FieldProjects:       {kind: KindAppend, sep: "\n\n", ref: func(p *Profile) *string { return &p.Projects }},

	FieldResume:          {kind: KindOverwrite, ref: func(p *Profile) *string { return &p.Resume }},
	FieldJobDescription:  {kind: KindOverwrite, ref: func(p *Profile) *string { return &p.JobDescription }},
	FieldMatchReport:     {kind: KindOverwrite, ref: func(p *Profile) *string { return &p.MatchReport }},
	FieldGeneratedResume: {kind: KindOverwrite, ref: func(p *Profile) *string { return &p.GeneratedResume }},
	FieldTargetRole:      {kind: KindOverwrite, ref: func(p *Profile) *string { return &p.TargetRole }},
	FieldLastQuestion:    {kind: KindOverwrite, ref: func(p *Profile) *string { return &p.LastQuestion }},
}

// TrackedFields are counted by the completion ratio.
var TrackedFields = []Field{
	FieldName, FieldEmail, FieldPhone, FieldLocation, FieldLinkedIn,
	FieldSummary, FieldExperience, FieldEducation, FieldSkills,
	FieldCertifications, FieldProjects,
}

// EssentialFields must all be present before a resume can be generated.
// The order is the order questions are asked in.
var EssentialFields = []Field{
	FieldName, FieldEmail, FieldPhone, FieldSummary,
	FieldExperience, FieldEducation, FieldSkills,
}

// InvalidFieldError is returned for names outside the field table.
type InvalidFieldError struct {
	Name string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid profile field %q", e.Name)
}

// ParseField resolves a field name, case-insensitively.
func ParseField(name string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := fieldTable[f]; !ok {
		return "", &InvalidFieldError{Name: name}
	}
	return f, nil
}

func (f Field) String() string {
	return string(f)
}

// Label is a human readable field name used in questions and status output.
func (f Field) Label() string {
	switch f {
	case FieldLinkedIn:
		return "LinkedIn"
	case FieldJobDescription:
		return "job description"
	default:
		return strings.ReplaceAll(string(f), "_", " ")
	}
}

func lookup(f Field) (fieldSpec, error) {
	entry, ok := fieldTable[f]
	if !ok {
		return fieldSpec{}, &InvalidFieldError{Name: string(f)}
	}
	return entry, nil
}
