package router

import (
	"fmt"
	"strings"

	"github.com/spigell/resume-butler/internal/export"
	"github.com/spigell/resume-butler/internal/profile"
)

const (
	createLead  = "I'll help you build a professional resume step by step."
	rewriteLead = "I'll help you improve your existing resume."

	noResumeToRewrite = "I don't see an existing resume to rewrite. Let's create a new one instead!"
	nothingToExport   = "I don't have a generated resume to export. Would you like me to create one for you first?"
	reviseInvite      = "What would you like to revise? I can help you update any section of your resume."
	generationFailed  = "Failed to generate resume. Please try again."

	generatedFooter = "**Next steps:** say \"export\" to download your resume, \"revise\" to change a section, or ask me anything about it."
)

var fallbackQuestions = map[profile.Field]string{
	profile.FieldName:           "What's your full name?",
	profile.FieldEmail:          "What's your email address?",
	profile.FieldPhone:          "What's the best phone number to reach you?",
	profile.FieldLocation:       "What's your location (city and country)?",
	profile.FieldLinkedIn:       "Do you have a LinkedIn profile you'd like to include?",
	profile.FieldSummary:        "Could you give me a short professional summary of yourself?",
	profile.FieldExperience:     "Tell me about your work experience, including roles, companies and dates.",
	profile.FieldEducation:      "What is your education background?",
	profile.FieldSkills:         "Which skills would you like to highlight?",
	profile.FieldCertifications: "Do you hold any certifications?",
	profile.FieldProjects:       "Are there any projects you'd like to showcase?",
}

// FallbackQuestion is the question asked for f when none can be generated.
func FallbackQuestion(f profile.Field) string {
	if q, ok := fallbackQuestions[f]; ok {
		return q
	}
	return fmt.Sprintf("Could you tell me about your %s?", f.Label())
}

func readyText(percent int) string {
	return fmt.Sprintf("Great! I have enough information to create your resume. Your profile is %d%% complete.\n\n"+
		"Would you like me to generate your resume now? (Just say 'yes' or 'generate')", percent)
}

func exportOptionsText() string {
	var b strings.Builder
	b.WriteString("Your resume can be downloaded in these formats:\n")
	for _, f := range export.Formats {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	b.WriteString("\nTell me which one you'd like, for example \"export as docx\".")
	return b.String()
}

func reviseSectionText(f profile.Field, question string) string {
	return fmt.Sprintf("Sure, let's update your %s. %s", f.Label(), question)
}

func routingFailureText(reason string) string {
	return fmt.Sprintf("I couldn't decide who should answer that (%s). Please rephrase your request.", reason)
}
