// Package extract pulls structured profile values out of free-text messages.
package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/spigell/resume-butler/internal/profile"
)

const minPhoneDigits = 10

// Fields maps profile fields to values found in a message.
type Fields map[profile.Field]string

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?(\(?\d{3}\)?[-.\s]?)?\d{3}[-.\s]?\d{4}`)

	// "my name is" is unambiguous and accepts any casing. The shorter forms
	// match a lot of ordinary sentences ("I am ready"), so they require a
	// capitalised first word. Both capture the rest of the sentence; the name
	// is cut out of it afterwards.
	explicitNamePattern = regexp.MustCompile(`(?i)\bmy name is\s+([a-z][^,.;!?\n]*)`)
	shortNamePatterns   = []*regexp.Regexp{
		regexp.MustCompile(`(?i:\bI'm)\s+([A-Z][^,.;!?\n]*)`),
		regexp.MustCompile(`(?i:\bI am)\s+([A-Z][^,.;!?\n]*)`),
	}
	nameWords      = regexp.MustCompile(`^[A-Za-z]+(?:[ '-][A-Za-z]+){0,3}`)
	trailingClause = regexp.MustCompile(`(?i)\s+(and|with|at|from)\b.*$`)
)

// Extract finds email, phone and name values in message. It never fails: a
// message without recognisable values yields an empty map.
func Extract(message string) Fields {
	fields := make(Fields)

	if email := emailPattern.FindString(message); email != "" {
		fields[profile.FieldEmail] = email
	}

	if phone := findPhone(message); phone != "" {
		fields[profile.FieldPhone] = phone
	}

	if name := findName(message); name != "" {
		fields[profile.FieldName] = name
	}

	return fields
}

// Sorted returns the extracted fields in a stable order.
func (f Fields) Sorted() []profile.Field {
	keys := make([]profile.Field, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func findPhone(message string) string {
	// Email addresses can hold digit runs; drop them before scanning.
	scrubbed := emailPattern.ReplaceAllString(message, " ")
	for _, candidate := range phonePattern.FindAllString(scrubbed, -1) {
		candidate = strings.TrimSpace(candidate)
		if countDigits(candidate) >= minPhoneDigits {
			return candidate
		}
	}
	return ""
}

func findName(message string) string {
	var raw string
	if m := explicitNamePattern.FindStringSubmatch(message); m != nil {
		raw = m[1]
	} else {
		for _, p := range shortNamePatterns {
			if m := p.FindStringSubmatch(message); m != nil {
				raw = m[1]
				break
			}
		}
	}

	raw = trailingClause.ReplaceAllString(strings.TrimSpace(raw), "")
	return strings.TrimSpace(nameWords.FindString(raw))
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
