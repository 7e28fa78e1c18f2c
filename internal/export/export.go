// Package export renders resume markdown into downloadable formats.
package export

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Format is an export file format.
type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatDOCX     Format = "docx"
	FormatHTML     Format = "html"
)

// Formats lists the supported formats in menu order.
var Formats = []Format{FormatDOCX, FormatMarkdown, FormatText, FormatHTML}

var (
	ErrEmptyContent      = errors.New("nothing to export")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// ParseFormat accepts a format name with or without a leading dot.
func ParseFormat(s string) (Format, error) {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	switch normalized {
	case "txt", "text":
		return FormatText, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "docx", "word":
		return FormatDOCX, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Ext is the file extension without a dot.
func (f Format) Ext() string {
	return string(f)
}

// Exporter converts resume markdown into file bytes.
type Exporter interface {
	Export(content string, format Format) ([]byte, error)
}

// Renderer is the default Exporter.
type Renderer struct {
	// Title is used for the HTML document title.
	Title string
}

func NewRenderer() *Renderer {
	return &Renderer{Title: "Resume"}
}

func (r *Renderer) Export(content string, format Format) ([]byte, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	switch format {
	case FormatMarkdown:
		return []byte(content + "\n"), nil
	case FormatText:
		return []byte(plainText(content) + "\n"), nil
	case FormatDOCX:
		return renderDOCX(parseBlocks(content))
	case FormatHTML:
		return renderHTML(r.Title, parseBlocks(content)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockBullet
)

type block struct {
	kind  blockKind
	level int
	text  string
}

var (
	headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	bulletPattern  = regexp.MustCompile(`^[-*+]\s+(.*)$`)
	emphasis       = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__`)
)

// parseBlocks reads the small markdown subset produced by resume generation:
// headings, bullets and paragraphs.
func parseBlocks(content string) []block {
	var blocks []block
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			blocks = append(blocks, block{kind: blockHeading, level: len(m[1]), text: m[2]})
			continue
		}
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			blocks = append(blocks, block{kind: blockBullet, text: m[1]})
			continue
		}
		blocks = append(blocks, block{kind: blockParagraph, text: line})
	}
	return blocks
}

func stripEmphasis(s string) string {
	return emphasis.ReplaceAllString(s, "$1$2")
}

func plainText(content string) string {
	var lines []string
	for _, b := range parseBlocks(content) {
		text := stripEmphasis(b.text)
		switch b.kind {
		case blockHeading:
			if len(lines) > 0 {
				lines = append(lines, "")
			}
			if b.level <= 2 {
				text = strings.ToUpper(text)
			}
			lines = append(lines, text)
		case blockBullet:
			lines = append(lines, "• "+text)
		default:
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}
