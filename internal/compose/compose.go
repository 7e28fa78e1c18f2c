// Package compose turns routing outcomes into user-facing responses.
package compose

import (
	"fmt"
	"math"
	"strings"

	"github.com/spigell/resume-butler/internal/dispatch"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FailureText is shown whenever there is nothing meaningful to reply with.
const FailureText = "Something went wrong while preparing a reply. Please try again."

// Banner is a heading placed above a reply.
type Banner string

const (
	BannerNone      Banner = ""
	BannerCreate    Banner = "🚀 **Let's create your resume!**"
	BannerRewrite   Banner = "🔄 **Let's improve your resume!**"
	BannerGenerated Banner = "🎉 **Your resume has been generated!**"
	BannerExport    Banner = "📄 **Resume Export Options:**"
)

var mimeTypes = map[string]string{
	"txt":  "text/plain",
	"md":   "text/markdown",
	"html": "text/html",
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"json": "application/json",
}

const defaultMIME = "application/octet-stream"

// Output is the raw material of a reply.
type Output struct {
	Banner Banner
	// Lead is placed before the progress line.
	Lead string
	// Progress, when set, is the completion ratio to report (0..1).
	Progress *float64
	Text     string
	Footer   string

	Content []byte
	Ext     string

	// Failed marks a reply that could not be produced. Text, when set,
	// replaces the generic failure message.
	Failed bool
}

// Artifact is a downloadable file.
type Artifact struct {
	Content  []byte `json:"content"`
	Filename string `json:"filename"`
	MIME     string `json:"mime"`
}

// Response is either a text reply or an artifact with an optional caption.
type Response struct {
	Text     string    `json:"display_text"`
	Artifact *Artifact `json:"artifact,omitempty"`
}

// Composer builds responses.
type Composer struct {
	logger *zap.Logger
	suffix func() string
}

func New(logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{logger: logger, suffix: randomSuffix}
}

// Compose renders out for the given routing decision.
func (c *Composer) Compose(d dispatch.Decision, out Output) Response {
	if len(out.Content) > 0 && out.Ext != "" {
		artifact := c.artifact(out.Content, out.Ext)
		c.logger.Debug("composed artifact",
			zap.String("filename", artifact.Filename),
			zap.String("mime", artifact.MIME),
			zap.String("target", d.Target),
		)
		return Response{Text: strings.TrimSpace(out.Text), Artifact: artifact}
	}

	if out.Failed {
		text := strings.TrimSpace(out.Text)
		if text == "" {
			text = FailureText
		}
		return Response{Text: text}
	}

	var parts []string
	if out.Banner != BannerNone {
		parts = append(parts, string(out.Banner))
	}

	var lead []string
	if s := strings.TrimSpace(out.Lead); s != "" {
		lead = append(lead, s)
	}
	if out.Progress != nil {
		lead = append(lead, ProgressLine(*out.Progress))
	}
	if len(lead) > 0 {
		parts = append(parts, strings.Join(lead, " "))
	}

	body := strings.TrimSpace(out.Text)
	if body != "" {
		parts = append(parts, body)
	}

	// A banner or progress line alone is not a reply.
	if body == "" && out.Lead == "" {
		c.logger.Warn("empty reply replaced with failure text",
			zap.String("target", d.Target),
			zap.String("reason", d.Reason),
		)
		return Response{Text: FailureText}
	}

	if s := strings.TrimSpace(out.Footer); s != "" {
		parts = append(parts, s)
	}

	return Response{Text: strings.Join(parts, "\n\n")}
}

// ProgressLine formats a completion ratio as a sentence.
func ProgressLine(ratio float64) string {
	return fmt.Sprintf("Your profile is %d%% complete.", Percent(ratio))
}

// Percent converts a ratio to a whole percentage.
func Percent(ratio float64) int {
	return int(math.Round(ratio * 100))
}

// MIMEType resolves a file extension to a media type.
func MIMEType(ext string) string {
	if mime, ok := mimeTypes[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return mime
	}
	return defaultMIME
}

// Artifact wraps file bytes without a routing decision.
func (c *Composer) Artifact(content []byte, ext string) *Artifact {
	return c.artifact(content, ext)
}

func (c *Composer) artifact(content []byte, ext string) *Artifact {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return &Artifact{
		Content:  content,
		Filename: fmt.Sprintf("resume-%s.%s", c.suffix(), ext),
		MIME:     MIMEType(ext),
	}
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
