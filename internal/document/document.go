// Package document extracts plain text from uploaded resume files.
package document

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrExtractionFailed  = errors.New("document text extraction failed")
)

// Parser turns file bytes into text.
type Parser interface {
	Parse(ctx context.Context, filename string, data []byte) (string, error)
}

// Extractor handles one family of formats.
type Extractor interface {
	Extract(data []byte) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(data []byte) (string, error)

func (f ExtractorFunc) Extract(data []byte) (string, error) {
	return f(data)
}

// Registry picks an extractor by file extension.
type Registry struct {
	extractors map[string]Extractor
	logger     *zap.Logger
}

// NewRegistry returns a registry with txt, md, pdf and docx support.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{extractors: make(map[string]Extractor), logger: logger}
	r.Register(ExtractorFunc(extractText), "txt", "text", "md", "markdown")
	r.Register(ExtractorFunc(extractPDF), "pdf")
	r.Register(ExtractorFunc(extractDOCX), "docx")
	return r
}

// Register binds e to the given extensions, replacing earlier bindings.
func (r *Registry) Register(e Extractor, exts ...string) {
	for _, ext := range exts {
		r.extractors[normalizeExt(ext)] = e
	}
}

// Formats lists the supported extensions.
func (r *Registry) Formats() []string {
	formats := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		formats = append(formats, ext)
	}
	sort.Strings(formats)
	return formats
}

func (r *Registry) Parse(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := normalizeExt(filepath.Ext(filename))
	extractor, ok := r.extractors[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	text, err := extractor.Extract(data)
	if err != nil {
		r.logger.Warn("document extraction failed", zap.String("filename", filename), zap.Error(err))
		return "", fmt.Errorf("%w: %s: %w", ErrExtractionFailed, filename, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s contains no text", ErrExtractionFailed, filename)
	}

	r.logger.Debug("document parsed",
		zap.String("filename", filename),
		zap.String("format", ext),
		zap.Int("length", len(text)),
	)
	return text, nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func extractText(data []byte) (string, error) {
	return strings.ToValidUTF8(string(data), ""), nil
}
