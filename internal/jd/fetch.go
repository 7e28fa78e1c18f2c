// Package jd loads job descriptions from files or web pages.
package jd

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spigell/resume-butler/internal/utils"

	"go.uber.org/zap"
)

const (
	userAgent      = "spigell/resume-butler"
	acceptEncoding = "gzip"
	maxBodyBytes   = 1 << 20
	maxAttempts    = 4
	initialBackoff = 500 * time.Millisecond
)

var (
	ErrEmpty     = errors.New("job description is empty")
	ErrRateLimit = errors.New("rate limited: max retries exceeded")
)

var sleep = utils.WaitFor

// Fetcher reads a job description from a local path or an http(s) URL.
type Fetcher struct {
	HTTPClient *http.Client
	UserAgent  string
	logger     *zap.Logger
}

func NewFetcher(logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
		UserAgent:  userAgent,
		logger:     logger,
	}
}

// Fetch returns the plain text of source. HTML content is reduced to its
// visible text.
func (f *Fetcher) Fetch(ctx context.Context, source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", ErrEmpty
	}

	var (
		text string
		err  error
	)
	if isURL(source) {
		text, err = f.fetchURL(ctx, source)
	} else {
		text, err = readFile(source)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmpty, source)
	}
	return text, nil
}

func (f *Fetcher) fetchURL(ctx context.Context, target string) (string, error) {
	backoff := initialBackoff

	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", f.UserAgent)
		req.Header.Set("Accept-Encoding", acceptEncoding)
		req.Header.Set("Accept", "text/html, text/plain;q=0.9, */*;q=0.5")

		resp, err := f.HTTPClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", target, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			if attempt >= maxAttempts {
				return "", fmt.Errorf("fetch %s: %w", target, ErrRateLimit)
			}
			f.logger.Info("job description source is rate limiting, waiting",
				zap.String("url", target),
				zap.Duration("backoff", backoff),
				zap.Int("attempt", attempt),
			)
			if err := sleep(ctx, backoff); err != nil {
				return "", err
			}
			backoff *= 2
			continue
		}

		text, err := readBody(resp)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", target, err)
		}

		f.logger.Debug("fetched job description",
			zap.String("url", target),
			zap.Int("length", len(text)),
		)
		return text, nil
	}
}

func readBody(resp *http.Response) (string, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", err
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return "", err
	}

	if isHTML(resp.Header.Get("Content-Type"), data) {
		return HTMLText(strings.NewReader(string(data)))
	}
	return string(data), nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read job description: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return HTMLText(strings.NewReader(string(data)))
	default:
		return string(data), nil
	}
}

func isURL(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isHTML(contentType string, data []byte) bool {
	if contentType != "" {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return strings.Contains(strings.ToLower(http.DetectContentType(data)), "html")
}
