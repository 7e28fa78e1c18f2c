// Package server exposes the assistant over HTTP and MCP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/resume-butler/internal/ai"
	"github.com/spigell/resume-butler/internal/document"
	"github.com/spigell/resume-butler/internal/export"
	"github.com/spigell/resume-butler/internal/session"
	"github.com/spigell/resume-butler/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxBodySize = 10 << 20

// Transcripts reads stored conversations.
type Transcripts interface {
	Turns(ctx context.Context, sessionID string) ([]storage.TurnRecord, error)
}

// JobFetcher loads a job description from a URL.
type JobFetcher interface {
	Fetch(ctx context.Context, source string) (string, error)
}

// Deps holds what the hosts need.
type Deps struct {
	Sessions  *session.Manager
	Assistant *session.Assistant
	// Transcripts is optional; without it the in-memory history is served.
	Transcripts Transcripts
	// Jobs is optional; without it job descriptions must be sent as text.
	Jobs JobFetcher
	// Token enables bearer authentication when set.
	Token  string
	Logger *zap.Logger
}

type messageRequest struct {
	Text string `json:"text"`
}

type uploadRequest struct {
	Filename string `json:"filename"`
	// Content is the file, base64 encoded.
	Content []byte `json:"content"`
}

type jobRequest struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewHandler builds the HTTP API.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/sessions", handleCreateSession(deps))
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Delete("/", handleCloseSession(deps))
			r.Post("/messages", withSession(deps, handleMessage(deps)))
			r.Get("/status", withSession(deps, handleStatus(deps)))
			r.Post("/resume", withSession(deps, handleUpload(deps)))
			r.Put("/job-description", withSession(deps, handleJobDescription(deps)))
			r.Post("/match", withSession(deps, handleMatch(deps)))
			r.Get("/export", withSession(deps, handleExport(deps)))
			r.Get("/transcript", withSession(deps, handleTranscript(deps)))
		})
	})

	return r
}

// BearerAuth rejects requests without the expected bearer token.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

func withSession(deps Deps, next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deps.Sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, sess)
	}
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": deps.Sessions.Len()})
	}
}

func handleCreateSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deps.Sessions.Create(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sessionResponse{ID: sess.ID, CreatedAt: sess.CreatedAt.UTC()})
	}
}

func handleCloseSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Sessions.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleMessage(deps Deps) sessionHandler {
	return func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		var req messageRequest
		if !decodeBody(w, r, &req) {
			return
		}

		resp, err := deps.Assistant.ProcessMessage(r.Context(), sess, req.Text)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleStatus(deps Deps) sessionHandler {
	return func(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
		writeJSON(w, http.StatusOK, deps.Assistant.CompletionStatus(sess))
	}
}

func handleUpload(deps Deps) sessionHandler {
	return func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		var req uploadRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Filename == "" || len(req.Content) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "filename and content are required")
			return
		}

		status, err := deps.Assistant.Upload(r.Context(), sess, req.Filename, req.Content)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func handleJobDescription(deps Deps) sessionHandler {
	return func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		var req jobRequest
		if !decodeBody(w, r, &req) {
			return
		}

		text := req.Text
		if text == "" && req.URL != "" {
			if deps.Jobs == nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "fetching job descriptions by url is disabled")
				return
			}
			fetched, err := deps.Jobs.Fetch(r.Context(), req.URL)
			if err != nil {
				httpError(w, http.StatusBadGateway, "api_error", "failed to fetch job description: %v", err)
				return
			}
			text = fetched
		}

		if err := deps.Assistant.SetJobDescription(sess, text); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, deps.Assistant.CompletionStatus(sess))
	}
}

func handleMatch(deps Deps) sessionHandler {
	return func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		resp, err := deps.Assistant.Match(r.Context(), sess)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleExport(deps Deps) sessionHandler {
	return func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = string(export.FormatDOCX)
		}

		artifact, err := deps.Assistant.Export(r.Context(), sess, format)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", artifact.MIME)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(artifact.Content)
	}
}

func handleTranscript(deps Deps) sessionHandler {
	return func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		if deps.Transcripts == nil {
			writeJSON(w, http.StatusOK, sess.History())
			return
		}

		records, err := deps.Transcripts.Turns(r.Context(), sess.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		turns := make([]ai.Turn, 0, len(records))
		for _, rec := range records {
			turns = append(turns, rec.Turn)
		}
		writeJSON(w, http.StatusOK, turns)
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
	case errors.Is(err, document.ErrUnsupportedFormat), errors.Is(err, export.ErrUnsupportedFormat):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, document.ErrExtractionFailed):
		httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%v", err)
	case errors.Is(err, session.ErrMissingResume), errors.Is(err, session.ErrMissingJobDescription), errors.Is(err, export.ErrEmptyContent):
		httpError(w, http.StatusConflict, "conflict_error", "%v", err)
	case errors.Is(err, ai.ErrServiceUnavailable):
		httpError(w, http.StatusServiceUnavailable, "api_error", "%v", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpError(w, http.StatusGatewayTimeout, "api_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
