// Package session keeps per-conversation state and exposes the assistant
// operations hosts call.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spigell/resume-butler/internal/ai"
	"github.com/spigell/resume-butler/internal/logger"
	"github.com/spigell/resume-butler/internal/profile"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultHistoryLimit = 20

var ErrNotFound = errors.New("session not found")

// Recorder persists session transcripts.
type Recorder interface {
	OpenSession(ctx context.Context, id string, createdAt time.Time) error
	AppendTurn(ctx context.Context, sessionID string, turn ai.Turn) error
	CloseSession(ctx context.Context, id string) error
}

// Session is one conversation. Operations that touch the profile hold mu,
// so a session handles one message at a time.
type Session struct {
	ID        string
	CreatedAt time.Time
	Store     *profile.Store

	mu sync.Mutex

	histMu  sync.RWMutex
	history []ai.Turn
	limit   int

	recorder Recorder
	logger   *zap.Logger
}

// History returns a copy of the recent turns, oldest first.
func (s *Session) History() []ai.Turn {
	s.histMu.RLock()
	defer s.histMu.RUnlock()
	out := make([]ai.Turn, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) record(ctx context.Context, turns ...ai.Turn) {
	s.histMu.Lock()
	s.history = append(s.history, turns...)
	if over := len(s.history) - s.limit; over > 0 {
		s.history = append([]ai.Turn(nil), s.history[over:]...)
	}
	s.histMu.Unlock()

	if s.recorder == nil {
		return
	}
	for _, t := range turns {
		if err := s.recorder.AppendTurn(ctx, s.ID, t); err != nil {
			s.logger.Warn("failed to record turn", zap.String("role", t.Role), zap.Error(err))
		}
	}
}

// Manager owns the live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	historyLimit int
	recorder     Recorder
	logger       *zap.Logger
	now          func() time.Time
}

// NewManager creates a manager. recorder may be nil.
func NewManager(historyLimit int, recorder Recorder, log *zap.Logger) *Manager {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		sessions:     make(map[string]*Session),
		historyLimit: historyLimit,
		recorder:     recorder,
		logger:       log,
		now:          time.Now,
	}
}

// Create starts a session with an empty profile.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	sess := &Session{
		ID:        id,
		CreatedAt: m.now(),
		Store:     profile.NewStore(),
		limit:     m.historyLimit,
		recorder:  m.recorder,
		logger:    logger.WithSession(m.logger, id),
	}

	if m.recorder != nil {
		if err := m.recorder.OpenSession(ctx, id, sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("record session %s: %w", id, err)
		}
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	sess.logger.Info("session created")
	return sess, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

// Close forgets a session. Its transcript stays in the recorder.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if m.recorder != nil {
		if err := m.recorder.CloseSession(ctx, id); err != nil {
			sess.logger.Warn("failed to record session close", zap.Error(err))
		}
	}

	sess.logger.Info("session closed", zap.Int("turns", len(sess.History())))
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
