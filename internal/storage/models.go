package storage

import (
	"errors"
	"time"

	"github.com/spigell/resume-butler/internal/ai"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// SessionRecord is a stored conversation.
type SessionRecord struct {
	ID        string
	CreatedAt time.Time
	// ClosedAt is zero while the session is open.
	ClosedAt time.Time
}

// TurnRecord is one stored message of a conversation.
type TurnRecord struct {
	ID        string
	SessionID string
	ai.Turn
	CreatedAt time.Time
}
