package profile

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// ErrAppendOnly is returned when an append-only field would be replaced
// outside of a revision.
var ErrAppendOnly = errors.New("field only accepts appends outside of revision")

// Store owns a Profile and enforces the per-field merge rules.
type Store struct {
	mu       sync.RWMutex
	p        Profile
	revising bool
}

func NewStore() *Store {
	return &Store{p: Profile{Mode: ModeIdle}}
}

// Get returns the current value of f, or an empty string when unset.
func (s *Store) Get(f Field) (string, error) {
	entry, err := lookup(f)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return *entry.ref(&s.p), nil
}

// Set stores value in f. Empty values are ignored so a field never goes back
// to unset. Append-only fields that already hold data are rejected unless a
// revision is in progress.
func (s *Store) Set(f Field, value string) error {
	entry, err := lookup(f)
	if err != nil {
		return err
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ref := entry.ref(&s.p)
	if entry.kind == KindAppend && !s.revising && *ref != "" && *ref != value {
		return fmt.Errorf("set %s: %w", f, ErrAppendOnly)
	}

	*ref = value
	return nil
}

// Append joins value onto f with sep. An unset field simply takes value.
func (s *Store) Append(f Field, value, sep string) error {
	entry, err := lookup(f)
	if err != nil {
		return err
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ref := entry.ref(&s.p)
	if *ref == "" {
		*ref = value
		return nil
	}
	*ref = *ref + sep + value
	return nil
}

// Apply merges value into f following the field's kind: overwrite fields are
// replaced, append fields grow with their default separator. While revising,
// append fields are replaced as well.
func (s *Store) Apply(f Field, value string) error {
	entry, err := lookup(f)
	if err != nil {
		return err
	}

	s.mu.RLock()
	revising := s.revising
	s.mu.RUnlock()

	if entry.kind == KindAppend && !revising {
		return s.Append(f, value, entry.sep)
	}
	return s.Set(f, value)
}

// SetLastQuestion records the last question asked. Unlike Set it accepts an
// empty value to clear the cursor.
func (s *Store) SetLastQuestion(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.LastQuestion = strings.TrimSpace(q)
}

func (s *Store) LastQuestion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p.LastQuestion
}

func (s *Store) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.p.Mode == "" {
		return ModeIdle
	}
	return s.p.Mode
}

// SetMode changes the conversation mode. Only the conversation router calls it.
func (s *Store) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Mode = m
}

// BeginRevision lets append fields be replaced until EndRevision.
func (s *Store) BeginRevision() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revising = true
}

func (s *Store) EndRevision() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revising = false
}

func (s *Store) Revising() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revising
}

// CompletionRatio is the share of tracked fields that are populated, 0..1.
func (s *Store) CompletionRatio() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filled := 0
	for _, f := range TrackedFields {
		if *fieldTable[f].ref(&s.p) != "" {
			filled++
		}
	}
	return float64(filled) / float64(len(TrackedFields))
}

// MissingEssential lists unset essential fields in question order.
func (s *Store) MissingEssential() []Field {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []Field
	for _, f := range EssentialFields {
		if *fieldTable[f].ref(&s.p) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

func (s *Store) IsReady() bool {
	return len(s.MissingEssential()) == 0
}

// Snapshot returns a copy of the profile.
func (s *Store) Snapshot() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p
}

// Args flattens the profile into a map keyed by field name, suitable for
// template rendering.
func (s *Store) Args() (map[string]any, error) {
	snapshot := s.Snapshot()

	args := make(map[string]any)
	if err := mapstructure.Decode(snapshot, &args); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	args["mode"] = string(snapshot.Mode)

	return args, nil
}

// Reset clears all fields and returns to idle.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = Profile{Mode: ModeIdle}
	s.revising = false
}
