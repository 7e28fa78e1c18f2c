package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spigell/resume-butler/internal/ai"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) == 0 || len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	closed := created.Add(time.Hour)
	s.now = func() time.Time { return closed }

	if err := s.OpenSession(ctx, "s1", created); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if err := s.OpenSession(ctx, "s1", created.Add(time.Minute)); err != nil {
		t.Fatalf("reopening must be a no-op: %v", err)
	}

	rec, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !rec.CreatedAt.Equal(created) || !rec.ClosedAt.IsZero() {
		t.Fatalf("unexpected record %+v", rec)
	}

	if err := s.CloseSession(ctx, "s1"); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	rec, err = s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !rec.ClosedAt.Equal(closed) {
		t.Fatalf("expected closed at %v, got %v", closed, rec.ClosedAt)
	}

	if err := s.CloseSession(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("closing twice: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTurns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.OpenSession(ctx, "s1", time.Now()); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	turns := []ai.Turn{
		{Role: ai.RoleUser, Content: "My name is Jane"},
		{Role: ai.RoleAssistant, Author: "analyst", Content: "Nice to meet you, Jane."},
		{Role: ai.RoleUser, Content: "export as docx"},
	}
	for _, turn := range turns {
		if err := s.AppendTurn(ctx, "s1", turn); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}

	got, err := s.Turns(ctx, "s1")
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(got) != len(turns) {
		t.Fatalf("expected %d turns, got %d", len(turns), len(got))
	}
	for i, turn := range turns {
		if got[i].Turn != turn || got[i].SessionID != "s1" || got[i].ID == "" {
			t.Fatalf("turn %d: expected %+v, got %+v", i, turn, got[i])
		}
	}

	if err := s.AppendTurn(ctx, "missing", turns[0]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown session, got %v", err)
	}
	if _, err := s.Turns(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteSessionRemovesTurns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.OpenSession(ctx, "s1", time.Now()); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if err := s.AppendTurn(ctx, "s1", ai.Turn{Role: ai.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if err := s.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM turns`).Scan(&n); err != nil {
		t.Fatalf("count turns: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected turns to be removed, %d left", n)
	}
	if err := s.DeleteSession(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
