package server

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// bareSession builds a session with no connection. Close and sendRaw handle
// the nil connection, so registry behavior can be tested without sockets.
func bareSession(id string, r *SessionRegistry) *Session {
	return &Session{
		ID:       id,
		done:     make(chan struct{}),
		registry: r,
		config:   DefaultSessionConfig(),
		logger:   testLogger(),
	}
}

func TestRegistryAddRemove(t *testing.T) {
	r := NewSessionRegistry(0, testLogger())

	s := bareSession("s1", r)
	if err := r.Add(s); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
	if got := r.Get("s1"); got != s {
		t.Errorf("Get returned %v, want the added session", got)
	}

	r.Remove("s1")
	if r.Count() != 0 {
		t.Errorf("Count = %d after remove, want 0", r.Count())
	}
	if r.Get("s1") != nil {
		t.Error("Get should return nil after remove")
	}

	// Removing again is a no-op.
	r.Remove("s1")
}

func TestRegistryMaxSessions(t *testing.T) {
	r := NewSessionRegistry(2, testLogger())

	if err := r.Add(bareSession("s1", r)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := r.Add(bareSession("s2", r)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	err := r.Add(bareSession("s3", r))
	if !errors.Is(err, ErrMaxSessionsReached) {
		t.Errorf("err = %v, want ErrMaxSessionsReached", err)
	}
	if r.Count() != 2 {
		t.Errorf("Count = %d, want 2", r.Count())
	}

	// Capacity frees up when a session leaves.
	r.Remove("s1")
	if err := r.Add(bareSession("s3", r)); err != nil {
		t.Errorf("Add after free slot failed: %v", err)
	}
}

func TestRegistryForEach(t *testing.T) {
	r := NewSessionRegistry(0, testLogger())
	for n := 0; n < 5; n++ {
		r.Add(bareSession(fmt.Sprintf("s%d", n), r))
	}

	visited := 0
	r.ForEach(func(s *Session) bool {
		visited++
		return true
	})
	if visited != 5 {
		t.Errorf("visited %d sessions, want 5", visited)
	}

	// Returning false stops the iteration.
	visited = 0
	r.ForEach(func(s *Session) bool {
		visited++
		return visited < 2
	})
	if visited != 2 {
		t.Errorf("visited %d sessions after early stop, want 2", visited)
	}
}

func TestRegistryShutdown(t *testing.T) {
	r := NewSessionRegistry(0, testLogger())

	sessions := make([]*Session, 3)
	for n := range sessions {
		sessions[n] = bareSession(fmt.Sprintf("s%d", n), r)
		r.Add(sessions[n])
	}

	r.Shutdown()
	if r.Count() != 0 {
		t.Errorf("Count = %d after shutdown, want 0", r.Count())
	}
	for _, s := range sessions {
		if !s.IsClosed() {
			t.Errorf("session %s not closed by shutdown", s.ID)
		}
	}
}

func TestRegistryStats(t *testing.T) {
	r := NewSessionRegistry(0, testLogger())

	r.Add(bareSession("s1", r))
	r.Add(bareSession("s2", r))
	r.Remove("s1")

	stats := r.Stats()
	if stats.Active != 1 {
		t.Errorf("Active = %d, want 1", stats.Active)
	}
	if stats.TotalCreated != 2 {
		t.Errorf("TotalCreated = %d, want 2", stats.TotalCreated)
	}
	if stats.TotalClosed != 1 {
		t.Errorf("TotalClosed = %d, want 1", stats.TotalClosed)
	}
	if stats.Peak != 2 {
		t.Errorf("Peak = %d, want 2", stats.Peak)
	}
}
