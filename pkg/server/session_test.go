package server

import (
	"errors"
	"sync"
	"testing"

	"github.com/pinboard-go/pinboard/pkg/board"
	"github.com/pinboard-go/pinboard/pkg/protocol"
)

func TestSessionCloseIdempotent(t *testing.T) {
	r := NewSessionRegistry(0, testLogger())
	s := bareSession("s1", r)
	r.Add(s)

	s.Close()
	if !s.IsClosed() {
		t.Fatal("session should be closed")
	}
	if r.Count() != 0 {
		t.Errorf("Count = %d after close, want 0", r.Count())
	}

	// A second close must not panic or double-close the done channel.
	s.Close()

	select {
	case <-s.Done():
	default:
		t.Error("Done channel should be closed")
	}
}

func TestSessionCloseConcurrent(t *testing.T) {
	r := NewSessionRegistry(0, testLogger())
	s := bareSession("s1", r)
	r.Add(s)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		_ = i
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()

	if !s.IsClosed() {
		t.Error("session should be closed")
	}
}

func TestSessionCloseRemovesUser(t *testing.T) {
	r := NewSessionRegistry(0, testLogger())
	users := board.NewUserStore(testLogger())

	user := users.Create()
	s := bareSession("s1", r)
	s.users = users
	s.userID = user.ID
	r.Add(s)

	s.Close()
	if users.Count() != 0 {
		t.Errorf("user count = %d after close, want 0", users.Count())
	}
}

func TestSessionCloseToleratesSweptUser(t *testing.T) {
	r := NewSessionRegistry(0, testLogger())
	users := board.NewUserStore(testLogger())

	s := bareSession("s1", r)
	s.users = users
	s.userID = "already-swept"
	r.Add(s)

	// The presence sweep removed the user first; close must not fail.
	s.Close()
	if !s.IsClosed() {
		t.Error("session should be closed")
	}
}

func TestSessionSendRawErrors(t *testing.T) {
	r := NewSessionRegistry(0, testLogger())

	s := bareSession("s1", r)
	if err := s.sendRaw([]byte("{}")); !errors.Is(err, ErrNoConnection) {
		t.Errorf("err = %v on nil connection, want ErrNoConnection", err)
	}

	s.Close()
	if err := s.sendRaw([]byte("{}")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("err = %v on closed session, want ErrSessionClosed", err)
	}
	if err := s.send(&protocol.Message{Event: protocol.EventUserPing}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("send err = %v on closed session, want ErrSessionClosed", err)
	}
}

func TestSessionUserIDBeforeRegistration(t *testing.T) {
	s := bareSession("s1", NewSessionRegistry(0, testLogger()))
	if got := s.UserID(); got != "" {
		t.Errorf("UserID = %q before registration, want empty", got)
	}
}
