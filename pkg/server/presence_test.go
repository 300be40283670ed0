package server

import (
	"testing"
	"time"

	"github.com/pinboard-go/pinboard/pkg/board"
	"github.com/pinboard-go/pinboard/pkg/protocol"
)

func TestPresenceBroadcastsHeartbeat(t *testing.T) {
	r := NewSessionRegistry(0, testLogger())
	c := NewCoordinator(r, 50*time.Millisecond, nil, testLogger())
	users := board.NewUserStore(testLogger())

	_, client := wiredSession(t, "a", r)

	m := NewPresenceMonitor(users, r, c, 20*time.Millisecond, time.Hour, nil, testLogger())
	m.Start()
	defer m.Stop()

	msg := readWire(t, client, 2*time.Second)
	if msg.Event != protocol.EventUserPing {
		t.Errorf("event = %q, want %q", msg.Event, protocol.EventUserPing)
	}
}

func TestPresenceEvictsSilentUser(t *testing.T) {
	r := NewSessionRegistry(0, testLogger())
	c := NewCoordinator(r, 50*time.Millisecond, nil, testLogger())
	users := board.NewUserStore(testLogger())

	user := users.Create()
	sess := bareSession("a", r)
	sess.users = users
	sess.userID = user.ID
	r.Add(sess)

	m := NewPresenceMonitor(users, r, c, 20*time.Millisecond, 60*time.Millisecond, nil, testLogger())
	m.Start()
	defer m.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for users.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("silent user was never evicted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Eviction also tears down the user's session.
	for !sess.IsClosed() {
		if time.Now().After(deadline) {
			t.Fatal("evicted user's session was never closed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if r.Count() != 0 {
		t.Errorf("registry count = %d after eviction, want 0", r.Count())
	}
}

func TestPresenceKeepsRespondingUser(t *testing.T) {
	r := NewSessionRegistry(0, testLogger())
	c := NewCoordinator(r, 50*time.Millisecond, nil, testLogger())
	users := board.NewUserStore(testLogger())

	user := users.Create()

	m := NewPresenceMonitor(users, r, c, 10*time.Millisecond, 50*time.Millisecond, nil, testLogger())
	m.Start()
	defer m.Stop()

	// Touch throughout several timeout periods, as a live client answering
	// each heartbeat would.
	stop := time.After(200 * time.Millisecond)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			users.Touch(user.ID)
		case <-stop:
			if users.Count() != 1 {
				t.Errorf("user count = %d, want the responsive user kept", users.Count())
			}
			return
		}
	}
}

func TestPresenceStopIdempotent(t *testing.T) {
	r := NewSessionRegistry(0, testLogger())
	c := NewCoordinator(r, 50*time.Millisecond, nil, testLogger())
	users := board.NewUserStore(testLogger())

	m := NewPresenceMonitor(users, r, c, 10*time.Millisecond, time.Hour, nil, testLogger())
	m.Start()
	m.Stop()
	m.Stop()
}
