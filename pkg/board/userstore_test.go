package board

import (
	"errors"
	"regexp"
	"testing"
	"time"
)

func TestUserStoreCreate(t *testing.T) {
	s := NewUserStore(testLogger())
	rec := &eventRecorder{}
	s.SetNotify(rec.sink)

	user := s.Create()
	if user.ID == "" {
		t.Error("user should be assigned an id")
	}
	if ok, _ := regexp.MatchString(`^#[0-9a-f]{6}$`, user.Color); !ok {
		t.Errorf("Color = %q, want #rrggbb", user.Color)
	}
	if user.LastActive.IsZero() {
		t.Error("LastActive should be initialized")
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d, want 1", s.Count())
	}
	// Creation leaves the broadcast to the connect flow.
	if len(rec.all()) != 0 {
		t.Errorf("Create emitted %d events, want 0", len(rec.all()))
	}
}

func TestUserStoreTouch(t *testing.T) {
	s := NewUserStore(testLogger())

	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	user := s.Create()

	clock = clock.Add(5 * time.Second)
	s.Touch(user.ID)
	if got := s.List()[0].LastActive; !got.Equal(clock) {
		t.Errorf("LastActive = %v, want %v", got, clock)
	}

	// A stale clock reading never moves the timestamp backwards.
	clock = clock.Add(-time.Minute)
	s.Touch(user.ID)
	want := time.Date(2024, 6, 1, 12, 0, 5, 0, time.UTC)
	if got := s.List()[0].LastActive; !got.Equal(want) {
		t.Errorf("LastActive = %v after stale touch, want %v", got, want)
	}

	// Unknown ids are a no-op.
	s.Touch("missing")
}

func TestUserStoreRemove(t *testing.T) {
	s := NewUserStore(testLogger())
	rec := &eventRecorder{}

	a := s.Create()
	bu := s.Create()
	s.SetNotify(rec.sink)

	if err := s.Remove(a.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d, want 1", s.Count())
	}

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	roster, ok := events[0].(RosterChanged)
	if !ok {
		t.Fatalf("event = %T, want RosterChanged", events[0])
	}
	if len(roster.Users) != 1 || roster.Users[0].ID != bu.ID {
		t.Errorf("roster = %v, want only %s", roster.Users, bu.ID)
	}
}

func TestUserStoreRemoveUnknown(t *testing.T) {
	s := NewUserStore(testLogger())
	rec := &eventRecorder{}
	s.SetNotify(rec.sink)

	err := s.Remove("missing")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if len(rec.all()) != 0 {
		t.Error("failed remove must not emit events")
	}
}

func TestUserStoreSweepInactive(t *testing.T) {
	s := NewUserStore(testLogger())
	rec := &eventRecorder{}

	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	stale := s.Create()
	clock = clock.Add(30 * time.Second)
	fresh := s.Create()
	s.SetNotify(rec.sink)

	removed := s.SweepInactive(10 * time.Second)
	if len(removed) != 1 || removed[0].ID != stale.ID {
		t.Fatalf("removed = %v, want only %s", removed, stale.ID)
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d, want 1", s.Count())
	}

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	roster := events[0].(RosterChanged)
	if len(roster.Users) != 1 || roster.Users[0].ID != fresh.ID {
		t.Errorf("roster = %v, want only %s", roster.Users, fresh.ID)
	}
}

func TestUserStoreSweepInactiveNoEvictions(t *testing.T) {
	s := NewUserStore(testLogger())
	rec := &eventRecorder{}
	s.Create()
	s.SetNotify(rec.sink)

	removed := s.SweepInactive(time.Hour)
	if len(removed) != 0 {
		t.Errorf("removed = %v, want nothing", removed)
	}
	if len(rec.all()) != 0 {
		t.Error("a sweep with no evictions must not emit events")
	}
}

func TestUserStoreListOrderedByID(t *testing.T) {
	s := NewUserStore(testLogger())
	for i := 0; i < 10; i++ {
		_ = i
		s.Create()
	}

	list := s.List()
	for n := 1; n < len(list); n++ {
		if list[n].ID < list[n-1].ID {
			t.Fatalf("roster not ordered by id at position %d", n)
		}
	}
}
