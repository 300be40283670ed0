package board

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// User represents one connected participant. The display color is generated
// at connect time; LastActive tracks heartbeat responses and is monotonically
// non-decreasing while the user is connected.
type User struct {
	ID         string    `json:"id"`
	Color      string    `json:"color"`
	LastActive time.Time `json:"-"`
}

// UserStore is the authoritative mapping of connected-user identity to
// presence state. Removals emit a RosterChanged event once the store lock is
// released. Creation does not: the connect flow must deliver the new user
// their identity before anyone sees the updated roster, so the session
// handler broadcasts it after the reply.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*User

	notify func(Event)
	logger *slog.Logger

	// now is the clock; replaced in tests.
	now func() time.Time
}

// NewUserStore creates an empty user store.
func NewUserStore(logger *slog.Logger) *UserStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserStore{
		users:  make(map[string]*User),
		logger: logger.With("component", "users"),
		now:    time.Now,
	}
}

// SetNotify registers the event sink. Register once at startup.
func (s *UserStore) SetNotify(fn func(Event)) {
	s.notify = fn
}

func (s *UserStore) emit(ev Event) {
	if s.notify != nil {
		s.notify(ev)
	}
}

// Create generates an id and display color and inserts the user with
// last-active set to now.
func (s *UserStore) Create() User {
	s.mu.Lock()
	user := &User{
		ID:         uuid.NewString(),
		Color:      fmt.Sprintf("#%06x", rand.Intn(0x1000000)),
		LastActive: s.now(),
	}
	s.users[user.ID] = user
	created := *user
	count := len(s.users)
	s.mu.Unlock()

	s.logger.Debug("user created", "user_id", created.ID, "users", count)
	return created
}

// Touch refreshes last-active for an existing user. Unknown ids are a no-op.
// The timestamp never moves backwards.
func (s *UserStore) Touch(id string) {
	s.mu.Lock()
	if user, ok := s.users[id]; ok {
		if now := s.now(); now.After(user.LastActive) {
			user.LastActive = now
		}
	}
	s.mu.Unlock()
}

// Remove deletes the user. An absent id is reported with a NotFoundError,
// which is non-fatal to the caller.
func (s *UserStore) Remove(id string) error {
	s.mu.Lock()
	if _, ok := s.users[id]; !ok {
		s.mu.Unlock()
		return &NotFoundError{Kind: "user", ID: id}
	}
	delete(s.users, id)
	roster := s.listLocked()
	s.mu.Unlock()

	s.logger.Debug("user removed", "user_id", id, "users", len(roster))
	s.emit(RosterChanged{Users: roster})
	return nil
}

// SweepInactive removes and returns every user whose last-active predates
// now minus the timeout. Called by the presence monitor; a roster event is
// emitted only when someone was actually evicted.
func (s *UserStore) SweepInactive(timeout time.Duration) []User {
	s.mu.Lock()
	cutoff := s.now().Add(-timeout)

	var removed []User
	for id, user := range s.users {
		if user.LastActive.Before(cutoff) {
			removed = append(removed, *user)
			delete(s.users, id)
		}
	}
	var roster []User
	if len(removed) > 0 {
		roster = s.listLocked()
	}
	s.mu.Unlock()

	if len(removed) > 0 {
		s.logger.Info("swept inactive users", "removed", len(removed), "remaining", len(roster))
		s.emit(RosterChanged{Users: roster})
	}
	return removed
}

// List returns the current roster, ordered by id for stable output.
func (s *UserStore) List() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked()
}

func (s *UserStore) listLocked() []User {
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of connected users.
func (s *UserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
