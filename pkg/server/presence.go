package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pinboard-go/pinboard/pkg/board"
	"github.com/pinboard-go/pinboard/pkg/protocol"
)

// PresenceMonitor is the sole mechanism for detecting silently-dropped
// connections. On a fixed interval it broadcasts a heartbeat request to all
// sessions, then evicts every user whose last heartbeat response is older
// than the timeout. Eviction removes the user from the store (which
// broadcasts the updated roster) and tears down the user's session.
type PresenceMonitor struct {
	users    *board.UserStore
	registry *SessionRegistry
	coord    *Coordinator

	interval time.Duration
	timeout  time.Duration

	done     chan struct{}
	stopOnce sync.Once

	metrics *Metrics
	logger  *slog.Logger
}

// NewPresenceMonitor creates a monitor. Start must be called to begin
// ticking.
func NewPresenceMonitor(users *board.UserStore, registry *SessionRegistry, coord *Coordinator,
	interval, timeout time.Duration, metrics *Metrics, logger *slog.Logger) *PresenceMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PresenceMonitor{
		users:    users,
		registry: registry,
		coord:    coord,
		interval: interval,
		timeout:  timeout,
		done:     make(chan struct{}),
		metrics:  metrics,
		logger:   logger.With("component", "presence"),
	}
}

// Start launches the periodic heartbeat loop.
func (m *PresenceMonitor) Start() {
	go m.run()
}

// Stop halts the loop. Safe to call more than once.
func (m *PresenceMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *PresenceMonitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.tick()
		case <-m.done:
			return
		}
	}
}

// tick broadcasts a heartbeat request and sweeps users that never answered
// the previous ones.
func (m *PresenceMonitor) tick() {
	m.coord.Broadcast(&protocol.Message{Event: protocol.EventUserPing})

	removed := m.users.SweepInactive(m.timeout)
	if len(removed) == 0 {
		return
	}

	if m.metrics != nil {
		m.metrics.sweepEvictions.Add(float64(len(removed)))
	}
	for _, user := range removed {
		m.logger.Info("user timed out", "user_id", user.ID, "last_active", user.LastActive)
	}
	m.closeSessionsFor(removed)
}

// closeSessionsFor tears down the sessions belonging to evicted users. The
// user records are already gone, so session close will find nothing to
// remove; it only releases the connection and the broadcast slot.
func (m *PresenceMonitor) closeSessionsFor(removed []board.User) {
	evicted := make(map[string]bool, len(removed))
	for _, u := range removed {
		evicted[u.ID] = true
	}

	var stale []*Session
	m.registry.ForEach(func(s *Session) bool {
		if evicted[s.UserID()] {
			stale = append(stale, s)
		}
		return true
	})
	for _, s := range stale {
		s.Close()
	}
}
