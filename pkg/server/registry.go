package server

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// SessionRegistry tracks all open sessions. It is the audience set for
// broadcasts: session teardown removes the session here, so a disconnected
// recipient simply stops receiving messages.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	maxSessions int

	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64
	peak         int

	logger *slog.Logger
}

// NewSessionRegistry creates an empty registry. maxSessions of 0 means no
// limit.
func NewSessionRegistry(maxSessions int, logger *slog.Logger) *SessionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRegistry{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		logger:      logger.With("component", "sessions"),
	}
}

// Add registers a session. Returns ErrMaxSessionsReached at the limit.
func (r *SessionRegistry) Add(s *Session) error {
	r.mu.Lock()
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		return ErrMaxSessionsReached
	}
	r.sessions[s.ID] = s
	if len(r.sessions) > r.peak {
		r.peak = len(r.sessions)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	r.totalCreated.Add(1)
	r.logger.Info("session opened", "session_id", s.ID, "active_sessions", count)
	return nil
}

// Remove deregisters a session by id. A no-op for unknown ids, so session
// close and registry-initiated teardown can race safely.
func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	_, existed := r.sessions[id]
	delete(r.sessions, id)
	count := len(r.sessions)
	r.mu.Unlock()

	if existed {
		r.totalClosed.Add(1)
		r.logger.Info("session removed", "session_id", id, "active_sessions", count)
	}
}

// Get retrieves a session by id, or nil.
func (r *SessionRegistry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Count returns the number of registered sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ForEach iterates over a snapshot of all sessions. The snapshot is taken
// under the read lock; the callback runs without it, so it may send or close.
func (r *SessionRegistry) ForEach(fn func(*Session) bool) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		if !fn(s) {
			break
		}
	}
}

// Shutdown closes all sessions concurrently and empties the registry.
func (r *SessionRegistry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close()
		}(s)
	}
	wg.Wait()

	r.totalClosed.Add(uint64(len(sessions)))
	r.logger.Info("registry shutdown", "closed_sessions", len(sessions))
}

// RegistryStats contains aggregated session statistics.
type RegistryStats struct {
	Active       int
	TotalCreated uint64
	TotalClosed  uint64
	Peak         int
}

// Stats returns aggregated session statistics.
func (r *SessionRegistry) Stats() RegistryStats {
	r.mu.RLock()
	active := len(r.sessions)
	peak := r.peak
	r.mu.RUnlock()

	return RegistryStats{
		Active:       active,
		TotalCreated: r.totalCreated.Load(),
		TotalClosed:  r.totalClosed.Load(),
		Peak:         peak,
	}
}
