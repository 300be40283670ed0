package server

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pinboard-go/pinboard/pkg/board"
	"github.com/pinboard-go/pinboard/pkg/protocol"
)

// Session lifecycle states.
const (
	// stateUnregistered is the state before the client's connect request.
	stateUnregistered int32 = iota

	// stateActive is the state after registration; the session handles board
	// requests for its lifetime.
	stateActive

	// stateClosed is terminal. Entering it is idempotent.
	stateClosed
)

// Session is the server-side state for one client connection, from connect to
// close. It holds the connection handle plus references to the stores and the
// coordinator; it keeps no private copy of authoritative board state.
type Session struct {
	ID        string
	CreatedAt time.Time

	conn    *websocket.Conn
	writeMu sync.Mutex // serializes conn writes
	state   atomic.Int32
	done    chan struct{}

	mu     sync.Mutex // guards userID
	userID string

	pins     *board.PinStore
	users    *board.UserStore
	coord    *Coordinator
	registry *SessionRegistry
	config   *SessionConfig
	metrics  *Metrics
	logger   *slog.Logger
}

// newSession creates a session for the given connection.
func newSession(conn *websocket.Conn, srv *Server) *Session {
	id := uuid.NewString()
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		conn:      conn,
		done:      make(chan struct{}),
		pins:      srv.pins,
		users:     srv.users,
		coord:     srv.coord,
		registry:  srv.registry,
		config:    srv.config.SessionConfig,
		metrics:   srv.metrics,
		logger:    srv.logger.With("session_id", id),
	}
}

// UserID returns the registered user id, or "" before registration.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// IsClosed reports whether the session has been torn down.
func (s *Session) IsClosed() bool {
	return s.state.Load() == stateClosed
}

// Close tears the session down: it closes the connection, removes the
// associated user (which broadcasts the updated roster), and deregisters the
// session from the broadcast audience. A second close is a no-op.
func (s *Session) Close() {
	if s.state.Swap(stateClosed) == stateClosed {
		return
	}
	close(s.done)

	if s.conn != nil {
		s.conn.Close()
	}

	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()

	if userID != "" {
		if err := s.users.Remove(userID); err != nil {
			var nf *board.NotFoundError
			if !errors.As(err, &nf) {
				s.logger.Warn("user removal failed", "user_id", userID, "error", err)
			}
		}
	}

	s.registry.Remove(s.ID)
	if s.metrics != nil {
		s.metrics.activeSessions.Dec()
	}
	s.logger.Info("session closed", "user_id", userID)
}

// Done returns a channel closed when the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// send encodes and writes one message to this session's connection.
func (s *Session) send(msg *protocol.Message) error {
	data, err := msg.Marshal()
	if err != nil {
		return err
	}
	return s.sendRaw(data)
}

// sendRaw writes raw bytes with the configured write deadline. Writes are
// serialized; a closed session rejects the write without touching the
// connection.
func (s *Session) sendRaw(data []byte) error {
	if s.IsClosed() {
		return ErrSessionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.conn == nil {
		return ErrNoConnection
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// sendError reports a request failure to this session only. Other sessions
// observe no effect.
func (s *Session) sendError(code int, msg string) {
	if err := s.send(protocol.NewError(code, msg)); err != nil && err != ErrSessionClosed && err != ErrNoConnection {
		s.logger.Debug("error notification failed", "error", err)
	}
}
