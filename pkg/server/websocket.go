package server

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pinboard-go/pinboard/pkg/board"
	"github.com/pinboard-go/pinboard/pkg/protocol"
)

// ReadLoop continuously reads client messages from the WebSocket connection
// and dispatches them. Messages from one session are handled strictly in
// arrival order. The loop blocks until the connection closes or errors.
func (s *Session) ReadLoop() {
	defer s.Close()

	s.conn.SetReadLimit(s.config.MaxMessageSize)

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		msg, err := protocol.ParseClient(data)
		if err != nil {
			s.logger.Debug("malformed message", "error", err)
			s.sendError(400, "malformed message")
			continue
		}

		if s.metrics != nil {
			s.metrics.messagesReceived.WithLabelValues(msg.Event).Inc()
		}
		s.handleMessage(msg)
	}
}

// handleMessage dispatches one client request. Store errors are reported only
// to this session; they never interrupt it or any other session.
func (s *Session) handleMessage(msg *protocol.Message) {
	switch msg.Event {
	case protocol.EventUserConnect:
		s.handleUserConnect()

	case protocol.EventUserDisconnect:
		// Explicit disconnect notice. Teardown removes the user and
		// broadcasts the updated roster.
		s.Close()

	case protocol.EventUserPingResponse:
		s.handlePingResponse(msg)

	case protocol.EventGetUsers:
		s.coord.SendTo(s, &protocol.Message{
			Event: protocol.EventUsersChanged,
			Users: s.users.List(),
		})

	case protocol.EventCreatePin:
		s.handleCreatePin(msg)

	case protocol.EventPinChanging:
		s.handlePinChanging(msg)

	case protocol.EventPinsReordered:
		s.handlePinsReordered(msg)

	case protocol.EventPinsReset:
		s.handlePinsReset()
	}
}

// handleUserConnect transitions the session from Unregistered to Active:
// it creates the user, replies with the caller's identity plus a full pin
// snapshot, then broadcasts the updated roster.
func (s *Session) handleUserConnect() {
	if !s.state.CompareAndSwap(stateUnregistered, stateActive) {
		s.sendError(400, ErrAlreadyRegistered.Error())
		return
	}

	user := s.users.Create()
	s.mu.Lock()
	s.userID = user.ID
	s.mu.Unlock()

	s.coord.SendTo(s, &protocol.Message{
		Event: protocol.EventUserConnect,
		User:  &user,
		Pins:  s.pins.Snapshot(),
	})
	s.coord.Broadcast(&protocol.Message{
		Event: protocol.EventUsersChanged,
		Users: s.users.List(),
	})

	s.logger.Info("user registered", "user_id", user.ID)
}

// handlePingResponse refreshes the user's last-active timestamp.
func (s *Session) handlePingResponse(msg *protocol.Message) {
	userID := s.UserID()
	if userID == "" {
		userID = msg.UserID
	}
	if userID != "" {
		s.users.Touch(userID)
	}
}

func (s *Session) handleCreatePin(msg *protocol.Message) {
	if !s.requireActive() {
		return
	}
	if msg.Pin == nil {
		s.sendError(400, "missing pin")
		return
	}

	if _, err := s.pins.Create(msg.Pin.CreateRequest(s.UserID())); err != nil {
		s.replyStoreError(err)
	}
}

func (s *Session) handlePinChanging(msg *protocol.Message) {
	if !s.requireActive() {
		return
	}
	if msg.Pin == nil || msg.Pin.ID == "" {
		s.sendError(400, "missing pin id")
		return
	}

	if _, err := s.pins.Update(msg.Pin.ID, msg.Pin.Update()); err != nil {
		s.replyStoreError(err)
	}
}

func (s *Session) handlePinsReordered(msg *protocol.Message) {
	if !s.requireActive() {
		return
	}
	if len(msg.Order) == 0 {
		s.sendError(400, "missing order")
		return
	}

	s.pins.Reorder(msg.Order)
}

func (s *Session) handlePinsReset() {
	if !s.requireActive() {
		return
	}
	s.pins.Reset()
}

// requireActive rejects board requests from sessions that never registered.
func (s *Session) requireActive() bool {
	if s.state.Load() != stateActive {
		s.sendError(400, ErrNotRegistered.Error())
		return false
	}
	return true
}

// replyStoreError maps a store error onto an error notification for the
// originating session.
func (s *Session) replyStoreError(err error) {
	var nf *board.NotFoundError
	if errors.As(err, &nf) {
		s.sendError(404, err.Error())
		return
	}
	s.sendError(400, err.Error())
}
