// Package server implements the authoritative state and real-time fan-out
// engine for the shared pinboard: the in-memory pin and user stores, the
// per-connection session handlers, the broadcast coordinator with coalescing,
// and the presence heartbeat that evicts disconnected users.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pinboard-go/pinboard/pkg/board"
	"github.com/pinboard-go/pinboard/pkg/protocol"
)

// Server is the HTTP/WebSocket server for the pinboard.
type Server struct {
	config *Config

	pins     *board.PinStore
	users    *board.UserStore
	registry *SessionRegistry
	coord    *Coordinator
	presence *PresenceMonitor

	upgrader   websocket.Upgrader
	handler    http.Handler // non-WebSocket requests
	httpServer *http.Server

	metrics *Metrics
	logger  *slog.Logger
}

// New creates a server with all core components wired together. The domain
// event sinks are registered here, once, before anything is shared with a
// session.
func New(config *Config) *Server {
	config = config.withDefaults()

	logger := slog.Default().With("component", "server")

	s := &Server{
		config:  config,
		metrics: newMetrics(config.MetricsRegistry),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger,
	}

	s.pins = board.NewPinStore(config.MaxPins, slog.Default())
	s.users = board.NewUserStore(slog.Default())
	s.registry = NewSessionRegistry(config.MaxSessions, slog.Default())
	s.coord = NewCoordinator(s.registry, config.BroadcastInterval, s.metrics, slog.Default())
	s.presence = NewPresenceMonitor(s.users, s.registry, s.coord,
		config.PingInterval, config.PresenceTimeout, s.metrics, slog.Default())

	s.pins.SetNotify(s.handleBoardEvent)
	s.users.SetNotify(s.handleBoardEvent)

	return s
}

// handleBoardEvent fans a domain event out to the right audience. Discrete
// structural events go out immediately so "this pin exists" always precedes
// any later move of it; only steady-state pin changes are coalesced.
func (s *Server) handleBoardEvent(ev board.Event) {
	switch e := ev.(type) {
	case board.PinCreated:
		// The creation broadcast is the one message that carries the image.
		s.coord.Broadcast(&protocol.Message{
			Event:   protocol.EventPinCreated,
			Pin:     protocol.FromPin(e.Pin),
			Removed: e.Removed,
		})
		s.metrics.pins.Set(float64(s.pins.Count()))

	case board.PinChanged:
		s.coord.BroadcastCoalesced(protocol.EventPinChanged, &protocol.Message{
			Event: protocol.EventPinChanged,
			Pin:   protocol.FromPin(e.Pin.Public()),
		})

	case board.PinsReordered:
		pins := make([]board.Pin, len(e.Pins))
		for i, p := range e.Pins {
			pins[i] = p.Public()
		}
		s.coord.Broadcast(&protocol.Message{
			Event: protocol.EventPinsChanged,
			Pins:  pins,
		})

	case board.PinsReset:
		s.coord.Broadcast(&protocol.Message{Event: protocol.EventPinsReset})
		s.metrics.pins.Set(0)

	case board.RosterChanged:
		s.coord.Broadcast(&protocol.Message{
			Event: protocol.EventUsersChanged,
			Users: e.Users,
		})
		s.metrics.activeUsers.Set(float64(len(e.Users)))
	}
}

// SetHandler sets the HTTP handler for non-WebSocket requests (static files,
// metrics, health). The core never depends on it.
func (s *Server) SetHandler(h http.Handler) {
	s.handler = h
}

// Handler returns an http.Handler for mounting in external routers.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.ServeHTTP)
}

// WebSocketHandler returns an http.Handler for WebSocket upgrade only.
func (s *Server) WebSocketHandler() http.Handler {
	return http.HandlerFunc(s.HandleWebSocket)
}

// ServeHTTP dispatches the board WebSocket endpoint and delegates everything
// else to the configured handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/ws" {
		s.HandleWebSocket(w, r)
		return
	}

	handler := s.handler
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	handler.ServeHTTP(w, r)
}

// HandleWebSocket upgrades the connection and starts a session for it. One
// reader goroutine per connection keeps each session's requests ordered.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	session := newSession(conn, s)
	if err := s.registry.Add(session); err != nil {
		s.logger.Warn("connection rejected", "error", err)
		conn.Close()
		return
	}
	s.metrics.activeSessions.Inc()

	go session.ReadLoop()
}

// Start launches the presence monitor. Call before serving connections.
func (s *Server) Start() {
	s.presence.Start()
}

// Run starts the server and blocks until a shutdown signal or listen error.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.Start()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops the presence monitor, pending broadcasts, all
// sessions, and the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.presence.Stop()
	s.coord.Stop()
	s.registry.Shutdown()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Pins returns the pin store.
func (s *Server) Pins() *board.PinStore {
	return s.pins
}

// Users returns the user store.
func (s *Server) Users() *board.UserStore {
	return s.users
}

// Sessions returns the session registry.
func (s *Server) Sessions() *SessionRegistry {
	return s.registry
}

// MetricsRegistry returns the Prometheus registry holding the board
// collectors, for mounting a metrics endpoint.
func (s *Server) MetricsRegistry() *prometheus.Registry {
	return s.config.MetricsRegistry
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}
