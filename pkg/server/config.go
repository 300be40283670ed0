package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionConfig holds per-connection configuration.
type SessionConfig struct {
	// ReadTimeout is the maximum silence on the socket before the connection
	// is considered dead. Must exceed the heartbeat interval.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// MaxMessageSize is the maximum size of an incoming WebSocket message.
	// Pin images ride in create messages, so this needs headroom.
	// Default: 4MB.
	MaxMessageSize int64
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 4 * 1024 * 1024,
	}
}

// Clone returns a copy of the SessionConfig.
func (c *SessionConfig) Clone() *SessionConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Config holds configuration for the pinboard server.
type Config struct {
	// Address is the address to listen on (e.g., ":3500").
	// Default: ":3500".
	Address string

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin.
	// Default: allows all origins (not recommended for production).
	CheckOrigin func(r *http.Request) bool

	// SessionConfig is the per-connection configuration.
	// Default: DefaultSessionConfig().
	SessionConfig *SessionConfig

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// MaxSessions is the maximum number of concurrent connections.
	// 0 means no limit. Default: 0.
	MaxSessions int

	// MaxPins caps the number of pins on the board; at the cap, the oldest
	// pin is evicted when a new one is created. 0 means unlimited. Default: 0.
	MaxPins int

	// BroadcastInterval is the coalescing window for high-frequency
	// broadcasts such as drag position changes. Default: 250ms.
	BroadcastInterval time.Duration

	// PingInterval is how often the presence monitor pings all sessions.
	// Default: 5 seconds.
	PingInterval time.Duration

	// PresenceTimeout is how long a user may go without a heartbeat response
	// before the presence sweep evicts them. Default: 10 seconds.
	PresenceTimeout time.Duration

	// MetricsRegistry receives the server's Prometheus collectors.
	// Default: a fresh registry, exposed via Server.MetricsRegistry().
	MetricsRegistry *prometheus.Registry
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":3500",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		CheckOrigin:       func(r *http.Request) bool { return true },
		SessionConfig:     DefaultSessionConfig(),
		ShutdownTimeout:   30 * time.Second,
		BroadcastInterval: 250 * time.Millisecond,
		PingInterval:      5 * time.Second,
		PresenceTimeout:   10 * time.Second,
	}
}

// withDefaults fills in defaults for any unset fields.
func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	defaults := DefaultConfig()
	if c.Address == "" {
		c.Address = defaults.Address
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = defaults.ReadBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = defaults.WriteBufferSize
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = defaults.CheckOrigin
	}
	if c.SessionConfig == nil {
		c.SessionConfig = defaults.SessionConfig
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if c.BroadcastInterval == 0 {
		c.BroadcastInterval = defaults.BroadcastInterval
	}
	if c.PingInterval == 0 {
		c.PingInterval = defaults.PingInterval
	}
	if c.PresenceTimeout == 0 {
		c.PresenceTimeout = defaults.PresenceTimeout
	}
	if c.MetricsRegistry == nil {
		c.MetricsRegistry = prometheus.NewRegistry()
	}
	return c
}
