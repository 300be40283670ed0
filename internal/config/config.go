// Package config loads the pinboard.json deployment configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	// FileName is the name of the configuration file.
	FileName = "pinboard.json"

	// DefaultPort is the default server port.
	DefaultPort = 3500

	// DefaultBroadcastIntervalMs is the default coalescing window for
	// high-frequency pin-change broadcasts, in milliseconds.
	DefaultBroadcastIntervalMs = 250

	// DefaultPingIntervalMs is the default presence heartbeat interval.
	DefaultPingIntervalMs = 5000

	// DefaultPresenceTimeoutMs is the default heartbeat timeout after which
	// a silent user is evicted.
	DefaultPresenceTimeoutMs = 10000
)

// Config represents the complete pinboard.json configuration.
type Config struct {
	// Name is the deployment name, used as the page title.
	Name string `json:"name,omitempty"`

	// Host is the listen host. Empty means all interfaces.
	Host string `json:"host,omitempty"`

	// Port is the listen port.
	Port int `json:"port,omitempty"`

	// StaticDir is the directory of front-end assets served at /.
	// Empty disables static serving.
	StaticDir string `json:"staticDir,omitempty"`

	// MaxPins caps the board size; the oldest pin is evicted at the cap.
	// 0 means unlimited.
	MaxPins int `json:"maxPins,omitempty"`

	// MaxSessions caps concurrent connections. 0 means unlimited.
	MaxSessions int `json:"maxSessions,omitempty"`

	// BroadcastIntervalMs is the coalescing window for pin-change broadcasts.
	BroadcastIntervalMs int `json:"broadcastIntervalMs,omitempty"`

	// PingIntervalMs is the presence heartbeat interval.
	PingIntervalMs int `json:"pingIntervalMs,omitempty"`

	// PresenceTimeoutMs is the heartbeat timeout before eviction.
	PresenceTimeoutMs int `json:"presenceTimeoutMs,omitempty"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `json:"logLevel,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Name:                "Pinboard",
		Port:                DefaultPort,
		BroadcastIntervalMs: DefaultBroadcastIntervalMs,
		PingIntervalMs:      DefaultPingIntervalMs,
		PresenceTimeoutMs:   DefaultPresenceTimeoutMs,
		LogLevel:            "info",
	}
}

// Load reads the configuration file at path and merges it over the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.BroadcastIntervalMs < 0 {
		return fmt.Errorf("config: invalid broadcastIntervalMs %d", c.BroadcastIntervalMs)
	}
	if c.PingIntervalMs <= 0 {
		return fmt.Errorf("config: invalid pingIntervalMs %d", c.PingIntervalMs)
	}
	if c.PresenceTimeoutMs <= 0 {
		return fmt.Errorf("config: invalid presenceTimeoutMs %d", c.PresenceTimeoutMs)
	}
	if c.MaxPins < 0 {
		return fmt.Errorf("config: invalid maxPins %d", c.MaxPins)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid logLevel %q", c.LogLevel)
	}
	return nil
}

// Address returns the host:port listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BroadcastInterval returns the coalescing window as a duration.
func (c *Config) BroadcastInterval() time.Duration {
	return time.Duration(c.BroadcastIntervalMs) * time.Millisecond
}

// PingInterval returns the heartbeat interval as a duration.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMs) * time.Millisecond
}

// PresenceTimeout returns the heartbeat timeout as a duration.
func (c *Config) PresenceTimeout() time.Duration {
	return time.Duration(c.PresenceTimeoutMs) * time.Millisecond
}
