package collaboration

import (
	"fmt"
	"time"
)

// Defaults applied by Config.withDefaults
const (
	DefaultReconnectInterval    = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultInviteScheme         = "gamesync"
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second

	// FallbackGameID is used by invite links when no game id is known
	FallbackGameID = "default-game"
)

// Config is everything a Session needs, supplied once at construction.
// The endpoint is always explicit; the session never guesses it.
type Config struct {
	URL    string
	GameID string
	UserID string

	ReconnectInterval time.Duration
	// MaxReconnectAttempts of 0 disables automatic reconnects
	MaxReconnectAttempts int

	Enabled      bool
	InviteScheme string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// DefaultConfig returns an enabled config with the documented defaults
func DefaultConfig(url, gameID string) Config {
	return Config{
		URL:                  url,
		GameID:               gameID,
		ReconnectInterval:    DefaultReconnectInterval,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		Enabled:              true,
		InviteScheme:         DefaultInviteScheme,
		HandshakeTimeout:     DefaultHandshakeTimeout,
		WriteTimeout:         DefaultWriteTimeout,
	}
}

// withDefaults fills zero durations and an empty scheme.
// MaxReconnectAttempts is left alone so callers can set it to 0.
func (c Config) withDefaults() Config {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.InviteScheme == "" {
		c.InviteScheme = DefaultInviteScheme
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

// Validate checks the config of an enabled session
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.URL == "" {
		return fmt.Errorf("collaboration URL is required")
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max reconnect attempts cannot be negative")
	}
	return nil
}
