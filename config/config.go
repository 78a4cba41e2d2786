// Package config models the scheduler's construction-time settings, built
// with a zero-value-friendly constructor: callers pass a struct, unset
// fields fall back to sane defaults.
package config

import "time"

// Config controls logging verbosity and the channel fabric's default
// sizing/polling behavior. The zero Config is valid: every field falls
// back to its documented default.
type Config struct {
	// LogLevel gates the scheduler's own structured logger. Defaults to
	// "info".
	LogLevel string

	// MessageLogLevel gates which sends are recorded into the message log.
	// Defaults to "info".
	MessageLogLevel string

	// ThreadSwitchInterval is a cooperative-yield knob kept for parity with
	// hosts that need one. The scheduler does not read it: workers never
	// yield on it, whether it is nil or set.
	ThreadSwitchInterval *time.Duration

	// ChannelDefaultCapacity is the global cap used when a port declares no
	// capacity preference. Defaults to 16.
	ChannelDefaultCapacity int

	// ChannelPollInterval bounds how often a blocked write retries against
	// the stop signal. Defaults to 1s. A blocked read is not polled: it
	// waits until a message or the producer's Flusher sentinel arrives.
	ChannelPollInterval time.Duration
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithLogLevel sets the scheduler logger's minimum level.
func WithLogLevel(level string) Option {
	return func(c *Config) { c.LogLevel = level }
}

// WithMessageLogLevel sets the message log's minimum level.
func WithMessageLogLevel(level string) Option {
	return func(c *Config) { c.MessageLogLevel = level }
}

// WithThreadSwitchInterval sets the cooperative-yield interval.
func WithThreadSwitchInterval(d time.Duration) Option {
	return func(c *Config) { c.ThreadSwitchInterval = &d }
}

// WithChannelDefaultCapacity overrides the global channel capacity cap.
func WithChannelDefaultCapacity(n int) Option {
	return func(c *Config) { c.ChannelDefaultCapacity = n }
}

// WithChannelPollInterval overrides the blocked write/read retry interval.
func WithChannelPollInterval(d time.Duration) Option {
	return func(c *Config) { c.ChannelPollInterval = d }
}

// New builds a Config from the given options, applying defaults to any
// field left unset.
func New(opts ...Option) Config {
	c := Config{
		LogLevel:               "info",
		MessageLogLevel:        "info",
		ChannelDefaultCapacity: 16,
		ChannelPollInterval:    time.Second,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return Normalize(c)
}

// Normalize applies the documented defaults to any zero-valued field of c,
// leaving explicitly set fields untouched.
func Normalize(c Config) Config {
	if c.ChannelDefaultCapacity <= 0 {
		c.ChannelDefaultCapacity = 16
	}
	if c.ChannelPollInterval <= 0 {
		c.ChannelPollInterval = time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MessageLogLevel == "" {
		c.MessageLogLevel = "info"
	}
	return c
}
