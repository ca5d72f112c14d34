package config

import (
	"strings"

	"golang.org/x/exp/slog"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// IsProduction reports whether the service runs against real customers
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// SlogLevel maps the configured log level onto slog
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TestRecipient returns the address confirmation emails are diverted to
// outside production, or "" when mail goes to the real recipient
func (c *Config) TestRecipient() string {
	if c.IsProduction() {
		return ""
	}
	return c.Email.TestRecipient
}
