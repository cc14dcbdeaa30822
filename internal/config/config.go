// Package config provides configuration loading and validation from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all daemon configuration.
type Config struct {
	LogLevel          string // debug, info, warn, error
	StateDir          string // Directory for persisted deadline/credential state
	SocketPath        string // Unix socket path for the control API
	MetricsListenAddr string // Metrics listener address (e.g., "localhost:9402")
	DisableProtection bool   // Dev only: skip the deny-write/deny-delete file overlay
}

// Load parses configuration from environment variables.
// All options have defaults suitable for a systemd deployment.
func Load() (*Config, error) {
	logLevel := os.Getenv("LOG_LEVEL")
	stateDir := os.Getenv("HARDSTOP_STATE_DIR")
	socketPath := os.Getenv("HARDSTOP_SOCKET")
	metricsListenAddr := os.Getenv("METRICS_LISTEN_ADDR")
	disableProtection := os.Getenv("HARDSTOP_DISABLE_PROTECTION")

	if logLevel == "" {
		logLevel = "info"
	}

	if stateDir == "" {
		stateDir = "/var/lib/hardstop"
	}

	if socketPath == "" {
		socketPath = "/run/hardstop.sock"
	}

	if metricsListenAddr == "" {
		metricsListenAddr = "localhost:9402"
	}

	cfg := &Config{
		LogLevel:          logLevel,
		StateDir:          stateDir,
		SocketPath:        socketPath,
		MetricsListenAddr: metricsListenAddr,
		DisableProtection: disableProtection == "1" || disableProtection == "true",
	}

	return cfg, nil
}

// Validate checks all configuration constraints.
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.StateDir) {
		return fmt.Errorf("HARDSTOP_STATE_DIR must be an absolute path, got %q", c.StateDir)
	}
	if c.SocketPath == "" {
		return fmt.Errorf("HARDSTOP_SOCKET must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug/info/warn/error, got %q", c.LogLevel)
	}
	return nil
}

// CredentialPath returns the path of the protected cancellation-credential file.
func (c *Config) CredentialPath() string {
	return filepath.Join(c.StateDir, "cancel.cred")
}

// DeadlinePath returns the path of the persisted deadline record.
func (c *Config) DeadlinePath() string {
	return filepath.Join(c.StateDir, "deadline.json")
}

// LockPath returns the path of the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir, "armed.lock")
}

// AuditPath returns the path of the SQLite audit-trail database.
func (c *Config) AuditPath() string {
	return filepath.Join(c.StateDir, "audit.db")
}
