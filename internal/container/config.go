// Package container provides dependency injection and lifecycle management
// for the claim approval service.
package container

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Storage  StorageConfig
	Server   ServerConfig
	Workflow WorkflowConfig
	Metrics  MetricsConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long SQLite waits on a locked database
	BusyTimeout time.Duration
}

// StorageConfig holds document storage settings.
type StorageConfig struct {
	// Backend is "local" or "memory"
	Backend string

	// BaseDir is the upload directory of the local backend
	BaseDir string

	// SweepInterval schedules the orphaned-upload sweep; zero disables it
	SweepInterval time.Duration

	// OrphanGrace is the minimum age of a blob before it may be swept
	OrphanGrace time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// WorkflowConfig holds façade settings.
type WorkflowConfig struct {
	// RequestTimeout bounds each workflow operation
	RequestTimeout time.Duration
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/claims.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Storage: StorageConfig{
			Backend:       "local",
			BaseDir:       "uploads",
			SweepInterval: time.Hour,
			OrphanGrace:   time.Hour,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxUploadBytes: 32 << 20,
		},
		Workflow: WorkflowConfig{
			RequestTimeout: 15 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "claims",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.BaseDir == "" {
			return errors.New("storage.base_dir is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}

	return nil
}
