// Package config provides configuration management for the Clappper Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8790
	DefaultLogLevel = "info"
	DefaultDataDir  = ".clappper"

	// Environment variable names
	EnvPort     = "CLAPPPER_PORT"
	EnvLogLevel = "CLAPPPER_LOG_LEVEL"
	EnvDataDir  = "CLAPPPER_DATA_DIR"
	EnvHeadless = "CLAPPPER_HEADLESS"

	// External tool environment variable names
	EnvFFmpegPath  = "CLAPPPER_FFMPEG"
	EnvFFprobePath = "CLAPPPER_FFPROBE"

	// Database filename
	DBFilename = "clappper.db"

	// Timeline defaults
	DefaultOverlayTracks = 4

	// Probe and export defaults
	DefaultProbeTimeout  = 15  // seconds
	DefaultExportTimeout = 120 // minutes

	// Autosave defaults
	DefaultAutosaveInterval = 30 // seconds
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ExportDir() string
	Headless() bool
	OverlayTracks() int
	FFmpegPath() string
	FFprobePath() string
	ProbeTimeout() time.Duration
	ExportTimeout() time.Duration
	AutosaveInterval() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool

	ffmpegPath  string
	ffprobePath string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if h := os.Getenv(EnvHeadless); h == "1" || h == "true" {
		cfg.headless = true
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)
	cfg.ffprobePath = os.Getenv(EnvFFprobePath)

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ExportDir returns the default directory for exported videos
func (c *EnvConfig) ExportDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// Headless reports whether the agent should run without the system tray
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// OverlayTracks returns the fixed number of overlay tracks per session
func (c *EnvConfig) OverlayTracks() int {
	return DefaultOverlayTracks
}

func (c *EnvConfig) FFmpegPath() string {
	if c.ffmpegPath != "" {
		return c.ffmpegPath
	}
	return "ffmpeg"
}

func (c *EnvConfig) FFprobePath() string {
	if c.ffprobePath != "" {
		return c.ffprobePath
	}
	return "ffprobe"
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return time.Duration(DefaultProbeTimeout) * time.Second
}

func (c *EnvConfig) ExportTimeout() time.Duration {
	return time.Duration(DefaultExportTimeout) * time.Minute
}

func (c *EnvConfig) AutosaveInterval() time.Duration {
	return time.Duration(DefaultAutosaveInterval) * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
