// Package logging configures the agent-wide structured JSON logger and
// the attribute helpers the subsystems share.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the slog JSON logger writing to stdout. Unknown level
// strings fall back to info; debug additionally records source locations.
func NewLogger(level string) *slog.Logger {
	lvl := parseLevel(level)
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// WithComponent tags a logger with the owning subsystem (jobs, watcher,
// playback).
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithJobID tags a logger with the export job it is working.
func WithJobID(logger *slog.Logger, jobID string) *slog.Logger {
	return logger.With("job_id", jobID)
}

// SanitizeToken blanks the middle of the auth token so startup logs never
// carry the full credential.
func SanitizeToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizePath collapses the home directory prefix so logged media paths
// do not leak the account name.
func SanitizePath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + strings.TrimPrefix(path, home)
	}
	return path
}
