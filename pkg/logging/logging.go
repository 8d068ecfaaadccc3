// Package logging provides structured logging configuration using log/slog.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config holds logging configuration options.
type Config struct {
	// Level is the minimum log level to output.
	Level slog.Level
	// JSON enables JSON output format.
	JSON bool
	// Output is the writer to write logs to. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns a text logger at the level named by LOG_LEVEL
// (DEBUG, INFO, WARN, ERROR), INFO when unset.
func DefaultConfig() Config {
	return Config{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Output: os.Stderr,
	}
}

// ParseLevel converts a level name to slog.Level. Unknown names are INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the default slog logger with the given configuration.
func Setup(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// FromSettings installs a logger for the configured level and format, with
// LOG_LEVEL taking precedence over level. When
// file is set, records go to stderr and are appended to file as well; the
// returned closer closes that file.
func FromSettings(level string, json bool, file string) (*slog.Logger, io.Closer, error) {
	cfg := DefaultConfig()
	cfg.JSON = json
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Level = ParseLevel(level)
	}
	if file == "" {
		return Setup(cfg), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	cfg.Output = io.MultiWriter(os.Stderr, f)
	return Setup(cfg), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
